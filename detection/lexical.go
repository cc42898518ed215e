package detection

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Lexical feature extraction: pure functions of the parsed URL, no network.
// Safe to run inline and always produces a value (or an explicit per-feature
// failure) for every lexical name in the schema.

var ipLiteralRe = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)

var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true,
	"xyz": true, "top": true, "work": true, "click": true, "link": true,
	"pw": true, "cc": true,
}

var trustedTLDs = map[string]bool{
	"com": true, "org": true, "net": true, "edu": true, "gov": true, "mil": true,
}

var urlShorteners = []string{"bit.ly", "goo.gl", "tinyurl", "t.co", "ow.ly"}

var redirectMarkers = []string{"redirect", "url=", "redir", "goto"}

// ExtractLexical derives every lexical schema feature from the parsed URL.
// Individual computations that cannot be carried out mark only their own
// feature failed; the rest of the set is unaffected.
func ExtractLexical(p *ParsedURL) FeatureSet {
	fs := NewFeatureSet()
	raw := p.Raw
	lower := strings.ToLower(raw)
	n := float64(len(raw))

	fs.Set("url_length", n)
	fs.Set("num_dots", float64(strings.Count(raw, ".")))
	fs.Set("num_hyphens", float64(strings.Count(raw, "-")))
	fs.Set("num_underscores", float64(strings.Count(raw, "_")))
	fs.Set("num_slashes", float64(strings.Count(raw, "/")))
	fs.Set("num_question", float64(strings.Count(raw, "?")))
	fs.Set("num_equal", float64(strings.Count(raw, "=")))
	fs.Set("num_at", float64(strings.Count(raw, "@")))
	fs.Set("num_ampersand", float64(strings.Count(raw, "&")))
	fs.Set("num_percent", float64(strings.Count(raw, "%")))

	fs.Set("url_entropy", shannonEntropy(raw))
	if p.Host != "" {
		fs.Set("host_entropy", shannonEntropy(p.Host))
	} else {
		fs.Fail("host_entropy", ReasonUncomputable)
	}

	digits, letters, specials := charClassCounts(raw)
	fs.Set("digit_count", float64(digits))
	fs.Set("letter_count", float64(letters))
	if n > 0 {
		fs.Set("digit_ratio", float64(digits)/n)
		fs.Set("letter_ratio", float64(letters)/n)
		fs.Set("special_char_ratio", float64(specials)/n)
	} else {
		fs.Fail("digit_ratio", ReasonUncomputable)
		fs.Fail("letter_ratio", ReasonUncomputable)
		fs.Fail("special_char_ratio", ReasonUncomputable)
	}

	fs.SetBool("has_ip", ipLiteralRe.MatchString(p.Host))
	// The parser already split the authority; colon-digit sequences in the
	// path or query are not ports.
	fs.SetBool("has_port", p.Port != "")
	fs.Set("domain_length", float64(len(p.Host)))

	subdomains := strings.Count(p.Host, ".")
	fs.Set("subdomain_count", float64(subdomains))
	fs.SetBool("excessive_subdomains", subdomains > 3)

	tld := hostTLD(p.Host)
	fs.SetBool("has_suspicious_tld", suspiciousTLDs[tld])
	fs.SetBool("has_trusted_tld", trustedTLDs[tld])

	fs.SetBool("is_https", p.Scheme == "https")
	fs.SetBool("is_http", p.Scheme == "http")

	fs.Set("url_depth", float64(pathDepth(p.Path)))
	fs.Set("path_length", float64(len(p.Path)))
	fs.SetBool("has_query_string", p.Query != "")
	fs.Set("query_length", float64(len(p.Query)))
	fs.Set("num_query_params", float64(queryParamCount(p.Query)))

	fs.SetBool("has_double_slash", doubleSlashInPath(raw))
	fs.SetBool("has_url_shortener", containsAny(lower, urlShorteners))
	fs.SetBool("has_redirect_param", containsAny(lower, redirectMarkers))
	fs.SetBool("has_punycode", strings.Contains(p.Host, "xn--"))

	firstLabel := strings.SplitN(p.Host, ".", 2)[0]
	fs.SetBool("brand_in_subdomain", containsAny(firstLabel, impersonatedBrands))

	for _, kw := range suspiciousKeywords {
		fs.SetBool("has_"+kw, strings.Contains(lower, kw))
	}
	for _, brand := range impersonatedBrands {
		fs.SetBool("has_brand_"+brand, strings.Contains(lower, brand))
	}

	return fs
}

// shannonEntropy measures character randomness in bits per symbol.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}
	var entropy float64
	total := float64(len(s))
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / total
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

func charClassCounts(s string) (digits, letters, specials int) {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		case strings.ContainsRune(`!@#$%^&*()_+={}[]|\:;"'<>,.?/~`+"`", r):
			specials++
		}
	}
	return
}

// hostTLD prefers the public suffix list so multi-label suffixes like
// co.uk resolve correctly; falls back to the last label.
func hostTLD(host string) string {
	if host == "" {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix != "" && !strings.Contains(suffix, ".") {
		return suffix
	}
	parts := strings.Split(host, ".")
	return parts[len(parts)-1]
}

func pathDepth(path string) int {
	depth := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}

func queryParamCount(query string) int {
	if query == "" {
		return 0
	}
	count := 0
	for _, pair := range strings.Split(query, "&") {
		if pair != "" {
			count++
		}
	}
	return count
}

// doubleSlashInPath flags "//" occurring after the scheme separator, a
// classic redirect-obfuscation trick.
func doubleSlashInPath(raw string) bool {
	if idx := strings.Index(raw, "://"); idx >= 0 {
		return strings.Contains(raw[idx+3:], "//")
	}
	return strings.Contains(raw, "//")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
