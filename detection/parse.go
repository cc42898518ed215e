package detection

import (
	"net"
	"net/url"
	"strings"
)

const (
	minURLLength = 4
	maxURLLength = 2048
)

// ParsedURL is the structural decomposition of a raw URL string. Pure data,
// no network state; everything downstream works off this record.
type ParsedURL struct {
	Raw       string `json:"raw"`
	Scheme    string `json:"scheme"`
	Host      string `json:"host"`
	Port      string `json:"port,omitempty"`
	Path      string `json:"path"`
	Query     string `json:"query,omitempty"`
	Fragment  string `json:"fragment,omitempty"`
	RawLength int    `json:"raw_length"`
}

// NormalizeURL trims the input and supplies a scheme when missing so that
// bare domains like "example.com" parse the same way browsers treat them.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "ftp://") {
		raw = "http://" + raw
	}
	return raw
}

// ParseURL decomposes a raw URL string. Deterministic, no I/O. Returns a
// *MalformedURLError (unwrapping to ErrInvalidInput) when the string cannot
// yield at least a host; callers must not run extraction on failure.
func ParseURL(raw string) (*ParsedURL, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < minURLLength {
		return nil, &MalformedURLError{Input: raw, Reason: "too short"}
	}
	if len(trimmed) > maxURLLength {
		return nil, &MalformedURLError{Input: raw, Reason: "exceeds maximum length"}
	}

	normalized := NormalizeURL(trimmed)
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, &MalformedURLError{Input: raw, Reason: err.Error()}
	}
	if u.Host == "" {
		return nil, &MalformedURLError{Input: raw, Reason: "no host component"}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" || strings.ContainsAny(host, " \t") {
		return nil, &MalformedURLError{Input: raw, Reason: "invalid host"}
	}
	// Hosts like "not a url" survive url.Parse once a scheme is prefixed;
	// require at least one dot or an IP literal to call it a host.
	if !strings.Contains(host, ".") && net.ParseIP(host) == nil && host != "localhost" {
		return nil, &MalformedURLError{Input: raw, Reason: "host is not a domain or IP"}
	}

	return &ParsedURL{
		Raw:       normalized,
		Scheme:    strings.ToLower(u.Scheme),
		Host:      host,
		Port:      u.Port(),
		Path:      u.Path,
		Query:     u.RawQuery,
		Fragment:  u.Fragment,
		RawLength: len(normalized),
	}, nil
}

// RegistrableHost strips a leading "www." for display purposes only; WHOIS
// and public-suffix handling have their own logic in the domain inspector.
func (p *ParsedURL) RegistrableHost() string {
	return strings.TrimPrefix(p.Host, "www.")
}
