package detection

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/publicsuffix"
)

const (
	maxRedirects     = 5
	maxBodyBytes     = 2 * 1024 * 1024
	contentUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ContentInspector fetches the URL once and derives markup features.
// It never raises past its boundary: timeouts, connection failures, and
// unparseable bodies all come back as failure-marked feature sets.
type ContentInspector interface {
	Inspect(ctx context.Context, p *ParsedURL) FeatureSet
}

// HTTPContentInspector performs a single bounded GET with a capped redirect
// chain, then parses the markup with goquery. When the static HTML looks
// JS-rendered (scripts but no anchors or forms) it can fall back to a
// headless-Chrome render: HTTP first, chromedp only when HTTP finds nothing.
type HTTPContentInspector struct {
	client       *http.Client
	fetchTimeout time.Duration
	skipChromedp bool
	chromePath   string
}

func NewHTTPContentInspector(cfg *Config) *HTTPContentInspector {
	return &HTTPContentInspector{
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		fetchTimeout: cfg.FetchTimeout,
		skipChromedp: cfg.SkipChromedp,
		chromePath:   cfg.ChromePath,
	}
}

// contentFeatureNames is everything this inspector is responsible for.
var contentFeatureNames = []string{
	"http_status", "num_forms", "num_inputs", "has_password_field",
	"num_page_links", "num_scripts", "num_iframes", "external_script_ratio",
	"has_js_redirect", "redirect_count", "title_host_mismatch", "has_favicon",
}

// markupFeatureNames are the subset derived from the parsed document; they
// fail independently of http_status and redirect_count when the body is
// not parseable HTML.
var markupFeatureNames = contentFeatureNames[1:9:9]

func (c *HTTPContentInspector) Inspect(ctx context.Context, p *ParsedURL) FeatureSet {
	fs := NewFeatureSet()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Raw, nil)
	if err != nil {
		fs.FailAll(contentFeatureNames, ReasonFetch)
		return fs
	}
	req.Header.Set("User-Agent", contentUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		reason := ReasonFetch
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			reason = ReasonTimeout
		case ctx.Err() == context.Canceled:
			reason = ReasonCancelled
		}
		fs.FailAll(contentFeatureNames, reason)
		return fs
	}
	defer resp.Body.Close()

	fs.Set("http_status", float64(resp.StatusCode))

	redirects := 0
	if resp.Request != nil && resp.Request.URL != nil && resp.Request.URL.String() != p.Raw {
		redirects = countRedirects(resp)
	}
	fs.Set("redirect_count", float64(redirects))

	ctype := resp.Header.Get("Content-Type")
	if ctype != "" && !strings.Contains(ctype, "text/html") && !strings.Contains(ctype, "application/xhtml") {
		fs.FailAll(markupFeatureNames, ReasonNotHTML)
		fs.Fail("title_host_mismatch", ReasonNotHTML)
		fs.Fail("has_favicon", ReasonNotHTML)
		return fs
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		fs.FailAll(markupFeatureNames, ReasonParse)
		fs.Fail("title_host_mismatch", ReasonParse)
		fs.Fail("has_favicon", ReasonParse)
		return fs
	}

	c.analyzeMarkup(fs, doc, p)

	// JS-heavy pages render an empty shell over HTTP. Re-check with a real
	// browser when the static pass saw scripts but no anchors or forms.
	if c.looksUnrendered(doc) && !c.skipChromedp {
		if html, ok := c.renderWithChromedp(ctx, p.Raw); ok {
			if rendered, rerr := goquery.NewDocumentFromReader(strings.NewReader(html)); rerr == nil {
				log.Printf("[CONTENT] re-analyzed %s from rendered DOM", p.Host)
				c.analyzeMarkup(fs, rendered, p)
			}
		}
	}

	return fs
}

// analyzeMarkup fills every markup-derived feature from the document.
func (c *HTTPContentInspector) analyzeMarkup(fs FeatureSet, doc *goquery.Document, p *ParsedURL) {
	fs.Set("num_forms", float64(doc.Find("form").Length()))
	fs.Set("num_inputs", float64(doc.Find("input").Length()))
	fs.SetBool("has_password_field", doc.Find(`input[type="password"]`).Length() > 0)
	fs.Set("num_page_links", float64(doc.Find("a[href]").Length()))

	scripts := doc.Find("script")
	fs.Set("num_scripts", float64(scripts.Length()))
	fs.Set("num_iframes", float64(doc.Find("iframe").Length()))

	srcTotal, srcExternal := 0, 0
	jsRedirect := false
	scripts.Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			srcTotal++
			if isExternalResource(src, p.Host) {
				srcExternal++
			}
			return
		}
		text := s.Text()
		if strings.Contains(text, "window.location") || strings.Contains(text, "document.location") {
			jsRedirect = true
		}
	})
	if srcTotal > 0 {
		fs.Set("external_script_ratio", float64(srcExternal)/float64(srcTotal))
	} else {
		fs.Set("external_script_ratio", 0)
	}
	fs.SetBool("has_js_redirect", jsRedirect)

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	fs.SetBool("title_host_mismatch", titleHostMismatch(title, p.Host))

	fs.SetBool("has_favicon", doc.Find(`link[rel*="icon"]`).Length() > 0)
}

// looksUnrendered reports whether the static document is probably a JS
// application shell: scripts present, nothing clickable.
func (c *HTTPContentInspector) looksUnrendered(doc *goquery.Document) bool {
	return doc.Find("script").Length() > 0 &&
		doc.Find("a[href]").Length() == 0 &&
		doc.Find("form").Length() == 0
}

// renderWithChromedp loads the URL in headless Chrome and returns the
// rendered outer HTML. Bounded by its own timeout under the caller's
// context; any failure just means we keep the static analysis.
func (c *HTTPContentInspector) renderWithChromedp(ctx context.Context, rawURL string) (string, bool) {
	renderCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.UserAgent(contentUserAgent),
	)
	if c.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(renderCtx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		log.Printf("[CONTENT] chromedp render failed for %s: %v", rawURL, err)
		return "", false
	}
	return html, true
}

// countRedirects walks the response's request chain.
func countRedirects(resp *http.Response) int {
	count := 0
	for r := resp.Request; r != nil && r.Response != nil; r = r.Response.Request {
		count++
		if count >= maxRedirects {
			break
		}
	}
	return count
}

// isExternalResource reports whether a script src points off-site. Relative
// and same-registrable-domain sources count as internal.
func isExternalResource(src, host string) bool {
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return false
	}
	srcHost := strings.ToLower(u.Hostname())
	if srcHost == host {
		return false
	}
	srcBase, err1 := publicsuffix.EffectiveTLDPlusOne(srcHost)
	hostBase, err2 := publicsuffix.EffectiveTLDPlusOne(host)
	if err1 == nil && err2 == nil && srcBase == hostBase {
		return false
	}
	return true
}

// titleHostMismatch flags pages whose title shares nothing with the domain
// label, a weak phishing tell (e.g. a "PayPal" title on qwz31.xyz).
func titleHostMismatch(title, host string) bool {
	if title == "" {
		return false
	}
	base := host
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		base = etld1
	}
	label := strings.SplitN(strings.TrimPrefix(base, "www."), ".", 2)[0]
	if len(label) < 3 {
		return false
	}
	return !strings.Contains(title, label)
}
