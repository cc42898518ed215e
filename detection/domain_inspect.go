package detection

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// DomainInspector resolves network-side domain signals: DNS presence,
// registration age, certificate state. Implementations must degrade to
// per-feature failure markers, never a hard error.
type DomainInspector interface {
	Inspect(ctx context.Context, p *ParsedURL) FeatureSet
}

// NetDomainInspector is the live implementation. Each sub-lookup has its
// own bounded timeout and at most one retry; all of them honor the caller's
// context so the per-URL deadline can cancel them.
type NetDomainInspector struct {
	resolver     *net.Resolver
	whoisLimiter *rate.Limiter
	dnsTimeout   time.Duration
	tlsTimeout   time.Duration
	whoisTimeout time.Duration
}

func NewNetDomainInspector(cfg *Config) *NetDomainInspector {
	return &NetDomainInspector{
		// PreferGo with an explicit dialer keeps resolution behavior
		// consistent across hosts (cloud resolvers misbehave on RBL-style
		// lookups and some private zones).
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: 2 * time.Second}
				return d.DialContext(ctx, network, address)
			},
		},
		// Registries rate-limit aggressively; one query per second keeps a
		// batch run from tripping them.
		whoisLimiter: rate.NewLimiter(rate.Limit(1), 3),
		dnsTimeout:   cfg.DNSTimeout,
		tlsTimeout:   cfg.TLSTimeout,
		whoisTimeout: cfg.WhoisTimeout,
	}
}

// domainFeatureNames is everything this inspector is responsible for.
var domainFeatureNames = []string{
	"has_dns", "dns_ip_count", "has_aaaa", "domain_age_days",
	"has_ssl", "ssl_days_valid", "ssl_trusted",
}

// Inspect runs the DNS, WHOIS, and TLS sub-lookups concurrently and merges
// their feature sets. A failed or cancelled sub-lookup only fails its own
// features.
func (d *NetDomainInspector) Inspect(ctx context.Context, p *ParsedURL) FeatureSet {
	var (
		mu  sync.Mutex
		out = NewFeatureSet()
		wg  sync.WaitGroup
	)

	merge := func(fs FeatureSet) {
		mu.Lock()
		out.Merge(fs)
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		merge(d.lookupDNS(ctx, p.Host))
	}()
	go func() {
		defer wg.Done()
		merge(d.lookupWhois(ctx, p.Host))
	}()
	go func() {
		defer wg.Done()
		merge(d.probeTLS(ctx, p))
	}()
	wg.Wait()

	return out
}

func (d *NetDomainInspector) lookupDNS(ctx context.Context, host string) FeatureSet {
	fs := NewFeatureSet()
	names := []string{"has_dns", "dns_ip_count", "has_aaaa"}

	dnsCtx, cancel := context.WithTimeout(ctx, d.dnsTimeout)
	defer cancel()

	ips, err := retryOnce(dnsCtx, func() ([]net.IPAddr, error) {
		return d.resolver.LookupIPAddr(dnsCtx, host)
	})
	if err != nil {
		switch {
		case dnsCtx.Err() != nil:
			fs.FailAll(names, ReasonTimeout)
		case isNXDomain(err):
			// NXDOMAIN is a signal, not a failure: the domain simply has no
			// record.
			fs.Set("has_dns", 0)
			fs.Set("dns_ip_count", 0)
			fs.Set("has_aaaa", 0)
		default:
			// Resolver unreachable, SERVFAIL, refused connections. We learned
			// nothing about the domain; these must impute, not read as zeros.
			log.Printf("[DNS] lookup failed for %s: %v", host, err)
			fs.FailAll(names, ReasonLookup)
		}
		return fs
	}

	v4, v6 := 0, 0
	for _, ip := range ips {
		if ip.IP.To4() != nil {
			v4++
		} else {
			v6++
		}
	}
	fs.SetBool("has_dns", len(ips) > 0)
	fs.Set("dns_ip_count", float64(v4))
	fs.SetBool("has_aaaa", v6 > 0)
	return fs
}

// isNXDomain reports whether a resolution error means the name genuinely has
// no record, as opposed to the resolver being unreachable or answering with
// a server failure.
func isNXDomain(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func (d *NetDomainInspector) lookupWhois(ctx context.Context, host string) FeatureSet {
	fs := NewFeatureSet()

	if err := d.whoisLimiter.Wait(ctx); err != nil {
		fs.Fail("domain_age_days", ReasonCancelled)
		return fs
	}

	whoisCtx, cancel := context.WithTimeout(ctx, d.whoisTimeout)
	defer cancel()

	age, err := retryOnce(whoisCtx, func() (int, error) {
		return whoisAgeDays(whoisCtx, host)
	})
	if err != nil {
		reason := ReasonLookup
		if whoisCtx.Err() != nil {
			reason = ReasonTimeout
		}
		log.Printf("[WHOIS] lookup failed for %s: %v", host, err)
		fs.Fail("domain_age_days", reason)
		return fs
	}
	fs.Set("domain_age_days", float64(age))
	return fs
}

// whoisAgeDays queries WHOIS for the registrable domain and returns the
// registration age in days. The likexian client is not context-aware, so
// the call runs in a goroutine raced against the context.
func whoisAgeDays(ctx context.Context, host string) (int, error) {
	domain := host
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		domain = etld1
	}

	type whoisResult struct {
		age int
		err error
	}
	ch := make(chan whoisResult, 1)
	go func() {
		raw, err := whois.Whois(domain)
		if err != nil {
			ch <- whoisResult{err: err}
			return
		}
		parsed, err := parser.Parse(raw)
		if err != nil || parsed.Domain == nil {
			ch <- whoisResult{err: errOrParse(err)}
			return
		}
		created, ok := parseWhoisDate(parsed.Domain.CreatedDate)
		if !ok {
			ch <- whoisResult{err: errNoCreationDate}
			return
		}
		age := int(time.Since(created).Hours() / 24)
		if age < 0 {
			age = 0
		}
		ch <- whoisResult{age: age}
	}()

	select {
	case res := <-ch:
		return res.age, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

var errNoCreationDate = &lookupError{"whois record has no creation date"}

type lookupError struct{ msg string }

func (e *lookupError) Error() string { return e.msg }

func errOrParse(err error) error {
	if err != nil {
		return err
	}
	return &lookupError{"whois parse returned no domain section"}
}

// whoisDateLayouts covers the formats registries actually emit.
var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

func parseWhoisDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (d *NetDomainInspector) probeTLS(ctx context.Context, p *ParsedURL) FeatureSet {
	fs := NewFeatureSet()
	names := []string{"has_ssl", "ssl_days_valid", "ssl_trusted"}

	if p.Scheme != "https" {
		// Nothing to probe on plain HTTP; zeros match what training saw.
		fs.Set("has_ssl", 0)
		fs.Set("ssl_days_valid", 0)
		fs.Set("ssl_trusted", 0)
		return fs
	}

	port := p.Port
	if port == "" {
		port = "443"
	}

	dialer := &net.Dialer{Timeout: d.tlsTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(p.Host, port), &tls.Config{
		ServerName:         p.Host,
		InsecureSkipVerify: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			fs.FailAll(names, ReasonCancelled)
		} else {
			fs.FailAll(names, ReasonLookup)
		}
		return fs
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		fs.FailAll(names, ReasonLookup)
		return fs
	}

	leaf := certs[0]
	days := int(time.Until(leaf.NotAfter).Hours() / 24)
	if days < 0 {
		days = 0
	}

	// Separate verified handshake to judge chain trust; the probe above is
	// deliberately permissive so self-signed hosts still yield expiry data.
	trusted := false
	if vconn, verr := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(p.Host, port), &tls.Config{ServerName: p.Host}); verr == nil {
		trusted = true
		vconn.Close()
	}

	fs.Set("has_ssl", 1)
	fs.Set("ssl_days_valid", float64(days))
	fs.SetBool("ssl_trusted", trusted)
	return fs
}

// retryOnce runs fn and retries a single time on failure, provided the
// context is still alive. Transient registry and resolver hiccups are
// common; more than one retry just burns the deadline.
func retryOnce[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || ctx.Err() != nil {
		return v, err
	}
	select {
	case <-ctx.Done():
		return v, err
	case <-time.After(200 * time.Millisecond):
	}
	return fn()
}
