package detection

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestParseWhoisDate(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		year int
	}{
		{"2019-03-15T04:00:00Z", true, 2019},
		{"2019-03-15 04:00:00", true, 2019},
		{"2019-03-15", true, 2019},
		{"15-Mar-2019", true, 2019},
		{"2019.03.15", true, 2019},
		{"  2019-03-15  ", true, 2019},
		{"", false, 0},
		{"yesterday", false, 0},
	}
	for _, tt := range tests {
		got, ok := parseWhoisDate(tt.in)
		if ok != tt.ok {
			t.Errorf("parseWhoisDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.Year() != tt.year {
			t.Errorf("parseWhoisDate(%q) year = %d, want %d", tt.in, got.Year(), tt.year)
		}
	}
}

func TestRetryOnce(t *testing.T) {
	boom := errors.New("boom")

	t.Run("first try wins", func(t *testing.T) {
		calls := 0
		v, err := retryOnce(context.Background(), func() (int, error) {
			calls++
			return 7, nil
		})
		if err != nil || v != 7 || calls != 1 {
			t.Errorf("got v=%d err=%v calls=%d, want 7/nil/1", v, err, calls)
		}
	})

	t.Run("retries exactly once", func(t *testing.T) {
		calls := 0
		v, err := retryOnce(context.Background(), func() (int, error) {
			calls++
			if calls == 1 {
				return 0, boom
			}
			return 9, nil
		})
		if err != nil || v != 9 || calls != 2 {
			t.Errorf("got v=%d err=%v calls=%d, want 9/nil/2", v, err, calls)
		}
	})

	t.Run("persistent failure surfaces", func(t *testing.T) {
		calls := 0
		_, err := retryOnce(context.Background(), func() (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) || calls != 2 {
			t.Errorf("got err=%v calls=%d, want boom/2", err, calls)
		}
	})

	t.Run("no retry after cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := retryOnce(ctx, func() (int, error) {
			calls++
			cancel()
			return 0, boom
		})
		if !errors.Is(err, boom) || calls != 1 {
			t.Errorf("got err=%v calls=%d, want boom without a second call", err, calls)
		}
	})
}

func TestWhoisAgeDaysHonorsContext(t *testing.T) {
	// The underlying client is not context-aware; the wrapper must still
	// return promptly once the context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := whoisAgeDays(ctx, "example.invalid")
	if time.Since(start) > time.Second {
		t.Errorf("whoisAgeDays blocked %v past a 10ms deadline", time.Since(start))
	}
	if err == nil {
		t.Error("expected an error for an unresolvable lookup under a dead context")
	}
}

func TestIsNXDomain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nxdomain", &net.DNSError{Err: "no such host", Name: "gone.example.com", IsNotFound: true}, true},
		{"servfail", &net.DNSError{Err: "server misbehaving", Name: "example.com"}, false},
		{"wrapped nxdomain", &net.OpError{Op: "lookup", Err: &net.DNSError{IsNotFound: true}}, true},
		{"transport error", errors.New("connection refused"), false},
		{"nil-ish plain error", errors.New("no such host"), false},
	}
	for _, tt := range tests {
		if got := isNXDomain(tt.err); got != tt.want {
			t.Errorf("%s: isNXDomain(%v) = %v, want %v", tt.name, tt.err, got, tt.want)
		}
	}
}

func TestLookupDNSTransportFailureImputes(t *testing.T) {
	// A resolver that cannot reach any server fails fast without the context
	// expiring. That teaches us nothing about the domain, so every DNS
	// feature must carry a failure marker, never a zero that reads as
	// "domain has no record".
	d := &NetDomainInspector{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return nil, errors.New("connection refused")
			},
		},
		dnsTimeout: 3 * time.Second,
	}

	fs := d.lookupDNS(context.Background(), "dns-outage-test.example.com")

	for _, name := range []string{"has_dns", "dns_ip_count", "has_aaaa"} {
		fv, ok := fs[name]
		if !ok {
			t.Errorf("missing feature %q", name)
			continue
		}
		if !fv.Failed {
			t.Errorf("feature %q = %+v, want failure marker on transport error", name, fv)
			continue
		}
		if fv.Reason != ReasonLookup {
			t.Errorf("feature %q reason = %q, want %q", name, fv.Reason, ReasonLookup)
		}
	}
}

func TestDomainInspectorDeclaresAllDomainNames(t *testing.T) {
	schema := ReferenceSchema()
	names := schema.NamesByCategory(CategoryDomain)
	if len(names) != len(domainFeatureNames) {
		t.Fatalf("inspector declares %d features, schema defines %d",
			len(domainFeatureNames), len(names))
	}
	declared := make(map[string]bool, len(domainFeatureNames))
	for _, n := range domainFeatureNames {
		declared[n] = true
	}
	for _, n := range names {
		if !declared[n] {
			t.Errorf("schema domain feature %q not produced by the inspector", n)
		}
	}
}

func TestProbeTLSPlainHTTPIsZeroNotFailed(t *testing.T) {
	d := NewNetDomainInspector(DefaultConfig())
	fs := d.probeTLS(context.Background(), mustParse(t, "http://example.com/"))

	for _, name := range []string{"has_ssl", "ssl_days_valid", "ssl_trusted"} {
		fv := fs[name]
		if fv.Failed {
			t.Errorf("feature %q failed on plain http: %s", name, fv.Reason)
		}
		if fv.Value != 0 {
			t.Errorf("feature %q = %v on plain http, want 0", name, fv.Value)
		}
	}
}
