package detection

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestBundle builds a valid in-memory artifact: reference schema, flat
// small weights, per-feature stats that are easy to spot in a vector.
func newTestBundle(t *testing.T) *ModelArtifactBundle {
	t.Helper()

	ref := ReferenceSchema()
	stats := make(FeatureStats, ref.Len())
	weights := make([]float64, ref.Len())
	for i, name := range ref.Names() {
		stats[name] = float64(i) + 0.5
		weights[i] = 0.001
	}

	b := &ModelArtifactBundle{
		Version:             "test-1",
		TrainedAt:           time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Model:               LinearModel{Algorithm: "logistic", InputWidth: ref.Len(), Weights: weights, Bias: -0.1},
		Threshold:           0.5,
		ImputationStatistic: "median",
		Stats:               stats,
		RawSchema:           ref.Descriptors(),
	}
	if err := b.validate(); err != nil {
		t.Fatalf("test bundle invalid: %v", err)
	}
	return b
}

// writeTestBundle serializes a bundle to a temp file and returns its path.
func writeTestBundle(t *testing.T, b *ModelArtifactBundle) string {
	t.Helper()

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bundle.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func newTestStore(t *testing.T) *ModelStore {
	t.Helper()
	return NewModelStore(writeTestBundle(t, newTestBundle(t)))
}

// stubDomainInspector returns a fixed feature set, optionally after a
// sleep that ignores the context (a simulated hang).
type stubDomainInspector struct {
	set   FeatureSet
	sleep time.Duration
}

func (s *stubDomainInspector) Inspect(ctx context.Context, p *ParsedURL) FeatureSet {
	if s.sleep > 0 {
		time.Sleep(s.sleep)
	}
	return s.set
}

type stubContentInspector struct {
	set   FeatureSet
	sleep time.Duration
}

func (s *stubContentInspector) Inspect(ctx context.Context, p *ParsedURL) FeatureSet {
	if s.sleep > 0 {
		time.Sleep(s.sleep)
	}
	return s.set
}

// healthyDomainSet fills every domain feature with a success value.
func healthyDomainSet() FeatureSet {
	fs := NewFeatureSet()
	fs.Set("has_dns", 1)
	fs.Set("dns_ip_count", 2)
	fs.Set("has_aaaa", 0)
	fs.Set("domain_age_days", 3650)
	fs.Set("has_ssl", 1)
	fs.Set("ssl_days_valid", 90)
	fs.Set("ssl_trusted", 1)
	return fs
}

// healthyContentSet fills every content feature with a success value.
func healthyContentSet() FeatureSet {
	fs := NewFeatureSet()
	fs.Set("http_status", 200)
	fs.Set("num_forms", 1)
	fs.Set("num_inputs", 3)
	fs.Set("has_password_field", 0)
	fs.Set("num_page_links", 25)
	fs.Set("num_scripts", 4)
	fs.Set("num_iframes", 0)
	fs.Set("external_script_ratio", 0.25)
	fs.Set("has_js_redirect", 0)
	fs.Set("redirect_count", 0)
	fs.Set("title_host_mismatch", 0)
	fs.Set("has_favicon", 1)
	return fs
}

// failedSet marks the given names failed.
func failedSet(names []string, reason string) FeatureSet {
	fs := NewFeatureSet()
	fs.FailAll(names, reason)
	return fs
}
