package detection

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// LinearModel is the trained classifier: logistic regression weights in
// schema order plus a bias. InputWidth is recorded separately in the
// artifact so width drift is detectable rather than silent.
type LinearModel struct {
	Algorithm  string    `json:"algorithm"`
	InputWidth int       `json:"input_width"`
	Weights    []float64 `json:"weights"`
	Bias       float64   `json:"bias"`
}

// FeatureStats holds per-feature imputation values observed at training
// time, keyed by feature name. Read-only after load.
type FeatureStats map[string]float64

// ModelArtifactBundle is the complete on-disk artifact: model, schema, and
// imputation statistics, loaded and validated together. Immutable after
// load; safe for unlimited concurrent readers.
type ModelArtifactBundle struct {
	Version             string       `json:"version"`
	TrainedAt           time.Time    `json:"trained_at"`
	Model               LinearModel  `json:"model"`
	Threshold           float64      `json:"threshold"`
	ImputationStatistic string       `json:"imputation_statistic"`
	Stats               FeatureStats `json:"stats"`

	// RawSchema is the serialized form; Schema is built from it at load.
	RawSchema []FeatureDescriptor `json:"schema"`
	Schema    *FeatureSchema      `json:"-"`
}

// LoadBundle reads and validates a bundle file. Any validation failure is
// fatal for classification: the caller must not proceed without a bundle.
func LoadBundle(path string) (*ModelArtifactBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	var b ModelArtifactBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	log.Printf("[MODEL] loaded bundle version=%s features=%d threshold=%.2f statistic=%s",
		b.Version, b.Schema.Len(), b.Threshold, b.ImputationStatistic)
	return &b, nil
}

func (b *ModelArtifactBundle) validate() error {
	schema, err := NewFeatureSchema(b.RawSchema)
	if err != nil {
		return err
	}
	b.Schema = schema

	if b.Model.InputWidth != schema.Len() {
		return fmt.Errorf("%w: model expects %d inputs, schema has %d features",
			ErrArtifactIncompatible, b.Model.InputWidth, schema.Len())
	}
	if len(b.Model.Weights) != b.Model.InputWidth {
		return fmt.Errorf("%w: %d weights for declared input width %d",
			ErrArtifactIncompatible, len(b.Model.Weights), b.Model.InputWidth)
	}
	if b.Threshold <= 0 || b.Threshold >= 1 {
		return fmt.Errorf("%w: threshold %v outside (0,1)", ErrArtifactIncompatible, b.Threshold)
	}
	for _, f := range b.RawSchema {
		if _, ok := b.Stats[f.Name]; !ok {
			return fmt.Errorf("%w: no imputation stat for feature %q", ErrArtifactIncompatible, f.Name)
		}
	}

	// The extractors in this binary produce the reference layout; a bundle
	// trained against anything else is version drift, not a usable model.
	ref := ReferenceSchema()
	if ref.Len() != schema.Len() {
		return fmt.Errorf("%w: bundle schema length %d, extractors produce %d",
			ErrArtifactIncompatible, schema.Len(), ref.Len())
	}
	for i := 0; i < ref.Len(); i++ {
		if ref.At(i).Name != schema.At(i).Name {
			return fmt.Errorf("%w: schema position %d is %q, extractors produce %q",
				ErrArtifactIncompatible, i, schema.At(i).Name, ref.At(i).Name)
		}
	}
	return nil
}

// ModelStore loads the bundle exactly once per process and hands out the
// same immutable instance thereafter. No lock beyond the load-once gate.
type ModelStore struct {
	once   sync.Once
	bundle *ModelArtifactBundle
	err    error
	path   string
}

func NewModelStore(path string) *ModelStore {
	return &ModelStore{path: path}
}

// Bundle returns the loaded artifact, loading it on first call. The error,
// like the bundle, is sticky: a failed load does not retry.
func (m *ModelStore) Bundle() (*ModelArtifactBundle, error) {
	m.once.Do(func() {
		m.bundle, m.err = LoadBundle(m.path)
	})
	return m.bundle, m.err
}
