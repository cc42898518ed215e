package detection

// FeatureValue is one extractor outcome: either a computed number or an
// explicit failure with a reason code. Failed values are never merged into
// a vector directly; only the assembler's imputation step may replace them.
type FeatureValue struct {
	Value  float64 `json:"value"`
	Failed bool    `json:"failed,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// FeatureSet collects the values one extractor produced, keyed by feature
// name. Each URL gets fresh sets; nothing here is shared across URLs.
type FeatureSet map[string]FeatureValue

func NewFeatureSet() FeatureSet { return make(FeatureSet) }

func (fs FeatureSet) Set(name string, v float64) {
	fs[name] = FeatureValue{Value: v}
}

func (fs FeatureSet) SetBool(name string, b bool) {
	if b {
		fs[name] = FeatureValue{Value: 1}
	} else {
		fs[name] = FeatureValue{Value: 0}
	}
}

func (fs FeatureSet) Fail(name, reason string) {
	fs[name] = FeatureValue{Failed: true, Reason: reason}
}

// FailAll marks every named feature failed with the same reason. Used when
// a whole inspector times out or is cancelled.
func (fs FeatureSet) FailAll(names []string, reason string) {
	for _, n := range names {
		fs.Fail(n, reason)
	}
}

// Merge copies other into fs. Later sets win; in practice the extractors
// produce disjoint name ranges so there is nothing to win.
func (fs FeatureSet) Merge(other FeatureSet) {
	for k, v := range other {
		fs[k] = v
	}
}

// FeatureVector is the dense, schema-ordered numeric form the classifier
// accepts. Built once by the assembler, never mutated afterwards.
type FeatureVector []float64
