package detection

import "fmt"

// AssembleVector merges extractor outputs into one schema-ordered vector.
// For every schema position: a successful extraction contributes its value;
// a failed or absent one contributes the training-time imputation stat.
// Returns the vector and how many positions were imputed.
//
// An extractor emitting a name the schema does not know is version drift
// between binary and artifact: that is ErrSchemaMismatch and the caller
// must treat it as fatal, not retry per URL.
func AssembleVector(schema *FeatureSchema, stats FeatureStats, sets ...FeatureSet) (FeatureVector, int, error) {
	merged := NewFeatureSet()
	for _, fs := range sets {
		for name, v := range fs {
			if _, known := schema.Index(name); !known {
				return nil, 0, fmt.Errorf("%w: extractor produced unknown feature %q", ErrSchemaMismatch, name)
			}
			merged[name] = v
		}
	}

	vector := make(FeatureVector, schema.Len())
	imputed := 0
	for i := 0; i < schema.Len(); i++ {
		name := schema.At(i).Name
		if v, ok := merged[name]; ok && !v.Failed {
			vector[i] = v.Value
			continue
		}
		vector[i] = stats[name]
		imputed++
	}
	return vector, imputed, nil
}
