package detection

import (
	"math"
	"time"
)

// Classification labels.
const (
	LabelBenign    = "benign"
	LabelMalicious = "malicious"
)

// Risk bands derived from the raw score, matching the bands the training
// side reports on.
const (
	riskLowMax    = 0.3
	riskMediumMax = 0.7
)

// ClassificationResult is the per-URL outcome. ImputedFeatures is surfaced
// deliberately: a result built on many imputed features is weaker evidence
// than one where every lookup succeeded.
type ClassificationResult struct {
	URL             string        `json:"url"`
	Label           string        `json:"label"`
	Score           float64       `json:"score"`
	Threshold       float64       `json:"threshold"`
	RiskLevel       string        `json:"risk_level"`
	Confidence      string        `json:"confidence"`
	ImputedFeatures int           `json:"imputed_features"`
	Vector          FeatureVector `json:"vector,omitempty"`
	ProcessingTime  float64       `json:"processing_time_seconds"`
	Timestamp       string        `json:"timestamp"`
}

// Classify runs inference on an assembled vector. Purely computational and
// deterministic: same vector, same bundle, same result. Tie-break at the
// threshold is fixed: score >= threshold classifies malicious.
func Classify(bundle *ModelArtifactBundle, vector FeatureVector, imputed int) ClassificationResult {
	score := sigmoid(dot(bundle.Model.Weights, vector) + bundle.Model.Bias)

	label := LabelBenign
	if score >= bundle.Threshold {
		label = LabelMalicious
	}

	return ClassificationResult{
		Label:           label,
		Score:           score,
		Threshold:       bundle.Threshold,
		RiskLevel:       riskLevel(score),
		Confidence:      confidenceBand(score, bundle.Threshold),
		ImputedFeatures: imputed,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

func dot(w []float64, x FeatureVector) float64 {
	var sum float64
	for i := range w {
		sum += w[i] * x[i]
	}
	return sum
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func riskLevel(score float64) string {
	switch {
	case score < riskLowMax:
		return "low"
	case score < riskMediumMax:
		return "medium"
	default:
		return "high"
	}
}

// confidenceBand grades how far the score sits from the decision boundary.
func confidenceBand(score, threshold float64) string {
	d := math.Abs(score - threshold)
	switch {
	case d < 0.1:
		return "very_low"
	case d < 0.2:
		return "low"
	case d < 0.3:
		return "medium"
	case d < 0.4:
		return "high"
	default:
		return "very_high"
	}
}
