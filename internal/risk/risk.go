// Package risk maps fraud probabilities to risk levels and confidence
// percentages.
package risk

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Level buckets a probability into High/Medium/Low. Thresholds are
// exclusive lower bounds: 0.7 itself is Medium, 0.4 itself is Low.
func Level(probability float64) string {
	if probability > 0.7 {
		return domain.RiskHigh
	}
	if probability > 0.4 {
		return domain.RiskMedium
	}
	return domain.RiskLow
}

// UncertaintyConfidence is the legacy confidence scheme: distance from
// the 0.5 decision boundary scaled to 0..100. Only the raw model path
// uses it; it answers "how sure is the model", not "how fraud-like".
func UncertaintyConfidence(probability float64) float64 {
	return round2(math.Abs(probability-0.5) * 200)
}

// ProbabilityConfidence is the enhanced confidence scheme: the fraud
// probability itself as a percentage. Pipelines that fuse or boost the
// probability use this one; the two schemes are not interchangeable.
func ProbabilityConfidence(probability float64) float64 {
	return round2(probability * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
