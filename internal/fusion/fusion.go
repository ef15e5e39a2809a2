// Package fusion settles classifier verdicts and rule engine output
// into final fraud decisions.
//
// Two strategies exist. RuleFusion lets business rules override the
// model and explains the outcome in a reason string; DemoBoost
// amplifies multi-factor transactions for simulation batches. A
// transaction is settled by exactly one of them, never both.
package fusion

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/risk"
)

// Input carries one transaction's classifier verdict and rule engine
// output into a fusion strategy.
type Input struct {
	TxID         string
	CustomerID   string
	Amount       float64
	ModelLabel   int
	Probability  float64
	ModelVersion string
	RuleHits     []domain.RuleHit
	FactorHits   []domain.RuleHit
	ScoredAt     time.Time
}

// Strategy produces the final decision for one transaction.
type Strategy interface {
	Fuse(input *Input) *domain.DecisionResult
}

// RuleFusion applies the rule override policy: a rule hit flips the
// verdict to fraud once the model probability clears a floor, and a
// sufficiently confident model flags fraud on its own. The probability
// itself is never adjusted, only the label.
type RuleFusion struct {
	// ModelAloneThreshold is the probability at which the classifier
	// flags fraud without any rule support.
	ModelAloneThreshold float64

	// StrongRuleFloor and WeakRuleFloor are the minimum probabilities
	// a rule hit needs before it can override the model label.
	StrongRuleFloor float64
	WeakRuleFloor   float64
}

// NewRuleFusion returns a RuleFusion with the production thresholds.
func NewRuleFusion() *RuleFusion {
	return &RuleFusion{
		ModelAloneThreshold: 0.7,
		StrongRuleFloor:     0.3,
		WeakRuleFloor:       0.2,
	}
}

// Fuse settles the verdict, first match wins.
func (f *RuleFusion) Fuse(input *Input) *domain.DecisionResult {
	flagged := len(input.RuleHits) > 0

	final := input.ModelLabel
	switch {
	case flagged && input.Probability > f.StrongRuleFloor:
		final = 1
	case input.Probability >= f.ModelAloneThreshold:
		final = 1
	case flagged && input.Probability > f.WeakRuleFloor:
		final = 1
	}

	result := newResult(input)
	result.Label = labelString(final)
	result.Probability = input.Probability
	result.RiskLevel = risk.Level(input.Probability)
	result.Confidence = risk.ProbabilityConfidence(input.Probability)
	result.Reason = f.reason(result, input.Amount)
	return result
}

// reason builds the audit string. Risk factors take priority over the
// model score even when the rules did not change the verdict.
func (f *RuleFusion) reason(result *domain.DecisionResult, amount float64) string {
	switch {
	case len(result.RiskFactors) >= 2:
		return "multiple risk indicators: " + strings.Join(result.RiskFactors, ", ")
	case len(result.RiskFactors) == 1:
		return "risk factor identified: " + result.RiskFactors[0]
	case result.Label == domain.LabelFraud && result.Probability >= f.ModelAloneThreshold:
		return fmt.Sprintf("high ML fraud risk score (%.2f)", result.Probability)
	case result.Label == domain.LabelFraud:
		return fmt.Sprintf("moderate fraud risk (score: %.2f)", result.Probability)
	default:
		return fmt.Sprintf("low fraud risk; normal pattern for amount $%s",
			humanize.CommafWithDigits(amount, 2))
	}
}

// DemoBoost inflates multi-factor transactions so simulation batches
// surface visible fraud. Two or more risk factors force a fraud label,
// lift the probability per factor up to a cap, and pin the risk level
// to High. Confidence is always recomputed from the settled
// probability, boosted or not.
type DemoBoost struct {
	// MinFactors is how many risk factors trigger the boost.
	MinFactors int

	// PerFactorLift is added to the probability for each risk factor.
	PerFactorLift float64

	// ProbabilityCap bounds the boosted probability.
	ProbabilityCap float64
}

// NewDemoBoost returns a DemoBoost with the production settings.
func NewDemoBoost() *DemoBoost {
	return &DemoBoost{
		MinFactors:     2,
		PerFactorLift:  0.15,
		ProbabilityCap: 0.99,
	}
}

// Fuse applies the boost when enough risk factors are present.
func (b *DemoBoost) Fuse(input *Input) *domain.DecisionResult {
	result := newResult(input)

	label := input.ModelLabel
	prob := input.Probability
	level := risk.Level(prob)

	if len(input.FactorHits) >= b.MinFactors {
		label = 1
		prob = math.Min(b.ProbabilityCap, prob+b.PerFactorLift*float64(len(input.FactorHits)))
		level = domain.RiskHigh
	}

	result.Label = labelString(label)
	result.Probability = prob
	result.RiskLevel = level
	result.Confidence = risk.ProbabilityConfidence(prob)
	result.DemoBoosted = label == 1 && input.ModelLabel == 0
	return result
}

func newResult(input *Input) *domain.DecisionResult {
	txID := input.TxID
	if txID == "" {
		txID = input.CustomerID
	}
	return &domain.DecisionResult{
		TransactionID:       txID,
		CustomerID:          input.CustomerID,
		RuleFlags:           flagNames(input.RuleHits),
		RiskFactors:         factorTexts(input.FactorHits),
		RawModelLabel:       labelString(input.ModelLabel),
		RawModelProbability: input.Probability,
		ModelVersion:        input.ModelVersion,
		ScoredAt:            input.ScoredAt,
	}
}

func labelString(label int) string {
	if label == 1 {
		return domain.LabelFraud
	}
	return domain.LabelLegitimate
}

func flagNames(hits []domain.RuleHit) []string {
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Name)
	}
	return names
}

func factorTexts(hits []domain.RuleHit) []string {
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Factor)
	}
	return texts
}
