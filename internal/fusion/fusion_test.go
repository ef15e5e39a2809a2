package fusion

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func ruleHits(names ...string) []domain.RuleHit {
	hits := make([]domain.RuleHit, len(names))
	for i, n := range names {
		hits[i] = domain.RuleHit{RuleID: n, Name: n}
	}
	return hits
}

func factorHits(texts ...string) []domain.RuleHit {
	hits := make([]domain.RuleHit, len(texts))
	for i, f := range texts {
		hits[i] = domain.RuleHit{Factor: f}
	}
	return hits
}

func TestRuleFusionPolicy(t *testing.T) {
	fuser := NewRuleFusion()

	cases := []struct {
		name        string
		modelLabel  int
		probability float64
		flagged     bool
		want        string
	}{
		{"FlagWithModerateProbability", 0, 0.35, true, domain.LabelFraud},
		{"ModelAloneAtThreshold", 0, 0.7, false, domain.LabelFraud},
		{"ModelAloneAboveThreshold", 1, 0.85, false, domain.LabelFraud},
		{"FlagAtStrongFloorFallsToWeakFloor", 0, 0.3, true, domain.LabelFraud},
		{"FlagJustAboveWeakFloor", 0, 0.21, true, domain.LabelFraud},
		{"FlagAtWeakFloor", 0, 0.2, true, domain.LabelLegitimate},
		{"FlagWithNegligibleProbability", 0, 0.15, true, domain.LabelLegitimate},
		{"NoFlagsTrustModelLegitimate", 0, 0.65, false, domain.LabelLegitimate},
		{"NoFlagsTrustModelFraud", 1, 0.55, false, domain.LabelFraud},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			input := &Input{
				TxID:        "tx-001",
				ModelLabel:  c.modelLabel,
				Probability: c.probability,
			}
			if c.flagged {
				input.RuleHits = ruleHits(domain.RuleVeryHighAmount)
			}

			result := fuser.Fuse(input)
			if result.Label != c.want {
				t.Errorf("expected %s, got %s", c.want, result.Label)
			}
			if result.Probability != c.probability {
				t.Errorf("fusion must not adjust probability: expected %.2f, got %.2f",
					c.probability, result.Probability)
			}
		})
	}
}

func TestRuleFusionResult(t *testing.T) {
	fuser := NewRuleFusion()

	t.Run("RawVerdictPreserved", func(t *testing.T) {
		result := fuser.Fuse(&Input{
			TxID:        "tx-002",
			CustomerID:  "CUST00042",
			ModelLabel:  0,
			Probability: 0.35,
			RuleHits:    ruleHits(domain.RuleUnusualHour),
		})

		if result.Label != domain.LabelFraud {
			t.Fatalf("expected fraud after rule override, got %s", result.Label)
		}
		if result.RawModelLabel != domain.LabelLegitimate {
			t.Errorf("expected raw label preserved as Legitimate, got %s", result.RawModelLabel)
		}
		if result.RawModelProbability != 0.35 {
			t.Errorf("expected raw probability 0.35, got %.2f", result.RawModelProbability)
		}
		if len(result.RuleFlags) != 1 || result.RuleFlags[0] != domain.RuleUnusualHour {
			t.Errorf("expected rule flags [UNUSUAL_HOUR], got %v", result.RuleFlags)
		}
	})

	t.Run("RiskAndConfidenceFromProbability", func(t *testing.T) {
		result := fuser.Fuse(&Input{TxID: "tx-003", ModelLabel: 1, Probability: 0.82})

		if result.RiskLevel != domain.RiskHigh {
			t.Errorf("expected High risk at 0.82, got %s", result.RiskLevel)
		}
		if result.Confidence != 82.0 {
			t.Errorf("expected confidence 82.0, got %.2f", result.Confidence)
		}
	})

	t.Run("IdentifierFallsBackToCustomer", func(t *testing.T) {
		result := fuser.Fuse(&Input{CustomerID: "CUST00007", Probability: 0.1})
		if result.TransactionID != "CUST00007" {
			t.Errorf("expected customer id as transaction id, got %s", result.TransactionID)
		}
	})

	t.Run("TimestampCarried", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
		result := fuser.Fuse(&Input{TxID: "tx-004", Probability: 0.1, ScoredAt: at})
		if !result.ScoredAt.Equal(at) {
			t.Errorf("expected scored-at %v, got %v", at, result.ScoredAt)
		}
	})
}

func TestRuleFusionReason(t *testing.T) {
	fuser := NewRuleFusion()

	t.Run("MultipleFactors", func(t *testing.T) {
		result := fuser.Fuse(&Input{
			ModelLabel:  0,
			Probability: 0.35,
			RuleHits:    ruleHits(domain.RuleHighValueNewAccount),
			FactorHits:  factorHits(domain.FactorHighAmount, domain.FactorNewAccount),
		})

		want := "multiple risk indicators: High transaction amount, New account (< 30 days)"
		if result.Reason != want {
			t.Errorf("expected %q, got %q", want, result.Reason)
		}
	})

	t.Run("SingleFactor", func(t *testing.T) {
		result := fuser.Fuse(&Input{
			ModelLabel:  0,
			Probability: 0.1,
			FactorHits:  factorHits(domain.FactorKYCMissing),
		})

		want := "risk factor identified: KYC not verified"
		if result.Reason != want {
			t.Errorf("expected %q, got %q", want, result.Reason)
		}
	})

	t.Run("FactorsOutrankModelScore", func(t *testing.T) {
		// A single factor still wins over a 0.85 model score.
		result := fuser.Fuse(&Input{
			ModelLabel:  1,
			Probability: 0.85,
			FactorHits:  factorHits(domain.FactorUnusualTime),
		})

		want := "risk factor identified: Unusual transaction time"
		if result.Reason != want {
			t.Errorf("expected %q, got %q", want, result.Reason)
		}
	})

	t.Run("HighModelScore", func(t *testing.T) {
		result := fuser.Fuse(&Input{ModelLabel: 1, Probability: 0.85})

		want := "high ML fraud risk score (0.85)"
		if result.Reason != want {
			t.Errorf("expected %q, got %q", want, result.Reason)
		}
	})

	t.Run("ModerateFraud", func(t *testing.T) {
		// Rules flipped the label but the score stays below 0.7.
		result := fuser.Fuse(&Input{
			ModelLabel:  0,
			Probability: 0.35,
			RuleHits:    ruleHits(domain.RuleUnverifiedKYCHighAmount),
		})

		want := "moderate fraud risk (score: 0.35)"
		if result.Reason != want {
			t.Errorf("expected %q, got %q", want, result.Reason)
		}
	})

	t.Run("LowRiskFormatsAmount", func(t *testing.T) {
		result := fuser.Fuse(&Input{
			ModelLabel:  0,
			Probability: 0.05,
			Amount:      1234.56,
		})

		want := "low fraud risk; normal pattern for amount $1,234.56"
		if result.Reason != want {
			t.Errorf("expected %q, got %q", want, result.Reason)
		}
	})
}

func TestDemoBoost(t *testing.T) {
	boost := NewDemoBoost()

	t.Run("TwoFactorsFlipVerdict", func(t *testing.T) {
		result := boost.Fuse(&Input{
			TxID:        "tx-010",
			ModelLabel:  0,
			Probability: 0.3,
			FactorHits:  factorHits(domain.FactorHighAmount, domain.FactorNewAccount),
		})

		if result.Label != domain.LabelFraud {
			t.Fatalf("expected Fraud, got %s", result.Label)
		}
		if result.Probability != 0.6 {
			t.Errorf("expected boosted probability 0.6, got %.4f", result.Probability)
		}
		if result.RiskLevel != domain.RiskHigh {
			t.Errorf("expected High risk, got %s", result.RiskLevel)
		}
		if result.Confidence != 60.0 {
			t.Errorf("expected confidence 60.0, got %.2f", result.Confidence)
		}
		if !result.DemoBoosted {
			t.Error("expected demo_boosted flag")
		}
		if result.RawModelProbability != 0.3 {
			t.Errorf("expected raw probability 0.3 preserved, got %.2f", result.RawModelProbability)
		}
		if result.RawModelLabel != domain.LabelLegitimate {
			t.Errorf("expected raw label Legitimate, got %s", result.RawModelLabel)
		}
	})

	t.Run("BoostCapped", func(t *testing.T) {
		result := boost.Fuse(&Input{
			ModelLabel:  1,
			Probability: 0.9,
			FactorHits:  factorHits("a", "b", "c"),
		})

		if result.Probability != 0.99 {
			t.Errorf("expected probability capped at 0.99, got %.4f", result.Probability)
		}
		if result.Confidence != 99.0 {
			t.Errorf("expected confidence 99.0, got %.2f", result.Confidence)
		}
		if result.DemoBoosted {
			t.Error("model already said fraud, boost flag must stay false")
		}
	})

	t.Run("SingleFactorNoBoost", func(t *testing.T) {
		result := boost.Fuse(&Input{
			ModelLabel:  1,
			Probability: 0.62,
			FactorHits:  factorHits(domain.FactorHighAmount),
		})

		if result.Label != domain.LabelFraud {
			t.Errorf("expected model verdict kept, got %s", result.Label)
		}
		if result.Probability != 0.62 {
			t.Errorf("expected probability untouched, got %.4f", result.Probability)
		}
		if result.RiskLevel != domain.RiskMedium {
			t.Errorf("expected Medium risk at 0.62, got %s", result.RiskLevel)
		}
		if result.DemoBoosted {
			t.Error("boost flag set without a boost")
		}
	})

	t.Run("ConfidenceAlwaysProbabilityBased", func(t *testing.T) {
		// Even without a boost the confidence switches to the
		// probability scheme, not distance from 0.5.
		result := boost.Fuse(&Input{ModelLabel: 0, Probability: 0.2})

		if result.Confidence != 20.0 {
			t.Errorf("expected confidence 20.0, got %.2f", result.Confidence)
		}
		if result.Label != domain.LabelLegitimate {
			t.Errorf("expected Legitimate, got %s", result.Label)
		}
	})

	t.Run("NoReasonInBoostMode", func(t *testing.T) {
		result := boost.Fuse(&Input{
			ModelLabel:  0,
			Probability: 0.3,
			FactorHits:  factorHits("a", "b"),
		})
		if result.Reason != "" {
			t.Errorf("boost mode produces no reason, got %q", result.Reason)
		}
	})
}
