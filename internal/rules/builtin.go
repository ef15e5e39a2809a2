package rules

import "github.com/opensource-finance/kestrel/internal/domain"

// DecisionRules returns the built-in decision rule set. These produce
// the machine-readable flags the fusion policy consumes. Slice order is
// the evaluation and reporting order; conditions are conjunctive and
// deliberately overlap (a transaction can trip several).
func DecisionRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "decision-001",
			Name:        domain.RuleHighValueNewAccount,
			Description: "High amount from a recently opened account",
			Expression:  "amount > 10000.0 && account_age_days < 30",
			Enabled:     true,
		},
		{
			ID:          "decision-002",
			Name:        domain.RuleUnverifiedKYCHighAmount,
			Description: "Unverified KYC moving a high amount",
			Expression:  "!kyc_verified && amount > 5000.0",
			Enabled:     true,
		},
		{
			ID:          "decision-003",
			Name:        domain.RuleUnusualHour,
			Description: "Meaningful amount in the dead-of-night window",
			Expression:  "hour >= 2 && hour <= 5 && amount > 3000.0",
			Enabled:     true,
		},
		{
			ID:          "decision-004",
			Name:        domain.RuleVeryHighAmount,
			Description: "Amount beyond the very-high threshold",
			Expression:  "amount > 50000.0",
			Enabled:     true,
		},
		{
			ID:          "decision-005",
			Name:        domain.RuleNewAccountUnverified,
			Description: "Account under a week old without KYC",
			Expression:  "account_age_days < 7 && !kyc_verified",
			Enabled:     true,
		},
		{
			ID:          "decision-006",
			Name:        domain.RuleHighChannelWithdrawal,
			Description: "Large cash-capable channel withdrawal",
			Expression:  "(channel == 'ATM' || channel == 'POS') && amount > 20000.0",
			Enabled:     true,
		},
	}
}

// FactorRules returns the built-in display rule set. These produce the
// human-readable risk factors shown in UIs and reason text. The windows
// intentionally differ from the decision set (the display "unusual
// time" band is wider than the decision rule's), so the two sets are
// computed and exposed separately.
func FactorRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:         "factor-001",
			Name:       "FACTOR_HIGH_AMOUNT",
			Factor:     domain.FactorHighAmount,
			Expression: "amount > 10000.0",
			Enabled:    true,
		},
		{
			ID:         "factor-002",
			Name:       "FACTOR_NEW_ACCOUNT",
			Factor:     domain.FactorNewAccount,
			Expression: "account_age_days < 30",
			Enabled:    true,
		},
		{
			ID:         "factor-003",
			Name:       "FACTOR_UNUSUAL_TIME",
			Factor:     domain.FactorUnusualTime,
			Expression: "hour < 6 || hour > 22",
			Enabled:    true,
		},
		{
			ID:         "factor-004",
			Name:       "FACTOR_KYC_MISSING",
			Factor:     domain.FactorKYCMissing,
			Expression: "!kyc_verified",
			Enabled:    true,
		},
		{
			ID:         "factor-005",
			Name:       "FACTOR_HIGH_VALUE_ATM",
			Factor:     domain.FactorHighValueATM,
			Expression: "channel == 'ATM' && amount > 20000.0",
			Enabled:    true,
		},
	}
}
