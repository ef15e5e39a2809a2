package domain

// RuleConfig defines a single boolean scoring rule. Rules are CEL
// expressions over the transaction attributes; a rule that evaluates
// to true "fires". Declaration order is meaningful: fired rules are
// always reported in the order their configs were loaded.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression; must evaluate to a boolean.
	Expression string `json:"expression"`

	// Factor is the human-readable display text emitted when the rule
	// fires in a display rule set. Decision rule sets emit Name.
	Factor string `json:"factor,omitempty"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleHit is the outcome of one fired rule.
type RuleHit struct {
	RuleID string `json:"rule_id"`
	Name   string `json:"name"`
	Factor string `json:"factor,omitempty"`

	// ProcessMs is the evaluation time in milliseconds.
	ProcessMs int64 `json:"process_ms"`
}

// Decision rule names, in evaluation order.
const (
	RuleHighValueNewAccount     = "HIGH_VALUE_NEW_ACCOUNT"
	RuleUnverifiedKYCHighAmount = "UNVERIFIED_KYC_HIGH_AMOUNT"
	RuleUnusualHour             = "UNUSUAL_HOUR"
	RuleVeryHighAmount          = "VERY_HIGH_AMOUNT"
	RuleNewAccountUnverified    = "NEW_ACCOUNT_UNVERIFIED"
	RuleHighChannelWithdrawal   = "HIGH_CHANNEL_WITHDRAWAL"
)

// Display risk factor text, in evaluation order.
const (
	FactorHighAmount   = "High transaction amount"
	FactorNewAccount   = "New account (< 30 days)"
	FactorUnusualTime  = "Unusual transaction time"
	FactorKYCMissing   = "KYC not verified"
	FactorHighValueATM = "High-value ATM transaction"
)
