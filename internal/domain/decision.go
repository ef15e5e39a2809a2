package domain

import (
	"math"
	"time"
)

// Final decision labels.
const (
	LabelFraud      = "Fraud"
	LabelLegitimate = "Legitimate"
	LabelError      = "Error"
)

// Risk level buckets derived from the fused probability.
const (
	RiskHigh    = "High"
	RiskMedium  = "Medium"
	RiskLow     = "Low"
	RiskUnknown = "Unknown"
)

// DecisionResult is the complete verdict for one transaction: the fused
// label plus the audit trail of how it was reached. RawModelLabel and
// RawModelProbability preserve the classifier's untouched output so that
// later calibration can rank and revert against it.
type DecisionResult struct {
	TransactionID string `json:"transaction_id"`
	CustomerID    string `json:"customer_id"`

	Label       string  `json:"final_label"`
	Probability float64 `json:"fraud_probability"`
	RiskLevel   string  `json:"risk_level"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason,omitempty"`

	RuleFlags   []string `json:"rule_flags"`
	RiskFactors []string `json:"risk_factors"`

	RawModelLabel       string  `json:"raw_model_prediction"`
	RawModelProbability float64 `json:"raw_model_probability"`

	DemoBoosted        bool `json:"demo_boosted"`
	SimulationOverride bool `json:"simulation_override"`

	ModelVersion string    `json:"model_version,omitempty"`
	ScoredAt     time.Time `json:"timestamp"`

	// Err carries the failure detail when Label is Error.
	Err string `json:"error,omitempty"`
}

// IsFraud reports whether the fused label is Fraud.
func (d *DecisionResult) IsFraud() bool { return d.Label == LabelFraud }

// LegacyVerdict is the response shape of the step-based scoring path:
// the raw classifier output with uncertainty-distance confidence and no
// rule involvement.
type LegacyVerdict struct {
	IsFraud     int     `json:"is_fraud"`
	Probability float64 `json:"fraud_probability"`
	RiskLevel   string  `json:"risk_level"`
	Confidence  float64 `json:"confidence"`
	ScoredAt    string  `json:"prediction_timestamp"`
}

// OverlayEntry is the flattened, display-oriented projection of a
// decision plus the transaction attributes dashboards render.
type OverlayEntry struct {
	TransactionID  string  `json:"transaction_id"`
	CustomerID     string  `json:"customer_id"`
	Amount         float64 `json:"transaction_amount"`
	Channel        string  `json:"channel"`
	Location       string  `json:"location"`
	Hour           int     `json:"hour"`
	AccountAgeDays int     `json:"account_age_days"`
	KYCVerified    string  `json:"kyc_verified"`

	Label       string  `json:"final_label"`
	IsFraud     int     `json:"is_fraud"`
	Probability float64 `json:"fraud_probability"`
	RiskLevel   string  `json:"risk_level"`

	Override    bool   `json:"simulation_override"`
	DemoBoosted bool   `json:"demo_boosted"`
	Timestamp   string `json:"timestamp"`
}

// ChannelSummary is a per-channel rollup over overlay entries.
type ChannelSummary struct {
	Channel    string  `json:"channel"`
	Total      int     `json:"total"`
	FraudCount int     `json:"fraud_count"`
	FraudRate  float64 `json:"fraud_rate"`
	AvgAmount  float64 `json:"avg_amount"`
}

// OverlaySnapshot is a point-in-time view of the overlay buffer.
type OverlaySnapshot struct {
	Total       int              `json:"total"`
	FraudCount  int              `json:"fraud_count"`
	FraudRate   float64          `json:"fraud_rate"`
	LastUpdated string           `json:"last_updated,omitempty"`
	Entries     []OverlayEntry   `json:"transactions"`
	Channels    []ChannelSummary `json:"channel_summary"`
}

// BatchSummary is the outcome of one batch calibration run.
type BatchSummary struct {
	SimulationID        string            `json:"simulation_id"`
	TotalProcessed      int               `json:"total_processed"`
	FraudulentCount     int               `json:"fraudulent_count"`
	FraudRate           float64           `json:"fraud_rate"`
	AvgFraudProbability float64           `json:"avg_fraud_probability"`
	ProcessingSeconds   float64           `json:"processing_time_seconds"`
	ThroughputPerSecond float64           `json:"throughput_per_second"`
	Results             []*DecisionResult `json:"results"`
}

// Round2 rounds to two decimal places, the precision every percentage
// and probability leaves the engine with.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
