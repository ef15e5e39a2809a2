package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTransaction marks a request that cannot be scored.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Channel is the payment channel a transaction arrived on.
type Channel string

const (
	ChannelATM    Channel = "ATM"
	ChannelMobile Channel = "Mobile"
	ChannelPOS    Channel = "POS"
	ChannelWeb    Channel = "Web"
)

// NormalizeChannel maps free-form channel text to a canonical Channel.
// Matching is case-insensitive and whitespace-tolerant; anything
// unrecognized (including empty) falls back to Web.
func NormalizeChannel(raw string) Channel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "atm":
		return ChannelATM
	case "mobile":
		return ChannelMobile
	case "pos":
		return ChannelPOS
	case "web":
		return ChannelWeb
	default:
		return ChannelWeb
	}
}

// NormalizeKYC maps free-form verification text to a boolean.
// "yes" (any case, padded or not) is verified; everything else is not.
func NormalizeKYC(raw string) bool {
	return strings.ToLower(strings.TrimSpace(raw)) == "yes"
}

// KYCString renders a KYC flag in the canonical Yes/No form used by
// stored records and display payloads.
func KYCString(verified bool) string {
	if verified {
		return "Yes"
	}
	return "No"
}

// Transaction is a single customer transaction submitted for scoring.
type Transaction struct {
	ID         string `json:"transaction_id"`
	CustomerID string `json:"customer_id"`

	Amount         float64 `json:"transaction_amount"`
	Channel        Channel `json:"channel"`
	Hour           int     `json:"hour"`
	AccountAgeDays int     `json:"account_age_days"`
	KYCVerified    bool    `json:"kyc_verified"`

	// Location is optional; batch runs assign a city when absent.
	Location string `json:"location,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// LegacyTransaction is the step-indexed schema kept for the original
// scoring endpoint. Time is a simulation step counter rather than a
// wall clock, balances travel alongside the amount, and categorical
// fields arrive pre-encoded as 0/1 integers. Field names and types
// mirror the legacy wire format exactly; the mixed tag casing is that
// schema's, not ours.
type LegacyTransaction struct {
	Step   int     `json:"step"`
	Type   int     `json:"type"`
	Amount float64 `json:"amount"`

	OldBalanceOrig float64 `json:"oldbalanceOrg"`
	NewBalanceOrig float64 `json:"newbalanceOrig"`
	OldBalanceDest float64 `json:"oldbalanceDest"`
	NewBalanceDest float64 `json:"newbalanceDest"`

	ErrorBalanceOrig float64 `json:"errorBalanceOrig"`
	ErrorBalanceDest float64 `json:"errorBalanceDest"`

	IsCashOut  int `json:"transactionType_CASH_OUT"`
	IsTransfer int `json:"transactionType_TRANSFER"`
	IsPayment  int `json:"transactionType_PAYMENT"`

	// Optional pre-encoded channel and KYC flags. Senders on the old
	// schema may supply them already one-hot; absent flags stay 0.
	ChannelATM    int `json:"channel_Atm"`
	ChannelMobile int `json:"channel_Mobile"`
	ChannelPOS    int `json:"channel_Pos"`
	ChannelWeb    int `json:"channel_Web"`
	KYCNo         int `json:"kyc_verified_No"`
	KYCYes        int `json:"kyc_verified_Yes"`
}

// TransactionRequest is the API payload for single and batch scoring.
// Channel and KYC arrive as free text and are normalized on conversion.
type TransactionRequest struct {
	TransactionID  string  `json:"transaction_id"`
	CustomerID     string  `json:"customer_id"`
	Amount         float64 `json:"transaction_amount"`
	Channel        string  `json:"channel"`
	Hour           int     `json:"hour"`
	AccountAgeDays int     `json:"account_age_days"`
	KYCVerified    string  `json:"kyc_verified"`
	Location       string  `json:"location,omitempty"`

	// Timestamp is an optional caller-supplied display time; batch runs
	// stamp the scoring time when absent.
	Timestamp string `json:"timestamp,omitempty"`
}

// Validate reports whether the request carries everything scoring needs.
// Channel and KYC text are never rejected here; normalization absorbs them.
// TransactionID is optional and falls back to CustomerID on conversion.
func (r *TransactionRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidTransaction)
	}
	if r.Amount < 0 {
		return fmt.Errorf("%w: transaction_amount must be non-negative", ErrInvalidTransaction)
	}
	if r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("%w: hour must be in [0,23]", ErrInvalidTransaction)
	}
	if r.AccountAgeDays < 0 {
		return fmt.Errorf("%w: account_age_days must be non-negative", ErrInvalidTransaction)
	}
	return nil
}

// ToTransaction converts a request to a Transaction domain object
// stamped with the current wall clock.
func (r *TransactionRequest) ToTransaction() *Transaction {
	return r.ToTransactionAt(time.Now().UTC())
}

// ToTransactionAt converts a request using the supplied clock reading.
func (r *TransactionRequest) ToTransactionAt(now time.Time) *Transaction {
	id := strings.TrimSpace(r.TransactionID)
	if id == "" {
		id = strings.TrimSpace(r.CustomerID)
	}
	return &Transaction{
		ID:             id,
		CustomerID:     r.CustomerID,
		Amount:         r.Amount,
		Channel:        NormalizeChannel(r.Channel),
		Hour:           r.Hour,
		AccountAgeDays: r.AccountAgeDays,
		KYCVerified:    NormalizeKYC(r.KYCVerified),
		Location:       strings.TrimSpace(r.Location),
		Timestamp:      now,
		CreatedAt:      now,
	}
}
