package features

import (
	"math"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engineered feature names. The classifier artifact declares which of
// these it consumes; the builder always produces the full set.
const (
	FeatAccountAgeDays = "account_age_days"
	FeatAmount         = "transaction_amount"
	FeatHour           = "hour"
	FeatWeekday        = "weekday"
	FeatMonth          = "month"
	FeatIsHighValue    = "is_high_value"
	FeatAmountLog      = "transaction_amount_log"
	FeatChannelATM     = "channel_Atm"
	FeatChannelMobile  = "channel_Mobile"
	FeatChannelPOS     = "channel_Pos"
	FeatChannelWeb     = "channel_Web"
	FeatKYCNo          = "kyc_verified_No"
	FeatKYCYes         = "kyc_verified_Yes"
)

// highValueThreshold marks the amount above which is_high_value flips.
const highValueThreshold = 5000

// Build assembles the engineered feature vector for a transaction.
// Channel and KYC arrive as free text and are normalized here; weekday
// and month derive from the supplied clock reading (UTC), so callers
// control determinism by controlling now.
func Build(amount float64, accountAgeDays, hour int, channel, kycStatus string, now time.Time) *Vector {
	now = now.UTC()

	v := NewVector()
	v.Set(FeatAccountAgeDays, float64(accountAgeDays))
	v.Set(FeatAmount, amount)
	v.Set(FeatHour, float64(hour))
	v.Set(FeatWeekday, float64(mondayIndexed(now.Weekday())))
	v.Set(FeatMonth, float64(int(now.Month())))
	v.Set(FeatIsHighValue, boolFeature(amount > highValueThreshold))
	v.Set(FeatAmountLog, amountLog(amount))
	setChannelFlags(v, channel)
	setKYCFlags(v, kycStatus)
	return v
}

// BuildFromTransaction is Build over an already-normalized transaction.
func BuildFromTransaction(tx *domain.Transaction, now time.Time) *Vector {
	return Build(tx.Amount, tx.AccountAgeDays, tx.Hour, string(tx.Channel), domain.KYCString(tx.KYCVerified), now)
}

// BuildLegacy assembles the feature vector for the step-indexed legacy
// schema. Time-of-day features derive from the step counter instead of
// a clock: hour = step mod 24, weekday = (step div 24) mod 7, month =
// (step div 720) mod 12. The legacy schema carries no account age, and
// channel/KYC flags only when the sender pre-encoded them; unset flags
// stay 0.
func BuildLegacy(tx *domain.LegacyTransaction) *Vector {
	v := NewVector()
	v.Set(FeatAccountAgeDays, 0)
	v.Set(FeatAmount, tx.Amount)
	v.Set(FeatHour, float64(tx.Step%24))
	v.Set(FeatWeekday, float64((tx.Step/24)%7))
	v.Set(FeatMonth, float64((tx.Step/720)%12))
	v.Set(FeatIsHighValue, boolFeature(tx.Amount > highValueThreshold))
	v.Set(FeatAmountLog, amountLog(tx.Amount))
	v.Set(FeatChannelATM, float64(tx.ChannelATM))
	v.Set(FeatChannelMobile, float64(tx.ChannelMobile))
	v.Set(FeatChannelPOS, float64(tx.ChannelPOS))
	v.Set(FeatChannelWeb, float64(tx.ChannelWeb))
	v.Set(FeatKYCNo, float64(tx.KYCNo))
	v.Set(FeatKYCYes, float64(tx.KYCYes))
	return v
}

// amountLog is ln(1+amount) for positive amounts, 0 otherwise.
func amountLog(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return math.Log1p(amount)
}

// setChannelFlags sets exactly one channel flag. Unrecognized or empty
// channel text defaults to web so the one-hot group never goes all-zero,
// which would break scaler expectations downstream.
func setChannelFlags(v *Vector, channel string) {
	v.Set(FeatChannelATM, 0)
	v.Set(FeatChannelMobile, 0)
	v.Set(FeatChannelPOS, 0)
	v.Set(FeatChannelWeb, 0)

	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "atm":
		v.Set(FeatChannelATM, 1)
	case "mobile":
		v.Set(FeatChannelMobile, 1)
	case "pos":
		v.Set(FeatChannelPOS, 1)
	default:
		v.Set(FeatChannelWeb, 1)
	}
}

// setKYCFlags sets exactly one KYC flag: "yes" in any casing verifies,
// everything else does not.
func setKYCFlags(v *Vector, kycStatus string) {
	if strings.ToLower(strings.TrimSpace(kycStatus)) == "yes" {
		v.Set(FeatKYCNo, 0)
		v.Set(FeatKYCYes, 1)
		return
	}
	v.Set(FeatKYCNo, 1)
	v.Set(FeatKYCYes, 0)
}

// boolFeature renders a condition as a 0/1 feature.
func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// mondayIndexed converts Go's Sunday-first weekday to Monday=0..Sunday=6.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}
