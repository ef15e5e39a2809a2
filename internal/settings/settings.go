// Package settings holds the dashboard-facing configuration registry.
//
// The registry is display state: the scoring pipeline's cutoffs are
// compiled into the rule and fusion packages, and editing these values
// does not change verdicts.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Section names accepted by Section and Update.
const (
	SectionModelThresholds   = "model_thresholds"
	SectionNotificationRules = "notification_rules"
	SectionSystemConfig      = "system_config"
	SectionUserPreferences   = "user_preferences"
)

var (
	ErrUnknownSection = errors.New("unknown settings section")
	ErrInvalidPayload = errors.New("invalid settings payload")
)

// ModelThresholds mirrors the decision pipeline's cutoffs for display.
type ModelThresholds struct {
	HighRiskThreshold   float64 `json:"high_risk_threshold"`
	MediumRiskThreshold float64 `json:"medium_risk_threshold"`
	HighValueAmount     float64 `json:"high_value_amount"`
	NewAccountDays      int     `json:"new_account_days"`
}

// NotificationRules controls alert delivery preferences.
type NotificationRules struct {
	EmailEnabled      bool   `json:"email_enabled"`
	SMSEnabled        bool   `json:"sms_enabled"`
	HighRiskImmediate bool   `json:"high_risk_immediate"`
	BatchDigest       bool   `json:"batch_digest"`
	DigestFrequency   string `json:"digest_frequency"`
}

// SystemConfig holds operational toggles.
type SystemConfig struct {
	AutoBlockThreshold    float64 `json:"auto_block_threshold"`
	ManualReviewThreshold float64 `json:"manual_review_threshold"`
	MonitoringEnabled     bool    `json:"monitoring_enabled"`
	APIRateLimit          int     `json:"api_rate_limit"`
}

// UserPreferences holds per-operator display preferences.
type UserPreferences struct {
	Theme                    string `json:"theme"`
	NotificationsEnabled     bool   `json:"notifications_enabled"`
	DashboardRefreshInterval int    `json:"dashboard_refresh_interval"`
}

// Snapshot is the full registry state.
type Snapshot struct {
	ModelThresholds   ModelThresholds   `json:"model_thresholds"`
	NotificationRules NotificationRules `json:"notification_rules"`
	SystemConfig      SystemConfig      `json:"system_config"`
	UserPreferences   UserPreferences   `json:"user_preferences"`
}

// Registry is a process-local settings store guarded by a RWMutex.
type Registry struct {
	mu          sync.RWMutex
	thresholds  ModelThresholds
	rules       NotificationRules
	system      SystemConfig
	prefs       UserPreferences
	lastUpdated time.Time
	clock       func() time.Time
}

// NewRegistry creates a registry seeded with the default settings.
// A nil clock uses wall time.
func NewRegistry(clock func() time.Time) *Registry {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	r := &Registry{
		thresholds: ModelThresholds{
			HighRiskThreshold:   0.7,
			MediumRiskThreshold: 0.4,
			HighValueAmount:     50000,
			NewAccountDays:      30,
		},
		rules: NotificationRules{
			EmailEnabled:      true,
			SMSEnabled:        false,
			HighRiskImmediate: true,
			BatchDigest:       true,
			DigestFrequency:   "daily",
		},
		system: SystemConfig{
			AutoBlockThreshold:    0.95,
			ManualReviewThreshold: 0.7,
			MonitoringEnabled:     true,
			APIRateLimit:          1000,
		},
		prefs: UserPreferences{
			Theme:                    "light",
			NotificationsEnabled:     true,
			DashboardRefreshInterval: 30,
		},
		clock: clock,
	}
	r.lastUpdated = clock()

	return r
}

// All returns the full registry state and when it last changed.
func (r *Registry) All() (Snapshot, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		ModelThresholds:   r.thresholds,
		NotificationRules: r.rules,
		SystemConfig:      r.system,
		UserPreferences:   r.prefs,
	}, r.lastUpdated
}

// Section returns one section's current settings by name.
func (r *Registry) Section(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch name {
	case SectionModelThresholds:
		return r.thresholds, nil
	case SectionNotificationRules:
		return r.rules, nil
	case SectionSystemConfig:
		return r.system, nil
	case SectionUserPreferences:
		return r.prefs, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, name)
	}
}

// Update replaces a section from a JSON payload and returns the new
// state. Fields absent from the payload keep their current values.
func (r *Registry) Update(name string, payload []byte) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch name {
	case SectionModelThresholds:
		next := r.thresholds
		if err := json.Unmarshal(payload, &next); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		r.thresholds = next
		r.lastUpdated = r.clock()
		return next, nil

	case SectionNotificationRules:
		next := r.rules
		if err := json.Unmarshal(payload, &next); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		r.rules = next
		r.lastUpdated = r.clock()
		return next, nil

	case SectionSystemConfig:
		next := r.system
		if err := json.Unmarshal(payload, &next); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		r.system = next
		r.lastUpdated = r.clock()
		return next, nil

	case SectionUserPreferences:
		next := r.prefs
		if err := json.Unmarshal(payload, &next); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		r.prefs = next
		r.lastUpdated = r.clock()
		return next, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, name)
	}
}
