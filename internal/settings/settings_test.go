package settings

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry(nil)

	section, err := r.Section(SectionModelThresholds)
	if err != nil {
		t.Fatalf("Section failed: %v", err)
	}

	thresholds, ok := section.(ModelThresholds)
	if !ok {
		t.Fatalf("expected ModelThresholds, got %T", section)
	}
	if thresholds.HighRiskThreshold != 0.7 {
		t.Errorf("expected HighRiskThreshold 0.7, got %v", thresholds.HighRiskThreshold)
	}
	if thresholds.MediumRiskThreshold != 0.4 {
		t.Errorf("expected MediumRiskThreshold 0.4, got %v", thresholds.MediumRiskThreshold)
	}
	if thresholds.HighValueAmount != 50000 {
		t.Errorf("expected HighValueAmount 50000, got %v", thresholds.HighValueAmount)
	}
	if thresholds.NewAccountDays != 30 {
		t.Errorf("expected NewAccountDays 30, got %d", thresholds.NewAccountDays)
	}

	snap, _ := r.All()
	if !snap.NotificationRules.EmailEnabled || snap.NotificationRules.SMSEnabled {
		t.Errorf("unexpected notification defaults: %+v", snap.NotificationRules)
	}
	if snap.NotificationRules.DigestFrequency != "daily" {
		t.Errorf("expected daily digest, got %s", snap.NotificationRules.DigestFrequency)
	}
	if snap.SystemConfig.AutoBlockThreshold != 0.95 {
		t.Errorf("expected AutoBlockThreshold 0.95, got %v", snap.SystemConfig.AutoBlockThreshold)
	}
	if snap.SystemConfig.APIRateLimit != 1000 {
		t.Errorf("expected APIRateLimit 1000, got %d", snap.SystemConfig.APIRateLimit)
	}
	if snap.UserPreferences.Theme != "light" {
		t.Errorf("expected light theme, got %s", snap.UserPreferences.Theme)
	}
}

func TestRegistryUpdate(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	now := t0
	r := NewRegistry(func() time.Time { return now })

	t.Run("PartialPayloadKeepsOtherFields", func(t *testing.T) {
		now = t1

		updated, err := r.Update(SectionModelThresholds, []byte(`{"high_risk_threshold": 0.8}`))
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		thresholds := updated.(ModelThresholds)
		if thresholds.HighRiskThreshold != 0.8 {
			t.Errorf("expected HighRiskThreshold 0.8, got %v", thresholds.HighRiskThreshold)
		}
		if thresholds.NewAccountDays != 30 {
			t.Errorf("expected NewAccountDays to keep default 30, got %d", thresholds.NewAccountDays)
		}

		_, lastUpdated := r.All()
		if !lastUpdated.Equal(t1) {
			t.Errorf("expected lastUpdated %v, got %v", t1, lastUpdated)
		}
	})

	t.Run("UpdateVisibleToReaders", func(t *testing.T) {
		_, err := r.Update(SectionUserPreferences, []byte(`{"theme": "dark"}`))
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		section, err := r.Section(SectionUserPreferences)
		if err != nil {
			t.Fatalf("Section failed: %v", err)
		}
		if section.(UserPreferences).Theme != "dark" {
			t.Errorf("expected dark theme after update, got %+v", section)
		}
	})

	t.Run("UnknownSection", func(t *testing.T) {
		if _, err := r.Section("nope"); !errors.Is(err, ErrUnknownSection) {
			t.Errorf("expected ErrUnknownSection, got %v", err)
		}
		if _, err := r.Update("nope", []byte(`{}`)); !errors.Is(err, ErrUnknownSection) {
			t.Errorf("expected ErrUnknownSection, got %v", err)
		}
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		if _, err := r.Update(SectionSystemConfig, []byte(`{`)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("expected ErrInvalidPayload, got %v", err)
		}
	})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = r.Update(SectionUserPreferences, []byte(`{"dashboard_refresh_interval": 15}`))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = r.Section(SectionUserPreferences)
				_, _ = r.All()
			}
		}()
	}
	wg.Wait()

	section, err := r.Section(SectionUserPreferences)
	if err != nil {
		t.Fatalf("Section failed: %v", err)
	}
	if section.(UserPreferences).DashboardRefreshInterval != 15 {
		t.Errorf("expected refresh interval 15, got %+v", section)
	}
}
