package datagen

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Count:        100,
		CustomerPool: 50,
		Window:       16 * 24 * time.Hour,
		Start:        time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Seed:         7,
	}
}

func TestGenerate(t *testing.T) {
	t.Run("CountRespected", func(t *testing.T) {
		ds, err := New(testConfig()).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ds.Transactions) != 100 {
			t.Errorf("expected 100 transactions, got %d", len(ds.Transactions))
		}
	})

	t.Run("DeterministicForSeed", func(t *testing.T) {
		first, err := New(testConfig()).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := New(testConfig()).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(first, second) {
			t.Error("expected identical output for identical seeds")
		}
	})

	t.Run("RiskyShareWithinBand", func(t *testing.T) {
		ds, err := New(testConfig()).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Risky amounts start at 15000; normal ones top out at 12000.
		risky := 0
		for _, tx := range ds.Transactions {
			if tx.Amount >= 15000 {
				risky++
			}
		}
		if risky < 8 || risky > 12 {
			t.Errorf("expected 8-12 fraud-leaning items out of 100, got %d", risky)
		}
	})

	t.Run("RiskyItemsLookRisky", func(t *testing.T) {
		ds, err := New(testConfig()).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, tx := range ds.Transactions {
			if tx.Amount < 15000 {
				continue
			}
			if tx.Hour > 5 {
				t.Errorf("%s: expected a night hour, got %d", tx.TransactionID, tx.Hour)
			}
			if tx.AccountAgeDays >= 30 {
				t.Errorf("%s: expected a young account, got %d days", tx.TransactionID, tx.AccountAgeDays)
			}
		}
	})

	t.Run("FieldsValid", func(t *testing.T) {
		ds, err := New(testConfig()).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		validChannel := map[string]bool{"Mobile": true, "ATM": true, "Web": true, "POS": true}
		for _, tx := range ds.Transactions {
			if !strings.HasPrefix(tx.TransactionID, "TXN") {
				t.Errorf("unexpected transaction id %s", tx.TransactionID)
			}
			if !strings.HasPrefix(tx.CustomerID, "CUST") || len(tx.CustomerID) != 9 {
				t.Errorf("unexpected customer id %s", tx.CustomerID)
			}
			if !validChannel[tx.Channel] {
				t.Errorf("unexpected channel %s", tx.Channel)
			}
			if tx.Hour < 0 || tx.Hour > 23 {
				t.Errorf("hour out of range: %d", tx.Hour)
			}
			if tx.KYCVerified != "Yes" && tx.KYCVerified != "No" {
				t.Errorf("unexpected kyc value %s", tx.KYCVerified)
			}
			if tx.Location == "" {
				t.Errorf("%s: expected a location", tx.TransactionID)
			}

			ts, err := time.Parse(time.RFC3339, tx.Timestamp)
			if err != nil {
				t.Fatalf("%s: bad timestamp %q: %v", tx.TransactionID, tx.Timestamp, err)
			}
			if ts.Hour() != tx.Hour {
				t.Errorf("%s: timestamp hour %d disagrees with hour field %d",
					tx.TransactionID, ts.Hour(), tx.Hour)
			}
		}
	})

	t.Run("SmallBatchStillHasRisk", func(t *testing.T) {
		cfg := testConfig()
		cfg.Count = 5
		ds, err := New(cfg).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		risky := 0
		for _, tx := range ds.Transactions {
			if tx.Amount >= 15000 {
				risky++
			}
		}
		if risky != 1 {
			t.Errorf("expected exactly 1 fraud-leaning item in a batch of 5, got %d", risky)
		}
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := New(testConfig()).Generate(ctx); err == nil {
			t.Error("expected a cancellation error")
		}
	})

	t.Run("ZeroConfigUsesDefaults", func(t *testing.T) {
		ds, err := New(Config{}).Generate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ds.Transactions) != DefaultConfig().Count {
			t.Errorf("expected default count, got %d", len(ds.Transactions))
		}
	})
}
