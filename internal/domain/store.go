// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Store defines the interface for decision and transaction persistence.
// Decisions are an append-only audit log keyed by transaction id: writing
// the same id twice is not an error, the first record wins.
type Store interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction, isFraud bool) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)

	// Decision operations
	SaveDecision(ctx context.Context, dec *DecisionResult) error
	GetDecision(ctx context.Context, txID string) (*DecisionResult, error)
	ListRecentDecisions(ctx context.Context, limit int) ([]*DecisionResult, error)

	// Aggregate statistics
	FraudStats(ctx context.Context) (*FraudStats, error)
	ChannelStats(ctx context.Context) ([]ChannelStat, error)
	HourlyStats(ctx context.Context) ([]HourlyStat, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	Channel   Channel
	FraudOnly bool
	Limit     int
}

// FraudStats summarizes the stored transaction corpus.
type FraudStats struct {
	Total               int     `json:"total"`
	FraudCount          int     `json:"fraud_count"`
	LegitimateCount     int     `json:"legitimate_count"`
	FraudRate           float64 `json:"fraud_rate"`
	AvgFraudAmount      float64 `json:"avg_fraud_amount"`
	AvgLegitimateAmount float64 `json:"avg_legitimate_amount"`
}

// ChannelStat is a per-channel aggregate over stored transactions.
type ChannelStat struct {
	Channel    string  `json:"channel"`
	Total      int     `json:"total"`
	FraudCount int     `json:"fraud_count"`
	FraudRate  float64 `json:"fraud_rate"`
	AvgAmount  float64 `json:"avg_amount"`
}

// HourlyStat is a per-hour aggregate; all 24 hours are always present.
type HourlyStat struct {
	Hour       int     `json:"hour"`
	Total      int     `json:"total"`
	FraudCount int     `json:"fraud_count"`
	FraudRate  float64 `json:"fraud_rate"`
}

// StoreConfig holds configuration for store initialization.
type StoreConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
