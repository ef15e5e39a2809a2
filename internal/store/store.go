// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Default result windows for unbounded list queries.
const (
	defaultListLimit   = 100
	defaultRecentLimit = 50
)

// SQLStore implements domain.Store using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new store based on configuration.
func New(cfg domain.StoreConfig) (domain.Store, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a scored transaction. Replaying an id is not an
// error; the first record wins.
func (s *SQLStore) SaveTransaction(ctx context.Context, tx *domain.Transaction, isFraud bool) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, customer_id, amount, channel, hour,
			account_age_days, kyc_verified, location, is_fraud,
			timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		tx.ID, tx.CustomerID, tx.Amount, string(tx.Channel), tx.Hour,
		tx.AccountAgeDays, boolInt(tx.KYCVerified), tx.Location, boolInt(isFraud),
		tx.Timestamp, tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLStore) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, amount, channel, hour,
			   account_age_days, kyc_verified, location,
			   timestamp, created_at
		FROM transactions
		WHERE id = ?
	`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, s.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return tx, nil
}

// ListTransactions retrieves stored transactions newest first. Zero filter
// values mean "any"; an unset limit falls back to a bounded default.
func (s *SQLStore) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, amount, channel, hour,
			   account_age_days, kyc_verified, location,
			   timestamp, created_at
		FROM transactions
	`

	var conds []string
	var args []any

	if filter.Channel != "" {
		conds = append(conds, "channel = ?")
		args = append(args, string(filter.Channel))
	}
	if filter.FraudOnly {
		conds = append(conds, "is_fraud = 1")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// SaveDecision appends a decision to the audit log. Duplicate transaction
// ids are tolerated; the first verdict wins.
func (s *SQLStore) SaveDecision(ctx context.Context, dec *domain.DecisionResult) error {
	if dec == nil || dec.TransactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	flags, _ := json.Marshal(dec.RuleFlags)
	factors, _ := json.Marshal(dec.RiskFactors)

	query := `
		INSERT INTO decisions (
			transaction_id, customer_id, final_label, fraud_probability,
			risk_level, confidence, reason, rule_flags, risk_factors,
			raw_model_prediction, raw_model_probability,
			demo_boosted, simulation_override, model_version, scored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		dec.TransactionID, dec.CustomerID, dec.Label, dec.Probability,
		dec.RiskLevel, dec.Confidence, dec.Reason, string(flags), string(factors),
		dec.RawModelLabel, dec.RawModelProbability,
		boolInt(dec.DemoBoosted), boolInt(dec.SimulationOverride),
		dec.ModelVersion, dec.ScoredAt,
	)
	return err
}

// GetDecision retrieves the decision recorded for a transaction.
func (s *SQLStore) GetDecision(ctx context.Context, txID string) (*domain.DecisionResult, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		SELECT transaction_id, customer_id, final_label, fraud_probability,
			   risk_level, confidence, reason, rule_flags, risk_factors,
			   raw_model_prediction, raw_model_probability,
			   demo_boosted, simulation_override, model_version, scored_at
		FROM decisions
		WHERE transaction_id = ?
	`

	dec, err := scanDecision(s.db.QueryRowContext(ctx, s.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return dec, nil
}

// ListRecentDecisions retrieves the latest decisions, newest first.
func (s *SQLStore) ListRecentDecisions(ctx context.Context, limit int) ([]*domain.DecisionResult, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := `
		SELECT transaction_id, customer_id, final_label, fraud_probability,
			   risk_level, confidence, reason, rule_flags, risk_factors,
			   raw_model_prediction, raw_model_probability,
			   demo_boosted, simulation_override, model_version, scored_at
		FROM decisions
		ORDER BY scored_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.DecisionResult
	for rows.Next() {
		dec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, dec)
	}

	return decisions, rows.Err()
}

// FraudStats aggregates the stored transaction corpus.
func (s *SQLStore) FraudStats(ctx context.Context) (*domain.FraudStats, error) {
	query := `
		SELECT COUNT(*),
			   COALESCE(SUM(is_fraud), 0),
			   COALESCE(AVG(CASE WHEN is_fraud = 1 THEN amount END), 0),
			   COALESCE(AVG(CASE WHEN is_fraud = 0 THEN amount END), 0)
		FROM transactions
	`

	var stats domain.FraudStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.FraudCount,
		&stats.AvgFraudAmount, &stats.AvgLegitimateAmount,
	)
	if err != nil {
		return nil, err
	}

	stats.LegitimateCount = stats.Total - stats.FraudCount
	if stats.Total > 0 {
		stats.FraudRate = domain.Round2(float64(stats.FraudCount) / float64(stats.Total) * 100)
	}
	stats.AvgFraudAmount = domain.Round2(stats.AvgFraudAmount)
	stats.AvgLegitimateAmount = domain.Round2(stats.AvgLegitimateAmount)

	return &stats, nil
}

// ChannelStats aggregates per channel, riskiest channel first.
func (s *SQLStore) ChannelStats(ctx context.Context) ([]domain.ChannelStat, error) {
	query := `
		SELECT channel, COUNT(*),
			   COALESCE(SUM(is_fraud), 0),
			   COALESCE(AVG(amount), 0)
		FROM transactions
		GROUP BY channel
		ORDER BY channel
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []domain.ChannelStat{}
	for rows.Next() {
		var st domain.ChannelStat
		if err := rows.Scan(&st.Channel, &st.Total, &st.FraudCount, &st.AvgAmount); err != nil {
			return nil, err
		}
		if st.Total > 0 {
			st.FraudRate = domain.Round2(float64(st.FraudCount) / float64(st.Total) * 100)
		}
		st.AvgAmount = domain.Round2(st.AvgAmount)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].FraudRate > stats[j].FraudRate
	})

	return stats, nil
}

// HourlyStats aggregates per hour of day. All 24 hours are present in the
// result, including hours with no traffic.
func (s *SQLStore) HourlyStats(ctx context.Context) ([]domain.HourlyStat, error) {
	query := `
		SELECT hour, COUNT(*), COALESCE(SUM(is_fraud), 0)
		FROM transactions
		GROUP BY hour
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]domain.HourlyStat, 24)
	for i := range stats {
		stats[i].Hour = i
	}

	for rows.Next() {
		var hour, total, fraud int
		if err := rows.Scan(&hour, &total, &fraud); err != nil {
			return nil, err
		}
		if hour < 0 || hour > 23 {
			continue
		}
		stats[hour].Total = total
		stats[hour].FraudCount = fraud
		if total > 0 {
			stats[hour].FraudRate = domain.Round2(float64(fraud) / float64(total) * 100)
		}
	}

	return stats, rows.Err()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var channel string
	var kyc int

	err := row.Scan(
		&tx.ID, &tx.CustomerID, &tx.Amount, &channel, &tx.Hour,
		&tx.AccountAgeDays, &kyc, &tx.Location,
		&tx.Timestamp, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Channel = domain.Channel(channel)
	tx.KYCVerified = kyc == 1

	return &tx, nil
}

func scanDecision(row rowScanner) (*domain.DecisionResult, error) {
	var dec domain.DecisionResult
	var flags, factors string
	var boosted, override int

	err := row.Scan(
		&dec.TransactionID, &dec.CustomerID, &dec.Label, &dec.Probability,
		&dec.RiskLevel, &dec.Confidence, &dec.Reason, &flags, &factors,
		&dec.RawModelLabel, &dec.RawModelProbability,
		&boosted, &override, &dec.ModelVersion, &dec.ScoredAt,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(flags), &dec.RuleFlags)
	json.Unmarshal([]byte(factors), &dec.RiskFactors)
	dec.DemoBoosted = boosted == 1
	dec.SimulationOverride = override == 1

	return &dec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
