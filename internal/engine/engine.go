// Package engine wires the scoring pipeline end to end: feature
// building, classification, rule evaluation, fusion, calibration,
// persistence and event publishing. The Engine is the process-scoped
// state object every transport (HTTP, worker, CLI) scores through.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/opensource-finance/kestrel/internal/batch"
	"github.com/opensource-finance/kestrel/internal/classifier"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/fusion"
	"github.com/opensource-finance/kestrel/internal/overlay"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// Config assembles the engine's dependencies and tuning. Store, Bus and
// Stats are optional: without them the engine still scores, it just
// skips persistence, events and cache refresh.
type Config struct {
	Classifier classifier.Classifier
	Store      domain.Store
	Bus        domain.EventBus
	Stats      *stats.Service

	// OverlayCapacity bounds the rolling overlay buffer.
	OverlayCapacity int

	// BatchConcurrency is the calibrator chunk size when a batch
	// request gives none.
	BatchConcurrency int

	// RuleWorkers bounds parallel rule evaluation per transaction.
	RuleWorkers int

	// Clock and RNG are injectable for reproducible runs. Nil values
	// fall back to the wall clock and a clock-seeded source.
	Clock func() time.Time
	RNG   *rand.Rand
}

// Engine owns the scoring pipeline. Single transactions settle through
// rule fusion, batches through demo boost plus ratio enforcement, and
// the legacy schema through the raw model alone.
type Engine struct {
	model   classifier.Classifier
	flags   *rules.Engine
	factors *rules.Engine
	single  fusion.Strategy
	boost   fusion.Strategy

	store domain.Store
	bus   domain.EventBus
	stats *stats.Service

	calibrator *batch.Calibrator
	buffer     *overlay.Buffer

	clock func() time.Time
}

// New builds an Engine with the builtin rule sets compiled and loaded.
func New(cfg Config) (*Engine, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	flags, err := rules.NewEngine(cfg.RuleWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision rule engine: %w", err)
	}
	if err := flags.LoadRules(rules.DecisionRules()); err != nil {
		return nil, fmt.Errorf("failed to load decision rules: %w", err)
	}

	factors, err := rules.NewEngine(cfg.RuleWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create factor rule engine: %w", err)
	}
	if err := factors.LoadRules(rules.FactorRules()); err != nil {
		return nil, fmt.Errorf("failed to load factor rules: %w", err)
	}

	e := &Engine{
		model:   cfg.Classifier,
		flags:   flags,
		factors: factors,
		single:  fusion.NewRuleFusion(),
		boost:   fusion.NewDemoBoost(),
		store:   cfg.Store,
		bus:     cfg.Bus,
		stats:   cfg.Stats,
		buffer:  overlay.NewBuffer(cfg.OverlayCapacity),
		clock:   clock,
	}
	e.calibrator = batch.NewCalibrator(e.scoreBatchItem, cfg.BatchConcurrency, clock, cfg.RNG)
	return e, nil
}

// ScoreOne settles a single request through the rule fusion pipeline,
// persists the transaction and decision, and publishes the decision
// event plus an alert when the verdict is fraud. Persistence and
// publishing failures degrade to log entries; the caller still gets
// the decision.
func (e *Engine) ScoreOne(ctx context.Context, req *domain.TransactionRequest) (*domain.DecisionResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing transaction payload", domain.ErrInvalidTransaction)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx := req.ToTransactionAt(e.clock().UTC())
	result, err := e.score(ctx, tx, e.single)
	if err != nil {
		return nil, err
	}

	e.persist(ctx, tx, result)
	e.publishDecision(ctx, result)
	return result, nil
}

// ScoreLegacy scores the step-indexed schema with the raw model only:
// no rules, no fusion, uncertainty-distance confidence. A trimmed
// decision record is stored under a synthetic TXN_<nanos> id.
func (e *Engine) ScoreLegacy(ctx context.Context, legacy *domain.LegacyTransaction) (*domain.LegacyVerdict, error) {
	if legacy == nil {
		return nil, fmt.Errorf("%w: missing transaction payload", domain.ErrInvalidTransaction)
	}

	verdict, err := e.model.Score(features.BuildLegacy(legacy))
	if err != nil {
		return nil, fmt.Errorf("classifier scoring failed: %w", err)
	}

	now := e.clock().UTC()
	label := labelFor(verdict.Label)

	e.saveDecision(ctx, &domain.DecisionResult{
		TransactionID:       fmt.Sprintf("TXN_%d", now.UnixNano()),
		Label:               label,
		Probability:         verdict.Probability,
		RiskLevel:           risk.Level(verdict.Probability),
		Confidence:          risk.UncertaintyConfidence(verdict.Probability),
		RuleFlags:           []string{},
		RiskFactors:         []string{},
		RawModelLabel:       label,
		RawModelProbability: verdict.Probability,
		ModelVersion:        e.model.Version(),
		ScoredAt:            now,
	})

	return &domain.LegacyVerdict{
		IsFraud:     verdict.Label,
		Probability: verdict.Probability,
		RiskLevel:   risk.Level(verdict.Probability),
		Confidence:  risk.UncertaintyConfidence(verdict.Probability),
		ScoredAt:    now.Format(time.RFC3339),
	}, nil
}

// RunBatch scores the requests through the calibrator, feeds the
// overlay buffer, persists every settled item, refreshes cached
// statistics and announces completion on the bus.
func (e *Engine) RunBatch(ctx context.Context, reqs []*domain.TransactionRequest, concurrency int) *domain.BatchSummary {
	out := e.calibrator.Run(ctx, reqs, concurrency)

	e.buffer.Add(out.Overlay...)

	for i, result := range out.Summary.Results {
		if result.Label == domain.LabelError {
			continue
		}
		tx := out.Transactions[i]
		if tx == nil {
			continue
		}
		e.persist(ctx, tx, result)
	}

	if e.stats != nil {
		e.stats.Invalidate(ctx)
	}
	e.publishBatchCompleted(ctx, out.Summary)
	return out.Summary
}

// OverlaySnapshot summarizes the most recent limit overlay entries.
func (e *Engine) OverlaySnapshot(limit int) *domain.OverlaySnapshot {
	return e.buffer.Snapshot(limit)
}

// ResetOverlay drops all buffered overlay entries.
func (e *Engine) ResetOverlay() {
	e.buffer.Reset()
}

// ModelVersion reports the loaded classifier artifact version.
func (e *Engine) ModelVersion() string {
	return e.model.Version()
}

// Close releases the compiled rule sets.
func (e *Engine) Close() error {
	if err := e.flags.Close(); err != nil {
		return err
	}
	return e.factors.Close()
}

// score runs the shared classification pipeline: features, model,
// both rule sets, then the strategy settles the verdict.
func (e *Engine) score(ctx context.Context, tx *domain.Transaction, strategy fusion.Strategy) (*domain.DecisionResult, error) {
	vec := features.BuildFromTransaction(tx, tx.Timestamp)
	verdict, err := e.model.Score(vec)
	if err != nil {
		return nil, fmt.Errorf("classifier scoring failed for %s: %w", tx.ID, err)
	}

	input := rules.InputFromTransaction(tx)
	return strategy.Fuse(&fusion.Input{
		TxID:         tx.ID,
		CustomerID:   tx.CustomerID,
		Amount:       tx.Amount,
		ModelLabel:   verdict.Label,
		Probability:  verdict.Probability,
		ModelVersion: e.model.Version(),
		RuleHits:     e.flags.Evaluate(ctx, input),
		FactorHits:   e.factors.Evaluate(ctx, input),
		ScoredAt:     tx.Timestamp,
	}), nil
}

// scoreBatchItem is the calibrator's ScoreFunc: the same pipeline as
// ScoreOne but settled by demo boost, with persistence deferred until
// ratio enforcement has run.
func (e *Engine) scoreBatchItem(ctx context.Context, tx *domain.Transaction) (*domain.DecisionResult, error) {
	return e.score(ctx, tx, e.boost)
}

// persist writes the transaction and its decision. A store outage is a
// degraded mode, not a failure: scoring keeps answering.
func (e *Engine) persist(ctx context.Context, tx *domain.Transaction, result *domain.DecisionResult) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveTransaction(ctx, tx, result.IsFraud()); err != nil {
		slog.Warn("failed to save transaction", "tx_id", tx.ID, "error", err)
	}
	e.saveDecision(ctx, result)
}

func (e *Engine) saveDecision(ctx context.Context, result *domain.DecisionResult) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveDecision(ctx, result); err != nil {
		slog.Warn("failed to save decision", "tx_id", result.TransactionID, "error", err)
	}
}

// publishDecision emits the decision event and, for fraud verdicts,
// the alert event.
func (e *Engine) publishDecision(ctx context.Context, result *domain.DecisionResult) {
	if e.bus == nil {
		return
	}

	payload, _ := json.Marshal(result)
	if err := e.bus.Publish(ctx, domain.TopicDecisionCompleted, payload); err != nil {
		slog.Error("failed to publish decision", "tx_id", result.TransactionID, "error", err)
	}
	if result.IsFraud() {
		if err := e.bus.Publish(ctx, domain.TopicAlertRaised, payload); err != nil {
			slog.Error("failed to publish alert", "tx_id", result.TransactionID, "error", err)
		}
	}
}

// publishBatchCompleted emits a compact completion event; the full
// result set stays out of the bus payload.
func (e *Engine) publishBatchCompleted(ctx context.Context, summary *domain.BatchSummary) {
	if e.bus == nil {
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"simulation_id":    summary.SimulationID,
		"total_processed":  summary.TotalProcessed,
		"fraudulent_count": summary.FraudulentCount,
		"fraud_rate":       summary.FraudRate,
	})
	if err := e.bus.Publish(ctx, domain.TopicBatchCompleted, payload); err != nil {
		slog.Error("failed to publish batch completion", "simulation_id", summary.SimulationID, "error", err)
	}
}

func labelFor(label int) string {
	if label == 1 {
		return domain.LabelFraud
	}
	return domain.LabelLegitimate
}
