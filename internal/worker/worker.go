// Package worker provides async transaction scoring from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

// DefaultConcurrency bounds in-flight scoring when none is configured.
const DefaultConcurrency = 8

// Throughput counters reported through the cache so multiple instances
// share one view.
const (
	counterProcessed = "worker:processed"
	counterFailed    = "worker:failed"
	counterWindow    = 24 * time.Hour
)

// Worker subscribes to the transaction ingest topic and scores each
// message through the engine. The engine handles persistence and result
// publication; the worker adds bounded concurrency and drain semantics.
type Worker struct {
	bus    domain.EventBus
	engine *engine.Engine
	cache  domain.Cache

	sem           chan struct{}
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Concurrency is the maximum number of messages scored at once.
	Concurrency int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, eng *engine.Engine, cache domain.Cache) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: eng,
		cache:  cache,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the ingest topic and begins processing.
func (w *Worker) Start(cfg Config) error {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	w.sem = make(chan struct{}, concurrency)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicTransactionIngested,
		"concurrency", concurrency,
	)
	return nil
}

// handleMessage admits one message into the bounded pool. Scoring runs
// on its own goroutine so a slow store never stalls the subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.processTransaction(w.ctx, msg)
	}()
	return nil
}

// processTransaction scores a single ingested transaction.
func (w *Worker) processTransaction(ctx context.Context, msg *domain.Message) {
	start := time.Now()

	var req domain.TransactionRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		w.count(ctx, counterFailed)
		return
	}

	result, err := w.engine.ScoreOne(ctx, &req)
	if err != nil {
		slog.Error("failed to score transaction",
			"tx_id", req.TransactionID,
			"customer_id", req.CustomerID,
			"error", err,
		)
		w.count(ctx, counterFailed)
		return
	}
	w.count(ctx, counterProcessed)

	slog.Info("transaction processed",
		"tx_id", result.TransactionID,
		"label", result.Label,
		"risk_level", result.RiskLevel,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) count(ctx context.Context, key string) {
	if w.cache == nil {
		return
	}
	if _, err := w.cache.IncrementCounter(ctx, key, counterWindow); err != nil {
		slog.Debug("failed to bump worker counter", "key", key, "error", err)
	}
}

// Stop unsubscribes, drains in-flight messages, and shuts down.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()
	w.cancel()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
