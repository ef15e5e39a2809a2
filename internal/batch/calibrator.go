// Package batch runs simulation batches: transactions are scored
// concurrently in bounded chunks, then a single ratio-enforcement pass
// nudges the batch's fraud share into the target band.
package batch

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/risk"
)

// DefaultConcurrency is the chunk size used when the caller gives none.
const DefaultConcurrency = 10

// Target fraud share band enforced over each batch.
const (
	targetRatioLow  = 0.09
	targetRatioHigh = 0.15
)

// Synthetic risk factors appended when the enforcement pass overrides
// a verdict.
const (
	FactorAnomalyInjection = "Simulation anomaly injection"
	FactorNormalization    = "Simulation normalization"
)

// Cities assigned to transactions that arrive without a location.
var Cities = []string{
	"Mumbai",
	"Delhi",
	"Bangalore",
	"Hyderabad",
	"Chennai",
	"Kolkata",
	"Pune",
	"Ahmedabad",
	"Jaipur",
	"Surat",
}

// ScoreFunc scores one transaction. The returned result must carry the
// raw model fields; enforcement ranks and reverts against them.
type ScoreFunc func(ctx context.Context, tx *domain.Transaction) (*domain.DecisionResult, error)

// Calibrator orchestrates batch scoring and ratio enforcement. The
// clock and random source are injectable so batches replay exactly
// under a fixed seed.
type Calibrator struct {
	score       ScoreFunc
	concurrency int
	clock       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Outcome is the product of one batch run.
type Outcome struct {
	Summary *domain.BatchSummary

	// Overlay holds the display projection of every result, in batch
	// order, ready for the overlay buffer.
	Overlay []domain.OverlayEntry

	// Transactions pairs with Summary.Results by index so callers can
	// persist the settled verdicts. Entries are nil for items that
	// failed before a transaction was built.
	Transactions []*domain.Transaction
}

// NewCalibrator builds a Calibrator around a scoring function. A zero
// concurrency falls back to DefaultConcurrency, a nil clock to the
// wall clock, and a nil random source to one seeded from the clock.
func NewCalibrator(score ScoreFunc, concurrency int, clock func() time.Time, rng *rand.Rand) *Calibrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(clock().UnixNano()))
	}
	return &Calibrator{
		score:       score,
		concurrency: concurrency,
		clock:       clock,
		rng:         rng,
	}
}

type scoredItem struct {
	req    *domain.TransactionRequest
	tx     *domain.Transaction
	result *domain.DecisionResult

	// displayTime is the timestamp rendered in overlays: the caller's
	// if supplied, otherwise the scoring time.
	displayTime string
}

// Run scores every request in chunks of the given concurrency (chunks
// sequential, members concurrent), enforces the target fraud ratio
// over the whole batch, and returns the summary plus overlay
// projection. A failing item becomes an Error result; it never aborts
// the batch.
func (c *Calibrator) Run(ctx context.Context, reqs []*domain.TransactionRequest, concurrency int) *Outcome {
	start := c.clock()
	if concurrency <= 0 {
		concurrency = c.concurrency
	}

	items := make([]scoredItem, len(reqs))
	for begin := 0; begin < len(reqs); begin += concurrency {
		end := begin + concurrency
		if end > len(reqs) {
			end = len(reqs)
		}

		var wg sync.WaitGroup
		for i := begin; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				items[i] = c.scoreOne(ctx, reqs[i])
			}(i)
		}
		wg.Wait()
	}

	// Display defaults are filled on the calibration goroutine so a
	// seeded generator stays reproducible.
	for i := range items {
		c.fillDisplayDefaults(&items[i])
	}

	results := make([]*domain.DecisionResult, len(items))
	txs := make([]*domain.Transaction, len(items))
	for i := range items {
		results[i] = items[i].result
		txs[i] = items[i].tx
	}

	c.EnforceTargetRatio(results)

	elapsed := c.clock().Sub(start)
	return &Outcome{
		Summary:      c.summarize(start, elapsed, results),
		Overlay:      c.project(items),
		Transactions: txs,
	}
}

// scoreOne settles a single request, converting any failure into an
// Error result.
func (c *Calibrator) scoreOne(ctx context.Context, req *domain.TransactionRequest) (item scoredItem) {
	defer func() {
		if r := recover(); r != nil {
			item = c.errorItem(req, fmt.Sprintf("scoring panic: %v", r))
		}
	}()

	if req == nil {
		return c.errorItem(req, "missing transaction payload")
	}
	if err := req.Validate(); err != nil {
		return c.errorItem(req, err.Error())
	}

	tx := req.ToTransactionAt(c.clock().UTC())
	result, err := c.score(ctx, tx)
	if err != nil {
		return c.errorItem(req, err.Error())
	}
	return scoredItem{req: req, tx: tx, result: result}
}

func (c *Calibrator) errorItem(req *domain.TransactionRequest, detail string) scoredItem {
	txID := "unknown"
	if req != nil && strings.TrimSpace(req.CustomerID) != "" {
		txID = strings.TrimSpace(req.CustomerID)
	}
	return scoredItem{
		req: req,
		result: &domain.DecisionResult{
			TransactionID: txID,
			Label:         domain.LabelError,
			RiskLevel:     domain.RiskUnknown,
			Err:           detail,
		},
	}
}

func (c *Calibrator) fillDisplayDefaults(item *scoredItem) {
	if item.tx != nil && item.tx.Location == "" {
		item.tx.Location = c.randomCity()
	}
	if item.req != nil && item.req.Timestamp != "" {
		item.displayTime = item.req.Timestamp
		return
	}
	if item.tx != nil {
		item.displayTime = item.tx.Timestamp.Format(time.RFC3339)
	}
}

// EnforceTargetRatio adjusts verdicts in place so the batch's fraud
// count lands in [round(9%), round(15%)] of the total, clamped to
// [1, total]. Error results never flip but still count toward the
// total. Raw model fields are left untouched for audit.
func (c *Calibrator) EnforceTargetRatio(results []*domain.DecisionResult) {
	total := len(results)
	if total == 0 {
		return
	}

	lower := int(math.Round(float64(total) * targetRatioLow))
	if lower < 1 {
		lower = 1
	}
	upper := int(math.Round(float64(total) * targetRatioHigh))
	if upper < lower {
		upper = lower
	}
	if lower > total {
		lower = total
	}
	if upper > total {
		upper = total
	}

	target := lower + c.randIntn(upper-lower+1)
	current := 0
	for _, r := range results {
		if r.Label == domain.LabelFraud {
			current++
		}
	}

	if current < target {
		c.injectAnomalies(results, target-current)
	} else if current > target {
		c.normalizeExcess(results, current-target)
	}
}

// injectAnomalies flips the strongest-looking legitimate results to
// fraud: most risk factors first, then highest raw probability.
func (c *Calibrator) injectAnomalies(results []*domain.DecisionResult, deficit int) {
	candidates := make([]*domain.DecisionResult, 0, len(results))
	for _, r := range results {
		if r.Label == domain.LabelLegitimate {
			candidates = append(candidates, r)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if len(a.RiskFactors) != len(b.RiskFactors) {
			return len(a.RiskFactors) > len(b.RiskFactors)
		}
		return a.RawModelProbability > b.RawModelProbability
	})

	if deficit > len(candidates) {
		deficit = len(candidates)
	}
	for _, r := range candidates[:deficit] {
		r.Label = domain.LabelFraud
		r.Probability = math.Min(0.97, math.Max(r.Probability, r.RawModelProbability+0.2))
		r.RiskLevel = risk.Level(r.Probability)
		r.Confidence = risk.ProbabilityConfidence(r.Probability)
		r.RiskFactors = append(r.RiskFactors, FactorAnomalyInjection)
		r.SimulationOverride = true
	}
}

// normalizeExcess reverts surplus fraud verdicts, preferring entries
// the enforcement pass itself flipped, then the weakest raw signal.
func (c *Calibrator) normalizeExcess(results []*domain.DecisionResult, surplus int) {
	candidates := make([]*domain.DecisionResult, 0, len(results))
	for _, r := range results {
		if r.Label == domain.LabelFraud {
			candidates = append(candidates, r)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.SimulationOverride != b.SimulationOverride {
			return a.SimulationOverride
		}
		return a.RawModelProbability < b.RawModelProbability
	})

	if surplus > len(candidates) {
		surplus = len(candidates)
	}
	for _, r := range candidates[:surplus] {
		r.Label = domain.LabelLegitimate
		r.Probability = math.Min(r.RawModelProbability, 0.35)
		r.RiskLevel = risk.Level(r.Probability)
		r.Confidence = risk.ProbabilityConfidence(r.Probability)
		r.RiskFactors = append(r.RiskFactors, FactorNormalization)
		r.SimulationOverride = true
	}
}

func (c *Calibrator) summarize(start time.Time, elapsed time.Duration, results []*domain.DecisionResult) *domain.BatchSummary {
	fraudCount := 0
	probabilityTotal := 0.0
	for _, r := range results {
		probabilityTotal += r.Probability
		if r.Label == domain.LabelFraud {
			fraudCount++
		}
	}

	summary := &domain.BatchSummary{
		SimulationID:      fmt.Sprintf("SIM-%d", start.Unix()),
		TotalProcessed:    len(results),
		FraudulentCount:   fraudCount,
		ProcessingSeconds: domain.Round2(elapsed.Seconds()),
		Results:           results,
	}
	if len(results) > 0 {
		summary.FraudRate = float64(fraudCount) / float64(len(results)) * 100
		summary.AvgFraudProbability = domain.Round2(probabilityTotal / float64(len(results)) * 100)
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		summary.ThroughputPerSecond = domain.Round2(float64(len(results)) / seconds)
	}
	return summary
}

// project flattens scored items into overlay entries. Error items get
// display defaults so dashboards still render them.
func (c *Calibrator) project(items []scoredItem) []domain.OverlayEntry {
	entries := make([]domain.OverlayEntry, 0, len(items))
	for i := range items {
		item := &items[i]
		r := item.result

		e := domain.OverlayEntry{
			TransactionID: r.TransactionID,
			CustomerID:    r.CustomerID,
			Label:         r.Label,
			Probability:   r.Probability,
			RiskLevel:     r.RiskLevel,
			Override:      r.SimulationOverride,
			DemoBoosted:   r.DemoBoosted,
			Timestamp:     item.displayTime,
		}
		if e.CustomerID == "" {
			e.CustomerID = r.TransactionID
		}
		if r.Label == domain.LabelFraud {
			e.IsFraud = 1
		}

		if item.tx != nil {
			e.Amount = item.tx.Amount
			e.Channel = string(item.tx.Channel)
			e.Location = item.tx.Location
			e.Hour = item.tx.Hour
			e.AccountAgeDays = item.tx.AccountAgeDays
			e.KYCVerified = domain.KYCString(item.tx.KYCVerified)
		} else {
			now := c.clock().UTC()
			e.Channel = string(domain.ChannelMobile)
			e.Location = c.randomCity()
			e.Hour = now.Hour()
			e.KYCVerified = "No"
			e.Timestamp = now.Format(time.RFC3339)
		}
		entries = append(entries, e)
	}
	return entries
}

func (c *Calibrator) randomCity() string {
	return Cities[c.randIntn(len(Cities))]
}

func (c *Calibrator) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	if n <= 1 {
		return 0
	}
	return c.rng.Intn(n)
}
