// Package datagen produces synthetic transaction batches shaped like the
// Indian retail-banking traffic the scoring pipeline was tuned on. Output
// is directly consumable by the simulation batch endpoint.
package datagen

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Dataset is the generated batch, shaped as a simulation request body.
type Dataset struct {
	Transactions []*domain.TransactionRequest `json:"transactions"`
}

// Config drives the synthetic transaction generator.
type Config struct {
	// Count is the number of transactions to generate.
	Count int

	// CustomerPool bounds the distinct customer ids drawn.
	CustomerPool int

	// Window is how far back display timestamps spread from Start.
	Window time.Duration

	// Start anchors the timestamp window. Zero means now.
	Start time.Time

	// Seed makes generation deterministic. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig returns baseline settings matching the demo dataset:
// 100 transactions over a 16 day window.
func DefaultConfig() Config {
	return Config{
		Count:        100,
		CustomerPool: 250,
		Window:       16 * 24 * time.Hour,
		Seed:         42,
	}
}

var (
	channels = []string{"Mobile", "ATM", "Web", "POS"}

	cities = []string{
		"Mumbai", "Delhi", "Bangalore", "Hyderabad", "Chennai",
		"Kolkata", "Pune", "Ahmedabad", "Jaipur", "Surat",
	}
)

// Generator produces seeded synthetic transactions.
type Generator struct {
	cfg  Config
	rand *rand.Rand
}

// New returns a configured Generator. Zero config fields fall back to
// the defaults.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Count <= 0 {
		cfg.Count = def.Count
	}
	if cfg.CustomerPool <= 0 {
		cfg.CustomerPool = def.CustomerPool
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate synthesises the batch. Roughly 8-12% of items lean fraudulent:
// high amounts, night hours, young unverified accounts. It respects
// context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	count := g.cfg.Count
	risky := g.riskyIndices(count)

	txs := make([]*domain.TransactionRequest, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		if risky[i] {
			txs[i] = g.riskyTransaction(i)
		} else {
			txs[i] = g.normalTransaction(i)
		}
	}

	return Dataset{Transactions: txs}, nil
}

// riskyIndices marks between 8% and 12% of positions (at least one) as
// fraud-leaning.
func (g *Generator) riskyIndices(count int) map[int]bool {
	lower := count * 8 / 100
	upper := count * 12 / 100
	if lower < 1 {
		lower = 1
	}
	if upper < lower {
		upper = lower
	}
	target := lower + g.rand.Intn(upper-lower+1)

	marked := make(map[int]bool, target)
	for len(marked) < target {
		marked[g.rand.Intn(count)] = true
	}
	return marked
}

func (g *Generator) riskyTransaction(i int) *domain.TransactionRequest {
	hour := g.rand.Intn(6) // night hours
	kyc := "No"
	if g.rand.Float64() < 0.2 {
		kyc = "Yes"
	}

	return &domain.TransactionRequest{
		TransactionID:  fmt.Sprintf("TXN%d", 1000+i),
		CustomerID:     g.customerID(),
		Amount:         domain.Round2(15000 + g.rand.Float64()*80000), // 15000-95000
		Channel:        channels[g.rand.Intn(len(channels))],
		Hour:           hour,
		AccountAgeDays: 1 + g.rand.Intn(29),
		KYCVerified:    kyc,
		Location:       cities[g.rand.Intn(len(cities))],
		Timestamp:      g.timestamp(hour),
	}
}

func (g *Generator) normalTransaction(i int) *domain.TransactionRequest {
	hour := g.rand.Intn(24)
	kyc := "Yes"
	if g.rand.Float64() < 0.15 {
		kyc = "No"
	}

	return &domain.TransactionRequest{
		TransactionID:  fmt.Sprintf("TXN%d", 1000+i),
		CustomerID:     g.customerID(),
		Amount:         domain.Round2(100 + g.rand.Float64()*11900), // 100-12000
		Channel:        channels[g.rand.Intn(len(channels))],
		Hour:           hour,
		AccountAgeDays: 30 + g.rand.Intn(2000),
		KYCVerified:    kyc,
		Location:       cities[g.rand.Intn(len(cities))],
		Timestamp:      g.timestamp(hour),
	}
}

func (g *Generator) customerID() string {
	return fmt.Sprintf("CUST%05d", 1+g.rand.Intn(g.cfg.CustomerPool))
}

// timestamp spreads display times across the window, pinned to the item's
// hour so the two never disagree.
func (g *Generator) timestamp(hour int) string {
	days := int(g.cfg.Window / (24 * time.Hour))
	if days < 1 {
		days = 1
	}

	day := g.cfg.Start.AddDate(0, 0, -g.rand.Intn(days))
	ts := time.Date(day.Year(), day.Month(), day.Day(), hour, g.rand.Intn(60), 0, 0, time.UTC)
	return ts.Format(time.RFC3339)
}
