// Package overlay keeps a bounded rolling window of recent calibrated
// decisions for dashboard overlays.
package overlay

import (
	"sort"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DefaultCapacity is the buffer size used when none is configured.
const DefaultCapacity = 500

// Buffer is a thread-safe fixed-capacity FIFO window. Inserting past
// capacity evicts the oldest entry. Snapshots observe a consistent
// state, never a partially applied batch.
type Buffer struct {
	mu    sync.RWMutex
	ring  []domain.OverlayEntry
	head  int
	count int
}

// NewBuffer creates a buffer holding up to capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{ring: make([]domain.OverlayEntry, capacity)}
}

// Capacity returns the fixed buffer size.
func (b *Buffer) Capacity() int {
	return len(b.ring)
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Add appends entries in order, evicting the oldest past capacity.
func (b *Buffer) Add(entries ...domain.OverlayEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.ring)
	for _, e := range entries {
		if b.count < capacity {
			b.ring[(b.head+b.count)%capacity] = e
			b.count++
			continue
		}
		b.ring[b.head] = e
		b.head = (b.head + 1) % capacity
	}
}

// Reset drops all buffered entries.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// Snapshot summarizes the most recent limit entries in insertion
// order. A limit outside (0, capacity] means the whole buffer.
func (b *Buffer) Snapshot(limit int) *domain.OverlaySnapshot {
	capacity := len(b.ring)
	if limit <= 0 || limit > capacity {
		limit = capacity
	}

	b.mu.RLock()
	n := b.count
	if n > limit {
		n = limit
	}
	entries := make([]domain.OverlayEntry, n)
	start := b.head + b.count - n
	for i := 0; i < n; i++ {
		entries[i] = b.ring[(start+i)%capacity]
	}
	b.mu.RUnlock()

	return Summarize(entries)
}

// Summarize rolls entries up into totals and a per-channel breakdown.
func Summarize(entries []domain.OverlayEntry) *domain.OverlaySnapshot {
	snap := &domain.OverlaySnapshot{
		Entries:  entries,
		Channels: channelBreakdown(entries),
	}

	snap.Total = len(entries)
	for _, e := range entries {
		if e.IsFraud == 1 {
			snap.FraudCount++
		}
	}
	if snap.Total > 0 {
		snap.FraudRate = domain.Round2(float64(snap.FraudCount) / float64(snap.Total) * 100)
		snap.LastUpdated = entries[len(entries)-1].Timestamp
	}
	return snap
}

type channelAccum struct {
	total      int
	fraudCount int
	amountSum  float64
}

// channelBreakdown groups entries by channel, sorted by fraud rate
// descending. Ties keep first-seen channel order.
func channelBreakdown(entries []domain.OverlayEntry) []domain.ChannelSummary {
	if len(entries) == 0 {
		return []domain.ChannelSummary{}
	}

	accums := make(map[string]*channelAccum)
	var order []string
	for _, e := range entries {
		acc, ok := accums[e.Channel]
		if !ok {
			acc = &channelAccum{}
			accums[e.Channel] = acc
			order = append(order, e.Channel)
		}
		acc.total++
		acc.amountSum += e.Amount
		if e.IsFraud == 1 {
			acc.fraudCount++
		}
	}

	summaries := make([]domain.ChannelSummary, 0, len(order))
	for _, ch := range order {
		acc := accums[ch]
		s := domain.ChannelSummary{
			Channel:    ch,
			Total:      acc.total,
			FraudCount: acc.fraudCount,
		}
		if acc.total > 0 {
			s.FraudRate = domain.Round2(float64(acc.fraudCount) / float64(acc.total) * 100)
			s.AvgAmount = domain.Round2(acc.amountSum / float64(acc.total))
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].FraudRate > summaries[j].FraudRate
	})
	return summaries
}
