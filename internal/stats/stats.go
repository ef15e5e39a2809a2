// Package stats serves aggregate statistics over scored transactions.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DefaultTTL is how long cached aggregates stay fresh.
const DefaultTTL = 5 * time.Minute

// Service answers statistics queries cache-aside: reads hit the cache
// first, misses recompute from the store and repopulate. A nil cache
// degrades to direct store reads.
type Service struct {
	store domain.Store
	cache domain.Cache
	ttl   time.Duration
}

// NewService creates a new statistics service.
func NewService(store domain.Store, cache domain.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store: store,
		cache: cache,
		ttl:   ttl,
	}
}

// Fraud returns corpus-wide fraud statistics.
func (s *Service) Fraud(ctx context.Context) (*domain.FraudStats, error) {
	if data := s.fromCache(ctx, domain.CacheKeyFraudStats); data != nil {
		var stats domain.FraudStats
		if err := json.Unmarshal(data, &stats); err == nil {
			return &stats, nil
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("no store available")
	}

	stats, err := s.store.FraudStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute fraud stats: %w", err)
	}

	s.toCache(ctx, domain.CacheKeyFraudStats, stats)
	return stats, nil
}

// Channels returns per-channel statistics, riskiest channel first.
func (s *Service) Channels(ctx context.Context) ([]domain.ChannelStat, error) {
	if data := s.fromCache(ctx, domain.CacheKeyChannelStats); data != nil {
		var stats []domain.ChannelStat
		if err := json.Unmarshal(data, &stats); err == nil {
			return stats, nil
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("no store available")
	}

	stats, err := s.store.ChannelStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute channel stats: %w", err)
	}

	s.toCache(ctx, domain.CacheKeyChannelStats, stats)
	return stats, nil
}

// Hourly returns per-hour statistics covering all 24 hours.
func (s *Service) Hourly(ctx context.Context) ([]domain.HourlyStat, error) {
	if data := s.fromCache(ctx, domain.CacheKeyHourlyStats); data != nil {
		var stats []domain.HourlyStat
		if err := json.Unmarshal(data, &stats); err == nil {
			return stats, nil
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("no store available")
	}

	stats, err := s.store.HourlyStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hourly stats: %w", err)
	}

	s.toCache(ctx, domain.CacheKeyHourlyStats, stats)
	return stats, nil
}

// Invalidate drops cached aggregates so the next read recomputes.
// Called after writes that change the corpus, e.g. a batch run.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, domain.CacheKeyFraudStats)
	_ = s.cache.Delete(ctx, domain.CacheKeyChannelStats)
	_ = s.cache.Delete(ctx, domain.CacheKeyHourlyStats)
}

func (s *Service) fromCache(ctx context.Context, key string) []byte {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	return data
}

func (s *Service) toCache(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, data, s.ttl)
}
