package selection

import (
	"context"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/logger"
	"github.com/wonny/quantmon/pkg/redis"
)

// CachedStore puts a Redis read-through cache in front of a TradeSheetStore.
// With Redis disabled every call goes straight to the inner store.
type CachedStore struct {
	inner  contracts.TradeSheetStore
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedStore wraps inner with cache
func NewCachedStore(inner contracts.TradeSheetStore, cache *redis.Cache, log *logger.Logger) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, logger: log}
}

// SaveTradeSheet writes through and refreshes the cached entries
func (s *CachedStore) SaveTradeSheet(ctx context.Context, sheet *contracts.TradeSheet) error {
	if err := s.inner.SaveTradeSheet(ctx, sheet); err != nil {
		return err
	}

	key := redis.TradeSheetKey(sheet.EntryDate.Format(contracts.DateLayout))
	if err := s.cache.Set(ctx, key, sheet, redis.TTLDaily); err != nil {
		s.logger.WithError(err).Warn("Trade sheet cache write failed")
	}
	if err := s.cache.Delete(ctx, redis.LatestTradeSheetKey()); err != nil {
		s.logger.WithError(err).Warn("Latest trade sheet cache invalidation failed")
	}
	return nil
}

// GetTradeSheet reads through the cache
func (s *CachedStore) GetTradeSheet(ctx context.Context, entry time.Time) (*contracts.TradeSheet, error) {
	var sheet contracts.TradeSheet
	key := redis.TradeSheetKey(contracts.Day(entry).Format(contracts.DateLayout))
	err := s.cache.GetOrSet(ctx, key, &sheet, redis.TTLDaily, func() (interface{}, error) {
		return s.inner.GetTradeSheet(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

// LatestTradeSheet reads through the cache with a short TTL
func (s *CachedStore) LatestTradeSheet(ctx context.Context) (*contracts.TradeSheet, error) {
	var sheet contracts.TradeSheet
	err := s.cache.GetOrSet(ctx, redis.LatestTradeSheetKey(), &sheet, redis.TTLShort, func() (interface{}, error) {
		return s.inner.LatestTradeSheet(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}
