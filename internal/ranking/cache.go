package ranking

import (
	"context"
	"fmt"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/pkg/logger"
	"github.com/wonny/optionrank/pkg/redis"
)

// CachedRankStore puts a Redis read cache in front of a RankStore.
// Cache failures fall through to the store.
type CachedRankStore struct {
	contracts.RankStore
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedRankStore wraps store with cache
func NewCachedRankStore(store contracts.RankStore, cache *redis.Cache, log *logger.Logger) *CachedRankStore {
	return &CachedRankStore{
		RankStore: store,
		cache:     cache,
		logger:    log,
	}
}

// CommitRun commits to the store, then refreshes the cached set
func (s *CachedRankStore) CommitRun(ctx context.Context, job *contracts.RankingJob, token string, set *contracts.RankSet) error {
	if err := s.RankStore.CommitRun(ctx, job, token, set); err != nil {
		return err
	}

	if err := s.cache.Set(ctx, redis.RankSetKey(set.Symbol), set, redis.TTLMedium); err != nil {
		s.logger.WithError(err).WithField("symbol", set.Symbol).Warn("Failed to refresh ranking cache")
		// 오래된 값이 남지 않도록 삭제 시도
		_ = s.cache.Delete(ctx, redis.RankSetKey(set.Symbol))
	}
	return nil
}

// Latest serves from cache when present. A miss fills the key only if it is
// still absent so a concurrent CommitRun is never overwritten by an older set.
func (s *CachedRankStore) Latest(ctx context.Context, symbol string) (*contracts.RankSet, error) {
	var cached contracts.RankSet
	found, err := s.cache.Get(ctx, redis.RankSetKey(symbol), &cached)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Ranking cache read failed")
	}
	if found {
		return &cached, nil
	}

	set, err := s.RankStore.Latest(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load ranking %s: %w", symbol, err)
	}

	if _, err := s.cache.SetNX(ctx, redis.RankSetKey(symbol), set, redis.TTLMedium); err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to populate ranking cache")
	}
	return set, nil
}

// WriteThrough returns a view that reads straight from the store but still
// refreshes the cache on commit. The worker smooths against it.
func (s *CachedRankStore) WriteThrough() contracts.RankStore {
	return writeThroughStore{s}
}

type writeThroughStore struct {
	*CachedRankStore
}

func (w writeThroughStore) Latest(ctx context.Context, symbol string) (*contracts.RankSet, error) {
	return w.RankStore.Latest(ctx, symbol)
}
