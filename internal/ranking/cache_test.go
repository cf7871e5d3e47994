package ranking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/pkg/logger"
	"github.com/wonny/optionrank/pkg/redis"
)

type stubRankStore struct {
	sets    map[string]*contracts.RankSet
	reads   int
	commits int

	// afterRead runs once between the store read and the return
	afterRead func()
}

func (s *stubRankStore) CommitRun(ctx context.Context, job *contracts.RankingJob, token string, set *contracts.RankSet) error {
	s.commits++
	s.sets[set.Symbol] = set
	return nil
}

func (s *stubRankStore) Latest(ctx context.Context, symbol string) (*contracts.RankSet, error) {
	s.reads++
	set, ok := s.sets[symbol]
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	if !ok {
		return nil, contracts.ErrRankingNotFound
	}
	return set, nil
}

func TestCachedRankStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromRedis(db), "optionrank")
	store := &stubRankStore{sets: map[string]*contracts.RankSet{}}
	cached := NewCachedRankStore(store, cache, logger.Nop())
	ctx := context.Background()

	set := &contracts.RankSet{Symbol: "AAPL", JobID: uuid.New(), AsOf: runAt, GeneratedAt: runAt}
	data, err := json.Marshal(set)
	require.NoError(t, err)

	// commit → write-through
	mock.ExpectSet("optionrank:cache:rankset:AAPL", data, redis.TTLMedium).SetVal("OK")
	require.NoError(t, cached.CommitRun(ctx, &contracts.RankingJob{}, "token", set))
	assert.Equal(t, 1, store.commits)

	// hit → store untouched
	mock.ExpectGet("optionrank:cache:rankset:AAPL").SetVal(string(data))
	got, err := cached.Latest(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, set.JobID, got.JobID)
	assert.Equal(t, 0, store.reads)

	// miss on a stored symbol → filled from the store
	spy := &contracts.RankSet{Symbol: "SPY", JobID: uuid.New(), AsOf: runAt, GeneratedAt: runAt}
	store.sets["SPY"] = spy
	spyData, err := json.Marshal(spy)
	require.NoError(t, err)
	mock.ExpectGet("optionrank:cache:rankset:SPY").RedisNil()
	mock.ExpectSetNX("optionrank:cache:rankset:SPY", spyData, redis.TTLMedium).SetVal(true)
	got, err = cached.Latest(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, spy.JobID, got.JobID)
	assert.Equal(t, 1, store.reads)

	// miss on unknown symbol → store error surfaces
	mock.ExpectGet("optionrank:cache:rankset:MSFT").RedisNil()
	_, err = cached.Latest(ctx, "MSFT")
	assert.ErrorIs(t, err, contracts.ErrRankingNotFound)
	assert.Equal(t, 2, store.reads)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedRankStore_Disabled(t *testing.T) {
	cache := redis.NewCache(redis.NewFromRedis(nil), "optionrank")
	store := &stubRankStore{sets: map[string]*contracts.RankSet{"SPY": {Symbol: "SPY"}}}
	cached := NewCachedRankStore(store, cache, logger.Nop())

	got, err := cached.Latest(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "SPY", got.Symbol)
	assert.Equal(t, 1, store.reads)
}

func TestCachedRankStore_CommitDuringFill(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromRedis(db), "optionrank")
	ctx := context.Background()

	older := &contracts.RankSet{Symbol: "AAPL", JobID: uuid.New(), AsOf: runAt, GeneratedAt: runAt}
	newer := &contracts.RankSet{Symbol: "AAPL", JobID: uuid.New(), AsOf: runAt.Add(time.Hour), GeneratedAt: runAt.Add(time.Hour)}
	olderData, err := json.Marshal(older)
	require.NoError(t, err)
	newerData, err := json.Marshal(newer)
	require.NoError(t, err)

	store := &stubRankStore{sets: map[string]*contracts.RankSet{"AAPL": older}}
	cached := NewCachedRankStore(store, cache, logger.Nop())

	// the read misses and loads the older set; a commit lands before the fill
	mock.ExpectGet("optionrank:cache:rankset:AAPL").RedisNil()
	mock.ExpectSet("optionrank:cache:rankset:AAPL", newerData, redis.TTLMedium).SetVal("OK")
	mock.ExpectSetNX("optionrank:cache:rankset:AAPL", olderData, redis.TTLMedium).SetVal(false)
	store.afterRead = func() {
		require.NoError(t, cached.CommitRun(ctx, &contracts.RankingJob{}, "token", newer))
	}

	got, err := cached.Latest(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, older.JobID, got.JobID, "in-flight read returns what it loaded")

	// the committed set is still what the cache serves
	mock.ExpectGet("optionrank:cache:rankset:AAPL").SetVal(string(newerData))
	got, err = cached.Latest(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, newer.JobID, got.JobID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedRankStore_WriteThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromRedis(db), "optionrank")
	older := &contracts.RankSet{Symbol: "QQQ", JobID: uuid.New(), AsOf: runAt, GeneratedAt: runAt}
	store := &stubRankStore{sets: map[string]*contracts.RankSet{"QQQ": older}}
	ctx := context.Background()

	view := NewCachedRankStore(store, cache, logger.Nop()).WriteThrough()

	// reads bypass redis entirely
	got, err := view.Latest(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, older.JobID, got.JobID)
	assert.Equal(t, 1, store.reads)

	// commits still refresh the shared cache
	newer := &contracts.RankSet{Symbol: "QQQ", JobID: uuid.New(), AsOf: runAt.Add(time.Hour), GeneratedAt: runAt.Add(time.Hour)}
	newerData, err := json.Marshal(newer)
	require.NoError(t, err)
	mock.ExpectSet("optionrank:cache:rankset:QQQ", newerData, redis.TTLMedium).SetVal("OK")
	require.NoError(t, view.CommitRun(ctx, &contracts.RankingJob{}, "token", newer))
	assert.Equal(t, 1, store.commits)

	got, err = view.Latest(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, newer.JobID, got.JobID)
	assert.Equal(t, 2, store.reads)

	assert.NoError(t, mock.ExpectationsWereMet())
}
