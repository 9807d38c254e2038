package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/lending/internal/repository"
	"github.com/mkayfour/school-lending/pkg/cache"
	cb "github.com/mkayfour/school-lending/pkg/circuit_breaker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	fail    bool
	failDel bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

var errDown = errors.New("cache down")

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.fail {
		return nil, errDown
	}
	b, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errDown
	}
	c.data[key] = value
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.failDel {
		return errDown
	}
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func newBreaker() cb.CircuitBreaker {
	return cb.New(cb.Config{RecordLength: 4, Timeout: time.Minute, Percentile: 0.5, RecoveryRequests: 1})
}

func TestCached_GetEquipment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repository.NewMemory()
	fc := newFakeCache()
	repo := repository.NewCached(store, fc, newBreaker(), time.Minute, zap.NewNop())

	item, err := repo.CreateEquipment(ctx, model.CreateEquipmentRequest{Name: "Mic", Category: "audio", Condition: "ok", TotalQuantity: 2})
	require.NoError(t, err)

	got, err := repo.GetEquipment(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, item.Name, got.Name)
	require.True(t, fc.has("lending:equipment:1"))

	// served from cache after the store forgets it
	require.NoError(t, store.DeleteEquipment(ctx, item.ID, false))
	got, err = repo.GetEquipment(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, item.ID, got.ID)

	_, err = repo.GetEquipment(ctx, 99)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCached_Invalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fc := newFakeCache()
	repo := repository.NewCached(repository.NewMemory(), fc, newBreaker(), time.Minute, zap.NewNop())

	item, err := repo.CreateEquipment(ctx, model.CreateEquipmentRequest{Name: "Mic", Category: "audio", Condition: "ok", TotalQuantity: 2})
	require.NoError(t, err)
	_, err = repo.GetEquipment(ctx, item.ID)
	require.NoError(t, err)

	name := "Mic XLR"
	_, err = repo.UpdateEquipment(ctx, item.ID, model.UpdateEquipmentRequest{Name: &name})
	require.NoError(t, err)
	require.False(t, fc.has("lending:equipment:1"))

	got, err := repo.GetEquipment(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Mic XLR", got.Name)

	require.NoError(t, repo.DeleteEquipment(ctx, item.ID, false))
	require.False(t, fc.has("lending:equipment:1"))
	_, err = repo.GetEquipment(ctx, item.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCached_CacheDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fc := newFakeCache()
	fc.fail = true
	repo := repository.NewCached(repository.NewMemory(), fc, newBreaker(), time.Minute, zap.NewNop())

	item, err := repo.CreateEquipment(ctx, model.CreateEquipmentRequest{Name: "Mic", Category: "audio", Condition: "ok", TotalQuantity: 2})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := repo.GetEquipment(ctx, item.ID)
		require.NoError(t, err)
		require.Equal(t, item.ID, got.ID)
	}

	fc.mu.Lock()
	gets := fc.gets
	fc.mu.Unlock()
	require.Less(t, gets, 10)
}

func TestCached_CreateRequestAfterFailedEvict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fc := newFakeCache()
	fc.failDel = true
	repo := repository.NewCached(repository.NewMemory(), fc, newBreaker(), time.Minute, zap.NewNop())

	item, err := repo.CreateEquipment(ctx, model.CreateEquipmentRequest{Name: "Cam", Category: "camera", Condition: "ok", TotalQuantity: 1})
	require.NoError(t, err)
	_, err = repo.GetEquipment(ctx, item.ID)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteEquipment(ctx, item.ID, false))
	require.True(t, fc.has("lending:equipment:1"))

	_, err = repo.CreateRequest(ctx, 1, item.ID, model.Period{From: time.Now(), To: time.Now()})
	require.ErrorIs(t, err, errs.ErrReference)
}
