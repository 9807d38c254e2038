package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/pkg/cache"
	cb "github.com/mkayfour/school-lending/pkg/circuit_breaker"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const equipmentKeyPrefix = "lending:equipment:"

func equipmentKey(id int64) string {
	return equipmentKeyPrefix + strconv.FormatInt(id, 10)
}

// cached serves GetEquipment from a cache and drops the entry on
// update and delete. Cache failures fall through to the store.
type cached struct {
	Repository
	cache cache.Cache
	cb    cb.CircuitBreaker
	ttl   time.Duration
	log   *zap.Logger
}

func NewCached(repo Repository, c cache.Cache, breaker cb.CircuitBreaker, ttl time.Duration, log *zap.Logger) Repository {
	return &cached{
		Repository: repo,
		cache:      c,
		cb:         breaker,
		ttl:        ttl,
		log:        log.Named("cache"),
	}
}

func (c *cached) GetEquipment(ctx context.Context, id int64) (model.Equipment, error) {
	var b []byte
	err := c.cb.Call(func() error {
		var err error
		b, err = c.cache.Get(ctx, equipmentKey(id))
		if errors.Is(err, cache.ErrMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		c.log.Warn("cache get", zap.Int64("id", id), zap.Error(err))
	}
	if len(b) > 0 {
		var item model.Equipment
		if err := json.Unmarshal(b, &item); err == nil {
			return item, nil
		}
	}

	item, err := c.Repository.GetEquipment(ctx, id)
	if err != nil {
		return model.Equipment{}, err
	}
	c.store(ctx, item)
	return item, nil
}

func (c *cached) UpdateEquipment(ctx context.Context, id int64, req model.UpdateEquipmentRequest) (model.Equipment, error) {
	item, err := c.Repository.UpdateEquipment(ctx, id, req)
	if err != nil {
		return model.Equipment{}, err
	}
	c.evict(ctx, id)
	return item, nil
}

func (c *cached) DeleteEquipment(ctx context.Context, id int64, onlyIdle bool) error {
	if err := c.Repository.DeleteEquipment(ctx, id, onlyIdle); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *cached) store(ctx context.Context, item model.Equipment) {
	b, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := c.cb.Call(func() error {
		return c.cache.Set(ctx, equipmentKey(item.ID), b, c.ttl)
	}); err != nil {
		c.log.Warn("cache set", zap.Int64("id", item.ID), zap.Error(err))
	}
}

func (c *cached) evict(ctx context.Context, id int64) {
	if err := c.cb.Call(func() error {
		return c.cache.Del(ctx, equipmentKey(id))
	}); err != nil {
		c.log.Warn("cache del", zap.Int64("id", id), zap.Error(err))
	}
}
