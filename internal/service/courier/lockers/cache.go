// Package lockers кэширует справочник пунктов выдачи курьерских провайдеров.
// Справочник меняется редко, а провайдеры отдают его медленно, поэтому он
// живёт в Redis с TTL и обновляется по требованию.
package lockers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

const (
	cacheKey   = "marketplace:lockers"
	defaultTTL = 6 * time.Hour
)

// Source отдаёт полный справочник локеров одного провайдера.
type Source interface {
	ProviderID() string
	FetchLockers(ctx context.Context) ([]domain.Locker, error)
}

// Cache — Redis-кэш справочника локеров поверх набора источников.
type Cache struct {
	rdb     *redis.Client
	sources []Source
	ttl     time.Duration
	logger  *logrus.Entry
	now     func() time.Time

	mu        sync.Mutex
	refreshed time.Time
}

// Option настраивает Cache.
type Option func(*Cache)

// WithTTL задаёт срок жизни кэша.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New создаёт кэш локеров.
func New(rdb *redis.Client, logger *logrus.Entry, sources []Source, opts ...Option) *Cache {
	c := &Cache{
		rdb:     rdb,
		sources: sources,
		ttl:     defaultTTL,
		logger:  logger.WithField("component", "locker_cache"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List возвращает справочник локеров, при необходимости обновляя кэш.
func (c *Cache) List(ctx context.Context) ([]domain.Locker, error) {
	raw, err := c.rdb.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var lockers []domain.Locker
		if jsonErr := json.Unmarshal(raw, &lockers); jsonErr == nil {
			return lockers, nil
		}
		// Битое содержимое кэша лечится принудительным обновлением.
		c.logger.Warn("locker cache payload is corrupted, refreshing")
	} else if err != redis.Nil {
		return nil, errors.Wrap(err, "redis get lockers")
	}

	return c.Refresh(ctx, true)
}

// Refresh перечитывает локеры из источников и перезаписывает кэш.
// force=false пропускает обновление, если кэш обновлялся недавно.
func (c *Cache) Refresh(ctx context.Context, force bool) ([]domain.Locker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !force && !c.refreshed.IsZero() && now.Sub(c.refreshed) < c.ttl {
		raw, err := c.rdb.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var lockers []domain.Locker
			if jsonErr := json.Unmarshal(raw, &lockers); jsonErr == nil {
				return lockers, nil
			}
		}
	}

	all := make([]domain.Locker, 0)
	for _, src := range c.sources {
		lockers, err := src.FetchLockers(ctx)
		if err != nil {
			// Один недоступный провайдер не должен ронять весь справочник.
			c.logger.WithError(err).WithField("provider", src.ProviderID()).
				Warn("failed to fetch lockers from provider")
			continue
		}
		all = append(all, lockers...)
	}

	if len(all) == 0 && len(c.sources) > 0 {
		return nil, errors.New("all locker sources failed")
	}

	raw, err := json.Marshal(all)
	if err != nil {
		return nil, errors.Wrap(err, "marshal lockers")
	}
	if err := c.rdb.Set(ctx, cacheKey, raw, c.ttl).Err(); err != nil {
		return nil, errors.Wrap(err, "redis set lockers")
	}

	c.refreshed = now
	return all, nil
}
