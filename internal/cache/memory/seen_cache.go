package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Gunvolt24/batchflow/internal/ports"
	"github.com/Gunvolt24/batchflow/pkg/metrics"
)

var _ ports.SeenCache = (*SeenCache)(nil)

// SeenCache — ограниченное множество event_id с вытеснением LRU и TTL.
// Защищает от повторной записи событий, которые брокер доставил ещё раз.
type SeenCache struct {
	lru *expirable.LRU[string, struct{}]
}

// NewSeenCache — ttl <= 0 отключает истечение записей.
func NewSeenCache(capacity int, ttl time.Duration) *SeenCache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl < 0 {
		ttl = 0
	}
	// колбэк вызывается под блокировкой LRU: только счётчики
	onEvict := func(string, struct{}) {
		metrics.CacheOps.WithLabelValues("evicted").Inc()
		metrics.CacheSize.Dec()
	}
	return &SeenCache{lru: expirable.NewLRU[string, struct{}](capacity, onEvict, ttl)}
}

// Seen — id уже отмечен и запись не истекла. TTL при чтении не продлевается.
func (c *SeenCache) Seen(_ context.Context, id string) bool {
	if _, ok := c.lru.Get(id); ok {
		metrics.CacheOps.WithLabelValues("hit").Inc()
		return true
	}
	metrics.CacheOps.WithLabelValues("miss").Inc()
	return false
}

// Mark — отмечает id; повторная отметка продлевает TTL.
func (c *SeenCache) Mark(_ context.Context, ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		c.lru.Add(id, struct{}{})
	}
	metrics.CacheSize.Set(float64(c.lru.Len()))
}

// Len — число записей, включая ещё не вычищенные истёкшие.
func (c *SeenCache) Len() int { return c.lru.Len() }
