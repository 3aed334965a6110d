package kafka

import (
	"context"
	"sync"

	"github.com/Gunvolt24/batchflow/internal/ports"
)

// registry — не более одного живого консьюмера на group id в процессе.
type registry struct {
	mu        sync.Mutex
	consumers map[string]groupConsumer
	factory   consumerFactory
	log       ports.Logger
}

func newRegistry(factory consumerFactory, log ports.Logger) *registry {
	return &registry{
		consumers: make(map[string]groupConsumer),
		factory:   factory,
		log:       log,
	}
}

// getOrCreate — возвращает консьюмер группы; created=true, если он создан этим вызовом.
// Повторный запрос той же группы — предупреждение, а не ошибка.
func (r *registry) getOrCreate(ctx context.Context, cfg ConsumerConfig) (gc groupConsumer, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.consumers[cfg.GroupID]; ok {
		r.log.Warnf(ctx, "consumer for group_id=%s already exists, reusing it", cfg.GroupID)
		return existing, false
	}

	gc = r.factory(cfg, r.log)
	r.consumers[cfg.GroupID] = gc
	return gc, true
}

// remove — удаляет запись, только если она указывает на тот же консьюмер.
func (r *registry) remove(gc groupConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.consumers[gc.GroupID()]; ok && cur == gc {
		delete(r.consumers, gc.GroupID())
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consumers)
}

// reset — очищает реестр и возвращает все консьюмеры.
func (r *registry) reset() []groupConsumer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]groupConsumer, 0, len(r.consumers))
	for _, gc := range r.consumers {
		out = append(out, gc)
	}
	r.consumers = make(map[string]groupConsumer)
	return out
}
