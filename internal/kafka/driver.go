package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Gunvolt24/batchflow/internal/ports"
	"github.com/Gunvolt24/batchflow/pkg/metrics"
)

// consumption — потребительская часть движка: реальная или отключённая.
type consumption interface {
	subscribe(ctx context.Context, topic string, cfg ConsumerConfig, sink batchSink)
	flush(ctx context.Context, topic string)
	stats() []TopicStats
	// shutdown — останавливает таймеры, отбрасывает буферы, очищает реестры
	// и возвращает консьюмеры, которые нужно отключить.
	shutdown(ctx context.Context) []groupConsumer
}

type failure struct {
	groupID string
	err     error
}

// driver — связывает консьюмеры групп с буферами топиков.
type driver struct {
	log      ports.Logger
	registry *registry

	mu       sync.Mutex
	topics   map[string]*topicState
	failures map[string]failure
	runCtx   context.Context
	cancel   context.CancelFunc
	// gen — номер поколения; shutdown увеличивает его, и подписки,
	// начатые до остановки, откатываются.
	gen    uint64
	timers *sync.WaitGroup
}

// errShutdown — подписка пересеклась с остановкой движка.
var errShutdown = errors.New("engine was disconnected during subscribe")

func newDriver(log ports.Logger, factory consumerFactory) *driver {
	runCtx, cancel := context.WithCancel(context.Background())
	return &driver{
		log:      log,
		registry: newRegistry(factory, log),
		topics:   make(map[string]*topicState),
		failures: make(map[string]failure),
		runCtx:   runCtx,
		cancel:   cancel,
		timers:   &sync.WaitGroup{},
	}
}

// subscribe — UNSUBSCRIBED -> SUBSCRIBING -> RUNNING | FAILED.
// Ошибки настройки не пробрасываются: топик просто остаётся непрочитанным.
func (d *driver) subscribe(ctx context.Context, topic string, cfg ConsumerConfig, sink batchSink) {
	topic = strings.TrimSpace(topic)
	cfg = cfg.withDefaults()

	if topic == "" {
		d.log.Errorf(ctx, "subscribe setup failed group_id=%s: %v", cfg.GroupID, ErrNoTopic)
		return
	}

	d.mu.Lock()
	// живая подписка важнее ошибки повторной: её состояние не трогаем
	if cur, ok := d.topics[topic]; ok {
		d.mu.Unlock()
		d.log.Warnf(ctx, "topic=%s already subscribed (group_id=%s state=%s), skip", topic, cur.cfg.GroupID, cur.getState())
		return
	}
	if err := cfg.validate(); err != nil {
		d.failures[topic] = failure{groupID: cfg.GroupID, err: err}
		d.mu.Unlock()
		d.log.Errorf(ctx, "subscribe setup failed topic=%s: %v", topic, err)
		return
	}
	st := newTopicState(topic, cfg, sink)
	st.setState(StateSubscribing)
	d.topics[topic] = st
	runCtx, gen := d.runCtx, d.gen
	d.mu.Unlock()

	gc, created := d.registry.getOrCreate(ctx, cfg)
	if err := d.start(ctx, runCtx, gen, st, gc); err != nil {
		d.log.Errorf(ctx, "subscribe failed topic=%s group_id=%s: %v", topic, cfg.GroupID, err)
		d.rollback(ctx, gen, st, gc, created, err)
		return
	}

	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		d.log.Warnf(ctx, "subscribe topic=%s group_id=%s: %v", topic, cfg.GroupID, errShutdown)
		d.rollback(ctx, gen, st, gc, created, errShutdown)
		return
	}
	st.setState(StateRunning)
	delete(d.failures, topic)
	d.mu.Unlock()

	d.log.Infof(ctx, "subscribed topic=%s group_id=%s batch_size=%d flush_interval=%s from_beginning=%t",
		topic, cfg.GroupID, cfg.BatchSize, cfg.FlushInterval(), cfg.FromBeginning)
}

func (d *driver) start(ctx, runCtx context.Context, gen uint64, st *topicState, gc groupConsumer) error {
	if err := gc.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := gc.Subscribe(ctx, st.topic, st.cfg.FromBeginning); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	if err := d.startTimer(runCtx, gen, st); err != nil {
		return err
	}

	if err := gc.Run(runCtx, func(ctx context.Context, b Batch) {
		d.onBatch(ctx, st, gc, b)
	}); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// rollback — убирает всё, что успели создать для топика.
// Консьюмер удаляется из реестра, только если был создан этой подпиской.
// Подписка прошлого поколения не оставляет следов в текущем состоянии.
func (d *driver) rollback(ctx context.Context, gen uint64, st *topicState, gc groupConsumer, created bool, cause error) {
	st.stopTimer()
	st.discard()

	d.mu.Lock()
	current := d.gen == gen
	if current {
		if d.topics[st.topic] == st {
			delete(d.topics, st.topic)
		}
		d.failures[st.topic] = failure{groupID: st.cfg.GroupID, err: cause}
	}
	d.mu.Unlock()

	if current {
		st.setState(StateFailed)
	} else {
		st.setState(StateStopped)
	}

	if created {
		d.registry.remove(gc)
		if err := gc.Disconnect(ctx); err != nil {
			d.log.Warnf(ctx, "rollback disconnect group_id=%s: %v", gc.GroupID(), err)
		}
	}
}

// onBatch — обработка пачки брокера:
// пауза чтения -> разбор и накопление -> слив по порогу -> (остаток) -> возобновление.
func (d *driver) onBatch(ctx context.Context, st *topicState, gc groupConsumer, b Batch) {
	gc.Pause(st.topic)
	// возобновляем при любом исходе, чтобы топик не остался на паузе навсегда
	defer gc.Resume(st.topic)

	for _, m := range b.Messages {
		if ctx.Err() != nil || b.IsStale() {
			break
		}

		v, err := st.sink.decode(m.Value)
		if err != nil {
			metrics.KafkaMessagesDropped.WithLabelValues(st.topic).Inc()
			d.log.Warnf(ctx, "drop invalid message topic=%s partition=%d offset=%d: %v", st.topic, m.Partition, m.Offset, err)
			continue
		}

		// синхронный backpressure: брокер не отдаёт новые данные, пока идёт слив
		if st.enqueue(v) >= st.cfg.BatchSize {
			d.flushTopic(ctx, st, metrics.TriggerSize, true)
		}
	}

	if st.cfg.FlushRemainder && !st.isFlushing() {
		d.flushTopic(ctx, st, metrics.TriggerDrain, false)
	}
}

// startTimer — периодический слив для топиков, не набирающих BatchSize.
// Таймер регистрируется в WaitGroup своего поколения.
func (d *driver) startTimer(runCtx context.Context, gen uint64, st *topicState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return errShutdown
	}

	timers := d.timers
	timers.Add(1)
	go func() {
		defer timers.Done()
		ticker := time.NewTicker(st.cfg.FlushInterval())
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-st.stop:
				return
			case <-ticker.C:
				if !st.isFlushing() {
					d.flushTopic(runCtx, st, metrics.TriggerTimer, false)
				}
			}
		}
	}()
	return nil
}

// flush — ручной слив топика; ждёт текущий слив, если он идёт.
func (d *driver) flush(ctx context.Context, topic string) {
	d.mu.Lock()
	st, ok := d.topics[topic]
	d.mu.Unlock()
	if !ok {
		d.log.Warnf(ctx, "flush skipped: topic=%s is not subscribed", topic)
		return
	}
	d.flushTopic(ctx, st, metrics.TriggerManual, true)
}

func (d *driver) stats() []TopicStats {
	d.mu.Lock()
	out := make([]TopicStats, 0, len(d.topics)+len(d.failures))
	for _, st := range d.topics {
		out = append(out, st.stats())
	}
	for topic, f := range d.failures {
		out = append(out, TopicStats{Topic: topic, GroupID: f.groupID, State: StateFailed, Error: f.err.Error()})
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

func (d *driver) shutdown(ctx context.Context) []groupConsumer {
	d.mu.Lock()
	topics, cancel, timers := d.topics, d.cancel, d.timers
	d.gen++
	d.topics = make(map[string]*topicState)
	d.failures = make(map[string]failure)
	// новое поколение, чтобы после Disconnect можно было подписаться заново
	d.runCtx, d.cancel = context.WithCancel(context.Background())
	d.timers = &sync.WaitGroup{}
	d.mu.Unlock()

	cancel()
	for _, st := range topics {
		st.stopTimer()
	}
	timers.Wait()

	for _, st := range topics {
		if n := st.discard(); n > 0 {
			d.log.Warnf(ctx, "discarded %d pending messages topic=%s", n, st.topic)
		}
		st.setState(StateStopped)
	}
	return d.registry.reset()
}

// disabledConsumption — консьюмеры выключены конфигурацией; продюсер работает.
type disabledConsumption struct {
	log ports.Logger
}

func (c disabledConsumption) subscribe(ctx context.Context, topic string, cfg ConsumerConfig, _ batchSink) {
	c.log.Infof(ctx, "consumers disabled, skip subscribe topic=%s group_id=%s", topic, cfg.GroupID)
}

func (disabledConsumption) flush(context.Context, string)            {}
func (disabledConsumption) stats() []TopicStats                      { return nil }
func (disabledConsumption) shutdown(context.Context) []groupConsumer { return nil }
