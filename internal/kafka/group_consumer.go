package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/batchflow/internal/ports"
	"github.com/Gunvolt24/batchflow/pkg/metrics"
)

var (
	// ErrGroupBound — группа уже читает другой топик в этом процессе.
	ErrGroupBound = errors.New("consumer group is already bound to another topic")
	// ErrNotConnected — Subscribe/Run до Connect.
	ErrNotConnected = errors.New("consumer is not connected")
	// ErrNotSubscribed — Run до Subscribe.
	ErrNotSubscribed = errors.New("consumer is not subscribed")
)

// probeFunc — проверка доступности брокеров.
type probeFunc func(ctx context.Context, cfg BrokerConfig) error

// Batch — пачка сообщений, доставленная брокером за один цикл чтения.
type Batch struct {
	Topic    string
	Messages []kafka.Message

	stale func() bool
}

// IsStale — пачка устарела (консьюмер останавливается).
func (b Batch) IsStale() bool { return b.stale != nil && b.stale() }

// batchFunc — колбэк доставки пачки; вызывается синхронно из цикла чтения.
type batchFunc func(ctx context.Context, b Batch)

// groupConsumer — консьюмер одной группы (ConsumerHandle).
type groupConsumer interface {
	GroupID() string
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, fromBeginning bool) error
	Run(ctx context.Context, onBatch batchFunc) error
	Pause(topic string)
	Resume(topic string)
	Disconnect(ctx context.Context) error
}

type consumerFactory func(cfg ConsumerConfig, log ports.Logger) groupConsumer

// kafkaConsumer — groupConsumer поверх kafka.Reader.
type kafkaConsumer struct {
	cfg       ConsumerConfig
	log       ports.Logger
	newReader readerFactory
	probe     probeFunc

	mu        sync.Mutex
	connected bool
	closed    bool
	topic     string
	reader    reader
	gate      *pauseGate
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newKafkaConsumer(cfg ConsumerConfig, log ports.Logger, newReader readerFactory, probe probeFunc) *kafkaConsumer {
	return &kafkaConsumer{
		cfg:       cfg,
		log:       log,
		newReader: newReader,
		probe:     probe,
		gate:      newPauseGate(),
	}
}

func (c *kafkaConsumer) GroupID() string { return c.cfg.GroupID }

// Connect — проверяет доступность брокеров с повторами (идемпотентно).
func (c *kafkaConsumer) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if c.connected {
		return nil
	}
	if err := c.cfg.Retry.retry(ctx, func(ctx context.Context) error {
		return c.probe(ctx, c.cfg.BrokerConfig)
	}); err != nil {
		return fmt.Errorf("connect group_id=%s brokers=%v: %w", c.cfg.GroupID, c.cfg.Brokers, err)
	}
	c.connected = true
	return nil
}

// Subscribe — создаёт reader для топика. Повторная подписка на тот же топик — no-op.
func (c *kafkaConsumer) Subscribe(_ context.Context, topic string, fromBeginning bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	if c.topic != "" {
		if c.topic == topic {
			return nil
		}
		return fmt.Errorf("%w: group_id=%s topic=%s", ErrGroupBound, c.cfg.GroupID, c.topic)
	}

	cfg := c.cfg
	cfg.FromBeginning = fromBeginning
	rc := cfg.readerConfig(topic)
	rc.ErrorLogger = kafka.LoggerFunc(func(msg string, args ...any) {
		c.log.Warnf(context.Background(), "kafka reader: "+msg, args...)
	})

	c.topic = topic
	c.reader = c.newReader(rc)
	return nil
}

// Run — запускает цикл чтения в отдельной горутине.
func (c *kafkaConsumer) Run(ctx context.Context, onBatch batchFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == nil {
		return ErrNotSubscribed
	}
	if c.done != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	rc := c.reader.Config()
	c.log.Infof(ctx, "kafka consumer started topic=%s group_id=%s brokers=%v", rc.Topic, rc.GroupID, rc.Brokers)

	go c.loop(loopCtx, c.reader, c.topic, onBatch)
	return nil
}

// loop — основной цикл:
// 1) ждём снятия паузы;
// 2) читаем пачку (блокируемся на первом сообщении, добираем уже доступные);
// 3) синхронно отдаём пачку колбэку;
// 4) коммитим оффсеты пачки независимо от результата обработчика
// (фактическая отправка — по таймеру CommitInterval).
func (c *kafkaConsumer) loop(ctx context.Context, r reader, topic string, onBatch batchFunc) {
	defer close(c.done)

	// задержки повторов чтения; сбрасываются после успешной пачки
	retry := c.cfg.Retry.exponential()
	for {
		if !c.gate.wait(ctx) {
			return
		}

		batch, err := c.fetchBatch(ctx, r)
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return
			}
			// Временная ошибка брокера/сети. Ожидаем и повторяем
			wait := retry.NextBackOff()
			c.log.Warnf(ctx, "fetch failed topic=%s group_id=%s: %v (will retry in %s)", topic, c.cfg.GroupID, err, wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		retry.Reset()
		metrics.KafkaMessagesConsumed.WithLabelValues(topic).Add(float64(len(batch)))

		onBatch(ctx, Batch{Topic: topic, Messages: batch, stale: c.isClosed})

		if err := r.CommitMessages(ctx, batch...); err != nil && ctx.Err() == nil {
			c.log.Warnf(ctx, "commit failed topic=%s group_id=%s last_offset=%d: %v",
				topic, c.cfg.GroupID, batch[len(batch)-1].Offset, err)
		}
	}
}

// fetchBatch — блокируется до первого сообщения, затем добирает сообщения,
// которые приходят в пределах FetchBatchWait, но не больше MaxFetchBatch.
func (c *kafkaConsumer) fetchBatch(ctx context.Context, r reader) ([]kafka.Message, error) {
	first, err := r.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	batch := make([]kafka.Message, 1, c.cfg.MaxFetchBatch)
	batch[0] = first
	for len(batch) < c.cfg.MaxFetchBatch {
		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchBatchWait)
		msg, err := r.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			// таймаут или ошибка — отдаём то, что уже набрали
			break
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// Pause — останавливает чтение топика до Resume.
func (c *kafkaConsumer) Pause(topic string) {
	if c.ownsTopic(topic) {
		c.gate.pause()
	}
}

// Resume — возобновляет чтение топика.
func (c *kafkaConsumer) Resume(topic string) {
	if c.ownsTopic(topic) {
		c.gate.resume()
	}
}

// Paused — топик на паузе.
func (c *kafkaConsumer) Paused() bool { return c.gate.isPaused() }

// Disconnect — закрывает reader и ждёт выхода из цикла. Повторный вызов — no-op.
func (c *kafkaConsumer) Disconnect(ctx context.Context) (retErr error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		r, cancel, done := c.reader, c.cancel, c.done
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if r != nil {
			if err := r.Close(); err != nil {
				retErr = fmt.Errorf("close reader group_id=%s: %w", c.cfg.GroupID, err)
			}
		}
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				if retErr == nil {
					retErr = ctx.Err()
				}
			}
		}
	})
	return retErr
}

func (c *kafkaConsumer) ownsTopic(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic == topic
}

func (c *kafkaConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// dialProbe — подключается к первому доступному брокеру.
func dialProbe(ctx context.Context, cfg BrokerConfig) error {
	d := cfg.dialer()
	var lastErr error
	for _, addr := range cfg.Brokers {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		lastErr = err
	}
	if lastErr == nil {
		return ErrNoBrokers
	}
	return lastErr
}

// pauseGate — «шлагбаум» цикла чтения: закрытый канал означает «открыто».
type pauseGate struct {
	mu     sync.Mutex
	paused bool
	ch     chan struct{}
}

func newPauseGate() *pauseGate {
	ch := make(chan struct{})
	close(ch)
	return &pauseGate{ch: ch}
}

func (g *pauseGate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.ch = make(chan struct{})
	}
}

func (g *pauseGate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		close(g.ch)
	}
}

func (g *pauseGate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// wait — ждёт снятия паузы; false — контекст отменён.
func (g *pauseGate) wait(ctx context.Context) bool {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}
