package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/batchflow/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

// fakeConsumer — groupConsumer без брокера: пачки доставляются вручную через deliver.
type fakeConsumer struct {
	groupID string

	connectErr   error
	subscribeErr error
	runErr       error
	// connectStarted/connectGate — Connect сообщает о входе и ждёт закрытия gate
	connectStarted chan struct{}
	connectGate    chan struct{}

	mu          sync.Mutex
	topic       string
	onBatch     batchFunc
	runCtx      context.Context
	offset      int64
	pauses      int
	resumes     int
	paused      bool
	disconnects int
}

func (f *fakeConsumer) GroupID() string { return f.groupID }

func (f *fakeConsumer) Connect(context.Context) error {
	if f.connectStarted != nil {
		close(f.connectStarted)
	}
	if f.connectGate != nil {
		<-f.connectGate
	}
	return f.connectErr
}

func (f *fakeConsumer) Subscribe(_ context.Context, topic string, _ bool) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topic != "" && f.topic != topic {
		return fmt.Errorf("%w: group_id=%s topic=%s", ErrGroupBound, f.groupID, f.topic)
	}
	f.topic = topic
	return nil
}

func (f *fakeConsumer) Run(ctx context.Context, onBatch batchFunc) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.mu.Lock()
	f.onBatch = onBatch
	f.runCtx = ctx
	f.mu.Unlock()
	return nil
}

func (f *fakeConsumer) Pause(string) {
	f.mu.Lock()
	f.pauses++
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeConsumer) Resume(string) {
	f.mu.Lock()
	f.resumes++
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeConsumer) Disconnect(context.Context) error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	return nil
}

func (f *fakeConsumer) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// deliver — синхронно отдаёт пачку сырых значений, как это делает цикл чтения.
func (f *fakeConsumer) deliver(t *testing.T, values ...[]byte) {
	t.Helper()
	f.mu.Lock()
	onBatch, ctx, topic := f.onBatch, f.runCtx, f.topic
	msgs := make([]kafka.Message, len(values))
	for i, v := range values {
		msgs[i] = kafka.Message{Topic: topic, Offset: f.offset, Value: v}
		f.offset++
	}
	f.mu.Unlock()
	require.NotNil(t, onBatch, "consumer is not running")
	onBatch(ctx, Batch{Topic: topic, Messages: msgs})
}

// deliverInts — пачка JSON-чисел from..to включительно.
func (f *fakeConsumer) deliverInts(t *testing.T, from, to int) {
	t.Helper()
	values := make([][]byte, 0, to-from+1)
	for i := from; i <= to; i++ {
		values = append(values, []byte(fmt.Sprint(i)))
	}
	f.deliver(t, values...)
}

// recorder — обработчик, запоминающий все пачки.
type recorder[T any] struct {
	mu      sync.Mutex
	batches [][]T
	err     error
	panicOn int // номер вызова (с 1), на котором паниковать
	delay   time.Duration

	active    int
	maxActive int
}

func (r *recorder[T]) HandleBatch(_ context.Context, batch []T) error {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.batches = append(r.batches, append([]T(nil), batch...))
	call, err, delay, panicOn := len(r.batches), r.err, r.delay, r.panicOn
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if panicOn == call {
		panic("boom")
	}
	return err
}

func (r *recorder[T]) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.batches))
	for i, b := range r.batches {
		out[i] = len(b)
	}
	return out
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *recorder[T]) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

var errHandler = errors.New("handler failed")

// fakeFactory — выдаёт заранее созданные фейки по group id.
type fakeFactory struct {
	mu       sync.Mutex
	byGroup  map[string]*fakeConsumer
	prepared map[string]*fakeConsumer
	created  int
}

func newFakeFactory(prepared ...*fakeConsumer) *fakeFactory {
	f := &fakeFactory{byGroup: map[string]*fakeConsumer{}, prepared: map[string]*fakeConsumer{}}
	for _, fc := range prepared {
		f.prepared[fc.groupID] = fc
	}
	return f
}

func (f *fakeFactory) newConsumer(cfg ConsumerConfig, _ ports.Logger) groupConsumer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	fc, ok := f.prepared[cfg.GroupID]
	if !ok {
		fc = &fakeConsumer{groupID: cfg.GroupID}
	}
	delete(f.prepared, cfg.GroupID)
	f.byGroup[cfg.GroupID] = fc
	return fc
}

func (f *fakeFactory) get(groupID string) *fakeConsumer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byGroup[groupID]
}

func (f *fakeFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func okProbe(context.Context, BrokerConfig) error { return nil }

func newTestEngine(t *testing.T, ff *fakeFactory, opts ...Option) Engine {
	t.Helper()
	opts = append([]Option{withConsumerFactory(ff.newConsumer), withProbe(okProbe)}, opts...)
	e := New(Config{
		Enabled:          true,
		ConsumersEnabled: true,
		Broker:           BrokerConfig{Brokers: []string{"b:9092"}, Retry: RetryPolicy{Initial: time.Millisecond}},
	}, nopLogger{}, opts...)
	t.Cleanup(func() { _ = e.Disconnect(context.Background()) })
	return e
}

// consumerCfg — подписка с таймером, который в тесте сам не сработает.
func consumerCfg(group string, batchSize int) ConsumerConfig {
	return ConsumerConfig{GroupID: group, BatchSize: batchSize, FlushIntervalMs: int(time.Hour / time.Millisecond)}
}

func statsFor(t *testing.T, e Engine, topic string) TopicStats {
	t.Helper()
	for _, s := range e.Stats() {
		if s.Topic == topic {
			return s
		}
	}
	t.Fatalf("no stats for topic=%s", topic)
	return TopicStats{}
}
