package kafka

import (
	"sync"
	"sync/atomic"
	"time"
)

// SubscriptionState — состояние подписки топика.
type SubscriptionState string

const (
	StateUnsubscribed SubscriptionState = "UNSUBSCRIBED"
	StateSubscribing  SubscriptionState = "SUBSCRIBING"
	StateRunning      SubscriptionState = "RUNNING"
	StateStopped      SubscriptionState = "STOPPED"
	StateFailed       SubscriptionState = "FAILED"
)

// TopicStats — снимок состояния топика для health-check и отладки.
type TopicStats struct {
	Topic       string            `json:"topic"`
	GroupID     string            `json:"group_id"`
	State       SubscriptionState `json:"state"`
	Pending     int               `json:"pending"`
	Flushing    bool              `json:"flushing"`
	LastFlushAt time.Time         `json:"last_flush_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Error       string            `json:"error,omitempty"`
}

// topicState — буфер топика: очередь, флаг слива и таймер.
// Состояние принадлежит одному топику и никогда не разделяется между топиками.
type topicState struct {
	topic string
	cfg   ConsumerConfig
	sink  batchSink

	mu      sync.Mutex // защищает pending и state
	pending []any
	state   SubscriptionState
	created time.Time

	// flushMu сериализует сливы: обработчик топика не вызывается параллельно.
	flushMu   sync.Mutex
	flushing  atomic.Bool
	lastFlush atomic.Int64 // unix nano последнего успешного вызова обработчика

	stop     chan struct{}
	stopOnce sync.Once
}

func newTopicState(topic string, cfg ConsumerConfig, sink batchSink) *topicState {
	return &topicState{
		topic:   topic,
		cfg:     cfg,
		sink:    sink,
		pending: make([]any, 0, cfg.BatchSize),
		state:   StateUnsubscribed,
		created: time.Now(),
		stop:    make(chan struct{}),
	}
}

// enqueue — добавляет сообщение в конец очереди, возвращает новую длину.
func (s *topicState) enqueue(v any) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, v)
	return len(s.pending)
}

// take — атомарно меняет очередь на пустую и возвращает прежнюю.
func (s *topicState) take() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = make([]any, 0, s.cfg.BatchSize)
	return batch
}

// discard — отбрасывает очередь, возвращает число потерянных сообщений.
func (s *topicState) discard() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	s.pending = nil
	return n
}

func (s *topicState) setState(st SubscriptionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *topicState) getState() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *topicState) isFlushing() bool { return s.flushing.Load() }

func (s *topicState) stopTimer() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *topicState) stats() TopicStats {
	s.mu.Lock()
	st := TopicStats{
		Topic:     s.topic,
		GroupID:   s.cfg.GroupID,
		State:     s.state,
		Pending:   len(s.pending),
		CreatedAt: s.created,
	}
	s.mu.Unlock()

	st.Flushing = s.flushing.Load()
	if ns := s.lastFlush.Load(); ns > 0 {
		st.LastFlushAt = time.Unix(0, ns)
	}
	return st
}
