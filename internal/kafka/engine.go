package kafka

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Gunvolt24/batchflow/internal/ports"
)

// Config — конфигурация движка.
type Config struct {
	// Enabled=false — движок заменяется no-op заглушкой (тесты, feature flag).
	Enabled bool
	// ConsumersEnabled=false — подписки игнорируются, продюсер работает.
	ConsumersEnabled bool
	Broker           BrokerConfig
}

// Engine — движок пакетного потребления и публикации.
// Используйте Subscribe и Produce для типизированного доступа.
type Engine interface {
	// Enabled — false для no-op движка.
	Enabled() bool
	// Connect — подключает продюсер; идемпотентно.
	Connect(ctx context.Context) error
	// Disconnect — останавливает таймеры, отбрасывает буферы, отключает
	// продюсер и все консьюмеры параллельно; безопасно вызывать без Connect.
	Disconnect(ctx context.Context) error
	// Publish — публикует уже сериализованные сообщения.
	Publish(ctx context.Context, topic string, msgs []RawMessage) (*ProduceResult, error)
	// Flush — немедленно сливает буфер топика в обработчик.
	Flush(ctx context.Context, topic string)
	// Stats — состояние всех подписанных топиков.
	Stats() []TopicStats

	subscribe(ctx context.Context, topic string, cfg ConsumerConfig, sink batchSink)
}

// Option — настройка движка.
type Option func(*options)

type options struct {
	newConsumer consumerFactory
	newWriter   writerFactory
	probe       probeFunc
	onError     ProduceErrorHook
}

// WithProduceErrorHook — колбэк на ошибки публикации (метрики, алерты).
func WithProduceErrorHook(h ProduceErrorHook) Option {
	return func(o *options) { o.onError = h }
}

func withConsumerFactory(f consumerFactory) Option {
	return func(o *options) { o.newConsumer = f }
}

func withWriterFactory(f writerFactory) Option {
	return func(o *options) { o.newWriter = f }
}

func withProbe(p probeFunc) Option {
	return func(o *options) { o.probe = p }
}

// New — собирает движок. Выбор реализации делается один раз здесь,
// вызывающему коду не нужны проверки флагов.
func New(cfg Config, log ports.Logger, opts ...Option) Engine {
	if !cfg.Enabled {
		log.Infof(context.Background(), "messaging disabled, using no-op engine")
		return noopEngine{log: log}
	}

	o := options{
		newWriter: newKafkaWriter,
		probe:     dialProbe,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.newConsumer == nil {
		newReader, probe := readerFactory(newKafkaReader), o.probe
		o.newConsumer = func(cc ConsumerConfig, log ports.Logger) groupConsumer {
			return newKafkaConsumer(cc, log, newReader, probe)
		}
	}

	broker := cfg.Broker.withDefaults()
	e := &engine{
		broker:   broker,
		log:      log,
		producer: newProducer(broker, log, o.newWriter, o.probe, o.onError),
	}
	if cfg.ConsumersEnabled {
		e.consumers = newDriver(log, o.newConsumer)
	} else {
		log.Infof(context.Background(), "kafka consumers disabled by configuration")
		e.consumers = disabledConsumption{log: log}
	}
	return e
}

type engine struct {
	broker    BrokerConfig
	log       ports.Logger
	producer  *Producer
	consumers consumption
}

func (e *engine) Enabled() bool { return true }

func (e *engine) Connect(ctx context.Context) error {
	if err := e.broker.validate(); err != nil {
		return err
	}
	return e.producer.Connect(ctx)
}

func (e *engine) Disconnect(ctx context.Context) error {
	consumers := e.consumers.shutdown(ctx)

	var g errgroup.Group
	g.Go(func() error {
		if err := e.producer.Disconnect(ctx); err != nil {
			e.log.Warnf(ctx, "producer disconnect: %v", err)
			return err
		}
		return nil
	})
	for _, gc := range consumers {
		g.Go(func() error {
			if err := gc.Disconnect(ctx); err != nil {
				e.log.Warnf(ctx, "consumer disconnect group_id=%s: %v", gc.GroupID(), err)
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	e.log.Infof(ctx, "kafka engine disconnected consumers=%d", len(consumers))
	return err
}

func (e *engine) Publish(ctx context.Context, topic string, msgs []RawMessage) (*ProduceResult, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrNoTopic
	}
	return e.producer.Publish(ctx, topic, msgs), nil
}

func (e *engine) Flush(ctx context.Context, topic string) { e.consumers.flush(ctx, topic) }

func (e *engine) Stats() []TopicStats { return e.consumers.stats() }

func (e *engine) subscribe(ctx context.Context, topic string, cfg ConsumerConfig, sink batchSink) {
	// адреса брокеров консьюмера по умолчанию — из конфигурации движка
	if len(normalizeBrokers(cfg.Brokers)) == 0 {
		cfg.BrokerConfig = e.broker
	}
	e.consumers.subscribe(ctx, topic, cfg, sink)
}

// noopEngine — движок в выключенном режиме: публикация не возвращает
// ни результата, ни ошибки; подписки игнорируются.
type noopEngine struct {
	log ports.Logger
}

func (noopEngine) Enabled() bool                    { return false }
func (noopEngine) Connect(context.Context) error    { return nil }
func (noopEngine) Disconnect(context.Context) error { return nil }
func (noopEngine) Flush(context.Context, string)    {}
func (noopEngine) Stats() []TopicStats              { return nil }

func (noopEngine) Publish(context.Context, string, []RawMessage) (*ProduceResult, error) {
	return nil, nil
}

func (n noopEngine) subscribe(ctx context.Context, topic string, _ ConsumerConfig, _ batchSink) {
	n.log.Infof(ctx, "messaging disabled, skip subscribe topic=%s", topic)
}

// Subscribe — подписывает типизированный обработчик на топик.
// Ошибки настройки логируются; состояние топика видно через Engine.Stats.
func Subscribe[T any](ctx context.Context, e Engine, topic string, cfg ConsumerConfig, h BatchHandler[T]) {
	e.subscribe(ctx, topic, cfg, newSink[T](h))
}

// Produce — сериализует значения в JSON и публикует их.
// Ошибка возвращается только при невозможности сериализации;
// ошибки брокера — в ProduceResult.Err. Выключенный движок возвращает (nil, nil).
func Produce[T any](ctx context.Context, e Engine, topic string, msgs []Message[T]) (*ProduceResult, error) {
	if !e.Enabled() {
		return nil, nil
	}
	raw, err := encodeMessages(msgs)
	if err != nil {
		return nil, err
	}
	return e.Publish(ctx, topic, raw)
}
