package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Gunvolt24/batchflow/internal/ports"
	"github.com/Gunvolt24/batchflow/pkg/metrics"
)

// writer — минимальный контракт над kafka.Writer.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type writerFactory func(cfg BrokerConfig) writer

// ProduceErrorHook — колбэк для наблюдаемости ошибок публикации.
type ProduceErrorHook func(ctx context.Context, topic string, err error)

// Producer — публикует сообщения через одно общее соединение (kafka.Writer)
// для всех топиков. Ошибки брокера не пробрасываются вызывающему:
// публикация по принципу «отправил и забыл».
type Producer struct {
	cfg       BrokerConfig
	log       ports.Logger
	newWriter writerFactory
	probe     probeFunc
	onError   ProduceErrorHook

	mu sync.Mutex
	w  writer
}

func newProducer(cfg BrokerConfig, log ports.Logger, newWriter writerFactory, probe probeFunc, onError ProduceErrorHook) *Producer {
	return &Producer{
		cfg:       cfg,
		log:       log,
		newWriter: newWriter,
		probe:     probe,
		onError:   onError,
	}
}

// Connect — открывает соединение один раз (идемпотентно).
func (p *Producer) Connect(ctx context.Context) error {
	_, err := p.connected(ctx)
	return err
}

func (p *Producer) connected(ctx context.Context) (writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w != nil {
		return p.w, nil
	}
	if err := p.cfg.Retry.retry(ctx, func(ctx context.Context) error {
		return p.probe(ctx, p.cfg)
	}); err != nil {
		return nil, fmt.Errorf("producer connect brokers=%v: %w", p.cfg.Brokers, err)
	}
	p.w = p.newWriter(p.cfg)
	p.log.Infof(ctx, "kafka producer connected brokers=%v client_id=%s", p.cfg.Brokers, p.cfg.ClientID)
	return p.w, nil
}

// Publish — отправляет сообщения в топик. Ошибки логируются и возвращаются
// только в ProduceResult.Err, чтобы сбой публикации не прерывал бизнес-операцию.
func (p *Producer) Publish(ctx context.Context, topic string, msgs []RawMessage) *ProduceResult {
	res := &ProduceResult{Topic: topic}
	if len(msgs) == 0 {
		return res
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "kafka.produce")
	span.SetAttributes(
		attribute.String("messaging.destination", topic),
		attribute.Int("messaging.batch.message_count", len(msgs)),
	)
	defer span.End()

	w, err := p.connected(ctx)
	if err == nil {
		kms := make([]kafka.Message, len(msgs))
		for i := range msgs {
			kms[i] = msgs[i].toKafkaMessage(topic)
		}
		err = w.WriteMessages(ctx, kms...)
	}

	res.Failed = failedCount(err, len(msgs))
	res.Sent = len(msgs) - res.Failed
	metrics.KafkaMessagesProduced.WithLabelValues(topic).Add(float64(res.Sent))

	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.KafkaProduceFailures.WithLabelValues(topic).Add(float64(res.Failed))
		p.log.Errorf(ctx, "produce failed topic=%s sent=%d failed=%d: %v", topic, res.Sent, res.Failed, err)
		if p.onError != nil {
			p.onError(ctx, topic, err)
		}
	}
	return res
}

// Disconnect — закрывает соединение; безопасно вызывать без Connect.
func (p *Producer) Disconnect(_ context.Context) error {
	p.mu.Lock()
	w := p.w
	p.w = nil
	p.mu.Unlock()
	if w == nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close producer: %w", err)
	}
	return nil
}

// failedCount — число неотправленных сообщений (kafka.WriteErrors — поштучно).
func failedCount(err error, total int) int {
	if err == nil {
		return 0
	}
	var werrs kafka.WriteErrors
	if errors.As(err, &werrs) {
		return werrs.Count()
	}
	return total
}

// newKafkaWriter — общий writer без фиксированного топика.
func newKafkaWriter(cfg BrokerConfig) writer {
	maxAttempts := cfg.Retry.MaxRetries + 1
	return &kafka.Writer{
		Addr:            kafka.TCP(cfg.Brokers...),
		Balancer:        newPartitionBalancer(),
		RequiredAcks:    kafka.RequireAll,
		MaxAttempts:     maxAttempts,
		WriteBackoffMin: cfg.Retry.Initial,
		WriteBackoffMax: maxBackoff,
		Transport: &kafka.Transport{
			ClientID:    cfg.ClientID,
			DialTimeout: cfg.ConnectTimeout,
		},
	}
}
