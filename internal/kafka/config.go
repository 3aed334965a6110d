package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Значения по умолчанию для брокера и консьюмера.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultRetryInitial      = 300 * time.Millisecond
	DefaultMaxRetries        = 5
	DefaultBatchSize         = 100
	DefaultFlushIntervalMs   = 10_000
	DefaultMaxFetchBatch     = 500
	DefaultFetchBatchWait    = 100 * time.Millisecond
	DefaultHeartbeatInterval = 3 * time.Second
	DefaultSessionTimeout    = 30 * time.Second
	DefaultCommitInterval    = time.Second
)

var (
	ErrNoBrokers = errors.New("broker list is empty")
	ErrNoGroupID = errors.New("consumer group id is required")
	ErrNoTopic   = errors.New("topic is required")
)

// RetryPolicy — политика повторов подключения/отправки.
type RetryPolicy struct {
	Initial    time.Duration
	MaxRetries int
}

// BrokerConfig — параметры подключения к брокеру. Неизменяемы после New.
type BrokerConfig struct {
	Brokers        []string
	ClientID       string
	ConnectTimeout time.Duration
	Retry          RetryPolicy
}

// ConsumerConfig — параметры подписки; расширяет BrokerConfig.
type ConsumerConfig struct {
	BrokerConfig

	GroupID         string
	BatchSize       int
	FlushIntervalMs int
	FromBeginning   bool

	// FlushRemainder — сливать остаток (< BatchSize) в конце каждой пачки брокера,
	// не дожидаясь таймера.
	FlushRemainder bool

	MaxFetchBatch  int
	FetchBatchWait time.Duration
}

// withDefaults — возвращает копию с заполненными значениями по умолчанию.
func (c BrokerConfig) withDefaults() BrokerConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Retry.Initial <= 0 {
		c.Retry.Initial = DefaultRetryInitial
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	c.Brokers = normalizeBrokers(c.Brokers)
	return c
}

func (c BrokerConfig) validate() error {
	if len(normalizeBrokers(c.Brokers)) == 0 {
		return ErrNoBrokers
	}
	return nil
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	c.BrokerConfig = c.BrokerConfig.withDefaults()
	c.GroupID = strings.TrimSpace(c.GroupID)
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushIntervalMs <= 0 {
		c.FlushIntervalMs = DefaultFlushIntervalMs
	}
	if c.MaxFetchBatch <= 0 {
		c.MaxFetchBatch = DefaultMaxFetchBatch
	}
	if c.FetchBatchWait <= 0 {
		c.FetchBatchWait = DefaultFetchBatchWait
	}
	return c
}

func (c ConsumerConfig) validate() error {
	if err := c.BrokerConfig.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.GroupID) == "" {
		return ErrNoGroupID
	}
	return nil
}

// FlushInterval — интервал таймерного слива.
func (c ConsumerConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// dialer — общий dialer с client id и таймаутом подключения.
func (c BrokerConfig) dialer() *kafka.Dialer {
	return &kafka.Dialer{
		ClientID:  c.ClientID,
		Timeout:   c.ConnectTimeout,
		DualStack: true,
	}
}

// readerConfig — конфигурация kafka.Reader для группы: оффсеты коммитятся
// по таймеру (CommitInterval), независимо от результата обработчика.
func (c ConsumerConfig) readerConfig(topic string) kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:           c.Brokers,
		GroupID:           c.GroupID,
		Topic:             topic,
		Dialer:            c.dialer(),
		HeartbeatInterval: DefaultHeartbeatInterval,
		SessionTimeout:    DefaultSessionTimeout,
		CommitInterval:    DefaultCommitInterval,
		QueueCapacity:     c.MaxFetchBatch,
		StartOffset:       kafka.LastOffset,
	}
	if c.FromBeginning {
		rc.StartOffset = kafka.FirstOffset
	}
	return rc
}

// normalizeBrokers — убирает пробелы и пустые адреса.
func normalizeBrokers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
