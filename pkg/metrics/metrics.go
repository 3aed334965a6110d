package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины слива пачки.
const (
	TriggerSize   = "size"
	TriggerTimer  = "timer"
	TriggerDrain  = "drain"
	TriggerManual = "manual"
)

var (
	KafkaMessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Number of messages fetched from Kafka",
		},
		[]string{"topic"},
	)
	KafkaMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_dropped_total",
			Help: "Number of messages dropped because the payload could not be decoded",
		},
		[]string{"topic"},
	)
	KafkaMessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Number of messages handed to batch handlers",
		},
		[]string{"topic"},
	)
	KafkaBatchFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_batch_flushes_total",
			Help: "Number of batch flushes by trigger",
		},
		[]string{"topic", "trigger"},
	)
	KafkaBatchHandlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_batch_handler_failures_total",
			Help: "Number of batch handler calls that returned an error or panicked",
		},
		[]string{"topic"},
	)
	KafkaBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_batch_size",
			Help:    "Number of messages per handler call",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"topic"},
	)
	KafkaBatchLastFlush = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_batch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful batch handler call",
		},
		[]string{"topic"},
	)
	KafkaMessagesProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Number of messages written to Kafka",
		},
		[]string{"topic"},
	)
	KafkaProduceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_produce_failures_total",
			Help: "Number of messages the producer failed to write",
		},
		[]string{"topic"},
	)
)

var (
	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache operations",
		},
		[]string{"op"}, // hit|miss|evicted|expired
	)
	CacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_size",
			Help: "Number of items currently in cache",
		},
	)
)

var registerOnce sync.Once

// MustRegister — регистрирует метрики в глобальном реестре (повторный вызов безопасен).
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			KafkaMessagesConsumed, KafkaMessagesDropped, KafkaMessagesProcessed,
			KafkaBatchFlushes, KafkaBatchHandlerFailures, KafkaBatchSize, KafkaBatchLastFlush,
			KafkaMessagesProduced, KafkaProduceFailures,
			CacheOps, CacheSize,
		)
	})
}
