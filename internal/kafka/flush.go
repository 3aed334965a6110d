package kafka

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Gunvolt24/batchflow/pkg/ctxmeta"
	"github.com/Gunvolt24/batchflow/pkg/metrics"
)

const tracerName = "github.com/Gunvolt24/batchflow/internal/kafka"

// flushTopic — сливает очередь топика в один вызов обработчика.
//
// wait=false (таймер, остаток пачки): если слив уже идёт — выходим сразу.
// wait=true (порог размера, ручной слив): ждём завершения текущего слива,
// чтобы пачки уходили в обработчик строго по порядку.
//
// Ошибка или паника обработчика логируется и не прерывает конвейер.
func (d *driver) flushTopic(ctx context.Context, st *topicState, trigger string, wait bool) {
	if wait {
		st.flushMu.Lock()
	} else if !st.flushMu.TryLock() {
		return
	}
	defer st.flushMu.Unlock()

	// 1) меняем очередь на пустую; пустая пачка в обработчик не попадает
	batch := st.take()
	if len(batch) == 0 {
		return
	}

	// 2) флаг слива
	st.flushing.Store(true)
	// 4) снимаем флаг при любом исходе
	defer st.flushing.Store(false)

	// Обработчик не отменяется посередине пачки, даже при Disconnect.
	hctx := ctxmeta.WithTopic(context.WithoutCancel(ctx), st.topic)
	hctx, span := otel.Tracer(tracerName).Start(hctx, "kafka.flush")
	span.SetAttributes(
		attribute.String("messaging.destination", st.topic),
		attribute.String("messaging.consumer_group", st.cfg.GroupID),
		attribute.String("batch.trigger", trigger),
		attribute.Int("batch.size", len(batch)),
	)
	defer span.End()

	metrics.KafkaBatchFlushes.WithLabelValues(st.topic, trigger).Inc()
	metrics.KafkaBatchSize.WithLabelValues(st.topic).Observe(float64(len(batch)))

	// 3) защищённый вызов обработчика
	start := time.Now()
	if err := invokeHandler(hctx, st.sink, batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.KafkaBatchHandlerFailures.WithLabelValues(st.topic).Inc()
		d.log.Errorf(hctx, "batch handler failed topic=%s size=%d trigger=%s: %v", st.topic, len(batch), trigger, err)
		return
	}

	now := time.Now()
	st.lastFlush.Store(now.UnixNano())
	metrics.KafkaMessagesProcessed.WithLabelValues(st.topic).Add(float64(len(batch)))
	metrics.KafkaBatchLastFlush.WithLabelValues(st.topic).Set(float64(now.Unix()))
	d.log.Infof(hctx, "batch flushed topic=%s size=%d trigger=%s took=%s", st.topic, len(batch), trigger, now.Sub(start))
}

// invokeHandler — вызывает обработчик, превращая панику в ошибку.
func invokeHandler(ctx context.Context, sink batchSink, batch []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return sink.handle(ctx, batch)
}
