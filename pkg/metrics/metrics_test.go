package metrics_test

import (
	"testing"

	"github.com/Gunvolt24/batchflow/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegister_IsIdempotent(t *testing.T) {
	// Должно выполняться без паники даже при повторном вызове.
	t.Helper()
	metrics.MustRegister()
	metrics.MustRegister()
}

func TestKafkaCounters_Inc(t *testing.T) {
	metrics.MustRegister()

	beforeConsumed := testutil.ToFloat64(metrics.KafkaMessagesConsumed.WithLabelValues("watch"))
	beforeProcessed := testutil.ToFloat64(metrics.KafkaMessagesProcessed.WithLabelValues("watch"))
	beforeFailures := testutil.ToFloat64(metrics.KafkaBatchHandlerFailures.WithLabelValues("watch"))

	metrics.KafkaMessagesConsumed.WithLabelValues("watch").Inc()
	metrics.KafkaMessagesProcessed.WithLabelValues("watch").Add(3)
	metrics.KafkaBatchHandlerFailures.WithLabelValues("watch").Inc()

	if got := testutil.ToFloat64(metrics.KafkaMessagesConsumed.WithLabelValues("watch")); got != beforeConsumed+1 {
		t.Fatalf("KafkaMessagesConsumed: got=%v want=%v", got, beforeConsumed+1)
	}
	if got := testutil.ToFloat64(metrics.KafkaMessagesProcessed.WithLabelValues("watch")); got != beforeProcessed+3 {
		t.Fatalf("KafkaMessagesProcessed: got=%v want=%v", got, beforeProcessed+3)
	}
	if got := testutil.ToFloat64(metrics.KafkaBatchHandlerFailures.WithLabelValues("watch")); got != beforeFailures+1 {
		t.Fatalf("KafkaBatchHandlerFailures: got=%v want=%v", got, beforeFailures+1)
	}
}

func TestKafkaBatchFlushes_ByTrigger(t *testing.T) {
	metrics.MustRegister()

	sizeBefore := testutil.ToFloat64(metrics.KafkaBatchFlushes.WithLabelValues("watch", metrics.TriggerSize))
	timerBefore := testutil.ToFloat64(metrics.KafkaBatchFlushes.WithLabelValues("watch", metrics.TriggerTimer))

	metrics.KafkaBatchFlushes.WithLabelValues("watch", metrics.TriggerSize).Inc()

	if got := testutil.ToFloat64(metrics.KafkaBatchFlushes.WithLabelValues("watch", metrics.TriggerSize)); got != sizeBefore+1 {
		t.Fatalf("flushes(size): got=%v want=%v", got, sizeBefore+1)
	}
	if got := testutil.ToFloat64(metrics.KafkaBatchFlushes.WithLabelValues("watch", metrics.TriggerTimer)); got != timerBefore {
		t.Fatalf("flushes(timer): got=%v want=%v", got, timerBefore)
	}
}

func TestCacheOps_CountersByLabel(t *testing.T) {
	metrics.MustRegister()

	hitBefore := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("hit"))
	missBefore := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("miss"))

	metrics.CacheOps.WithLabelValues("hit").Inc()
	metrics.CacheOps.WithLabelValues("hit").Inc()

	if got := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("hit")); got != hitBefore+2 {
		t.Fatalf("CacheOps(hit): got=%v want=%v", got, hitBefore+2)
	}
	if got := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("miss")); got != missBefore {
		t.Fatalf("CacheOps(miss): got=%v want=%v", got, missBefore)
	}
}

func TestCacheSize_GaugeSet(t *testing.T) {
	metrics.MustRegister()

	cur := testutil.ToFloat64(metrics.CacheSize)

	metrics.CacheSize.Set(cur + 5)
	if got := testutil.ToFloat64(metrics.CacheSize); got != cur+5 {
		t.Fatalf("CacheSize after +5: got=%v want=%v", got, cur+5)
	}

	metrics.CacheSize.Set(cur) // вернуть как было
	if got := testutil.ToFloat64(metrics.CacheSize); got != cur {
		t.Fatalf("CacheSize restore: got=%v want=%v", got, cur)
	}
}
