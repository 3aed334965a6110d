package kafka

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxBackoff — верхняя граница экспоненциального роста задержки.
const maxBackoff = 30 * time.Second

// exponential — экспоненциальная задержка с джиттером без ограничения общего времени.
func (r RetryPolicy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.Initial
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultRetryInitial
	}
	b.MaxInterval = maxBackoff
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// retry — выполняет op до успеха, не более 1+MaxRetries попыток.
// Возвращает последнюю ошибку op или ошибку контекста.
func (r RetryPolicy) retry(ctx context.Context, op func(context.Context) error) error {
	if r.MaxRetries <= 0 {
		return op(ctx)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(r.exponential(), uint64(r.MaxRetries)), ctx)
	return backoff.Retry(func() error { return op(ctx) }, policy)
}

// sleep ждет d или останавливается по контексту.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
