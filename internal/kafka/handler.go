package kafka

import "context"

// BatchHandler — внешний обработчик накопленных пачек.
// Ошибка носит рекомендательный характер: она логируется, но не влияет
// на коммит оффсетов и не вызывает повторную доставку.
type BatchHandler[T any] interface {
	HandleBatch(ctx context.Context, batch []T) error
}

// BatchHandlerFunc — адаптер функции к BatchHandler.
type BatchHandlerFunc[T any] func(ctx context.Context, batch []T) error

func (f BatchHandlerFunc[T]) HandleBatch(ctx context.Context, batch []T) error {
	return f(ctx, batch)
}

// batchSink — нетипизированная сторона обработчика, с которой работает движок.
type batchSink interface {
	decode(raw []byte) (any, error)
	handle(ctx context.Context, batch []any) error
}

// typedSink — связывает BatchHandler[T] с декодированием JSON в T.
type typedSink[T any] struct {
	handler BatchHandler[T]
}

func newSink[T any](h BatchHandler[T]) batchSink { return typedSink[T]{handler: h} }

func (s typedSink[T]) decode(raw []byte) (any, error) {
	var v T
	if err := codec.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s typedSink[T]) handle(ctx context.Context, batch []any) error {
	typed := make([]T, len(batch))
	for i, v := range batch {
		typed[i] = v.(T)
	}
	return s.handler.HandleBatch(ctx, typed)
}
