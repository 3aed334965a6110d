package ports

import (
	"context"

	"github.com/Gunvolt24/batchflow/internal/domain"
)

// WatchHistoryRepository — хранилище истории просмотров.
type WatchHistoryRepository interface {
	// SaveBatch — идемпотентно сохраняет пачку; возвращает число новых строк.
	SaveBatch(ctx context.Context, events []domain.WatchEvent) (int, error)
	LastByUser(ctx context.Context, userID string, limit int) ([]domain.WatchEvent, error)
}

// WatchHistoryReader — чтение истории для HTTP-слоя.
type WatchHistoryReader interface {
	History(ctx context.Context, userID string, limit int) ([]domain.WatchEvent, error)
}
