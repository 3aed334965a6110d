package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/ports"
)

var _ ports.WatchHistoryRepository = (*WatchHistoryRepository)(nil)

const (
	insertWatchEvent = `
		INSERT INTO watch_history (event_id, user_id, content_id, position_sec, duration_sec, watched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`

	selectLastByUser = `
		SELECT event_id, user_id, content_id, position_sec, duration_sec, watched_at
		FROM watch_history
		WHERE user_id = $1
		ORDER BY watched_at DESC, event_id DESC
		LIMIT $2`
)

// WatchHistoryRepository — история просмотров в Postgres.
type WatchHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewWatchHistoryRepository(pool *pgxpool.Pool) *WatchHistoryRepository {
	return &WatchHistoryRepository{pool: pool}
}

// SaveBatch — вставляет пачку одним round-trip (pgx.Batch) в транзакции.
// Дубликаты по event_id пропускаются; возвращает число вставленных строк.
func (r *WatchHistoryRepository) SaveBatch(ctx context.Context, events []domain.WatchEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	inserted := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range events {
			e := &events[i]
			batch.Queue(insertWatchEvent, e.EventID, e.UserID, e.ContentID, e.PositionSec, e.DurationSec, e.WatchedAt)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range events {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("insert event_id=%s: %w", events[i].EventID, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("save watch batch size=%d: %w", len(events), err)
	}
	return inserted, nil
}

// LastByUser — последние просмотры пользователя, новые первыми.
func (r *WatchHistoryRepository) LastByUser(ctx context.Context, userID string, limit int) ([]domain.WatchEvent, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	rows, err := r.pool.Query(ctx, selectLastByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select history user_id=%s: %w", userID, err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WatchEvent, error) {
		var e domain.WatchEvent
		err := row.Scan(&e.EventID, &e.UserID, &e.ContentID, &e.PositionSec, &e.DurationSec, &e.WatchedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history user_id=%s: %w", userID, err)
	}
	return events, nil
}
