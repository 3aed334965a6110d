package domain

import "time"

// WatchEvent — событие просмотра контента (строка истории просмотров).
type WatchEvent struct {
	EventID     string    `json:"event_id" validate:"required,max=64"`
	UserID      string    `json:"user_id" validate:"required,max=64"`
	ContentID   string    `json:"content_id" validate:"required,max=64"`
	PositionSec int       `json:"position_sec" validate:"gte=0"`
	DurationSec int       `json:"duration_sec" validate:"gte=0,gtefield=PositionSec"`
	WatchedAt   time.Time `json:"watched_at" validate:"required"`
}

// Размер выборки истории: по умолчанию и верхняя граница.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)
