package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Gunvolt24/batchflow/internal/domain"
)

// MakeWatchEvent — валидное событие просмотра; поля можно переопределить опциями.
func MakeWatchEvent(opts ...func(*domain.WatchEvent)) domain.WatchEvent {
	e := domain.WatchEvent{
		EventID:     uuid.NewString(),
		UserID:      "user-1",
		ContentID:   "content-" + uuid.NewString()[:8],
		PositionSec: 30,
		DurationSec: 120,
		WatchedAt:   time.Now().UTC().Truncate(time.Second),
	}
	for _, fn := range opts {
		fn(&e)
	}
	return e
}

// MakeWatchEvents — n событий одного пользователя с возрастающим временем просмотра.
func MakeWatchEvents(n int, userID string) []domain.WatchEvent {
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Duration(n) * time.Minute)
	out := make([]domain.WatchEvent, n)
	for i := range out {
		out[i] = MakeWatchEvent(
			WithUser(userID),
			WithContent(fmt.Sprintf("content-%03d", i)),
			WithWatchedAt(base.Add(time.Duration(i)*time.Minute)),
		)
	}
	return out
}

func WithEventID(id string) func(*domain.WatchEvent) {
	return func(e *domain.WatchEvent) { e.EventID = id }
}

func WithUser(id string) func(*domain.WatchEvent) {
	return func(e *domain.WatchEvent) { e.UserID = id }
}

func WithContent(id string) func(*domain.WatchEvent) {
	return func(e *domain.WatchEvent) { e.ContentID = id }
}

func WithWatchedAt(at time.Time) func(*domain.WatchEvent) {
	return func(e *domain.WatchEvent) { e.WatchedAt = at }
}

func WithPosition(position, duration int) func(*domain.WatchEvent) {
	return func(e *domain.WatchEvent) {
		e.PositionSec = position
		e.DurationSec = duration
	}
}
