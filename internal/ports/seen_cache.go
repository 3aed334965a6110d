package ports

import "context"

// SeenCache — множество недавно обработанных event_id.
// Требования к реализации: потокобезопасность; доступ по ключу не хуже O(1).
type SeenCache interface {
	// Seen — true, если id уже обработан и запись не истекла.
	Seen(ctx context.Context, id string) bool
	// Mark — запомнить обработанные id.
	Mark(ctx context.Context, ids ...string)
}
