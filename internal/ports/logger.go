package ports

import "context"

// Logger — контракт логгера для всех слоёв, включая движок Kafka.
// Реализация достаёт из ctx request_id, topic и trace/span id и пишет их полями.
type Logger interface {
	Infof(ctx context.Context, format string, args ...any)
	Warnf(ctx context.Context, format string, args ...any)
	Errorf(ctx context.Context, format string, args ...any)
}
