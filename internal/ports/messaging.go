package ports

import "context"

// MessageBus — жизненный цикл подключения к брокеру.
type MessageBus interface {
	Connect(ctx context.Context) error
	// Disconnect — останавливает подписки и отключает клиентов.
	Disconnect(ctx context.Context) error
}
