package ports

import (
	"context"

	"github.com/Gunvolt24/batchflow/internal/domain"
)

type EventValidator interface {
	Validate(ctx context.Context, event *domain.WatchEvent) error
}
