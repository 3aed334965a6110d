package validate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/ports"
)

var _ ports.EventValidator = (*EventValidator)(nil)

// ErrInvalidEvent — базовая (sentinel error) ошибка валидации события.
var ErrInvalidEvent = errors.New("watch event validation failed")

// maxClockSkew — насколько watched_at может опережать часы сервиса.
const maxClockSkew = 24 * time.Hour

var minWatchedAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// EventValidator — проверка события просмотра по тегам validate и правилам времени.
type EventValidator struct {
	v   *validator.Validate
	now func() time.Time
}

// NewEventValidator — валидатор; в сообщениях об ошибках используются имена JSON-полей.
func NewEventValidator() *EventValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &EventValidator{v: v, now: time.Now}
}

// Validate — ErrInvalidEvent (с обёрнутой причиной) при любой проблеме.
func (ev *EventValidator) Validate(_ context.Context, e *domain.WatchEvent) error {
	if e == nil {
		return fmt.Errorf("%w: событие не может быть nil", ErrInvalidEvent)
	}

	if err := ev.v.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s не прошло проверку %q", ErrInvalidEvent, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	if e.WatchedAt.Before(minWatchedAt) || e.WatchedAt.After(ev.now().Add(maxClockSkew)) {
		return fmt.Errorf("%w: watched_at некорректен", ErrInvalidEvent)
	}
	return nil
}
