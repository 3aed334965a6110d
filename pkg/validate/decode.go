package validate

import (
	"bytes"
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/ports"
)

// strictJSON — как encoding/json, но неизвестные поля — ошибка.
var strictJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// DecodeEvent — разбор одного события из JSON и его валидация.
func DecodeEvent(ctx context.Context, v ports.EventValidator, raw []byte) (*domain.WatchEvent, error) {
	var e domain.WatchEvent
	if err := strictJSON.Unmarshal(bytes.TrimSpace(raw), &e); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrInvalidEvent, err)
	}
	if err := v.Validate(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// decodeEventArray — JSON-массив событий; невалидные элементы пропускаются и считаются.
func decodeEventArray(ctx context.Context, v ports.EventValidator, raw []byte, emit func(domain.WatchEvent) error) (Result, error) {
	var res Result
	var items []jsoniter.RawMessage
	if err := strictJSON.Unmarshal(raw, &items); err != nil {
		return res, fmt.Errorf("%w: invalid json array: %v", ErrInvalidEvent, err)
	}
	for _, item := range items {
		e, err := DecodeEvent(ctx, v, item)
		if err != nil {
			res.Invalid++
			continue
		}
		if err := emit(*e); err != nil {
			return res, err
		}
		res.Valid++
	}
	return res, nil
}
