package validate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/ports"
)

// InputFormat допустимые значения.
type InputFormat string

const (
	FormatAuto  InputFormat = "auto"
	FormatJSON  InputFormat = "json"
	FormatJSONL InputFormat = "jsonl"
)

// ParseFormat — формат из строки флага.
func ParseFormat(s string) (InputFormat, error) {
	switch f := InputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatJSON, FormatJSONL:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// ReadFile — читает события из файла JSON (объект или массив) или JSONL.
// В режиме auto формат определяется по расширению, по умолчанию — JSON.
func ReadFile(ctx context.Context, v ports.EventValidator, path string, format InputFormat, emit func(domain.WatchEvent) error) (Result, error) {
	if format == FormatAuto {
		format = FormatJSON
		if strings.EqualFold(filepath.Ext(path), ".jsonl") {
			format = FormatJSONL
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatJSONL:
		return ReadJSONL(ctx, v, f, emit)
	case FormatJSON:
		raw, err := io.ReadAll(f)
		if err != nil {
			return Result{}, fmt.Errorf("read file: %w", err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			return decodeEventArray(ctx, v, raw, emit)
		}
		e, err := DecodeEvent(ctx, v, raw)
		if err != nil {
			return Result{Invalid: 1}, err
		}
		if err := emit(*e); err != nil {
			return Result{}, err
		}
		return Result{Valid: 1}, nil
	default:
		return Result{}, fmt.Errorf("unsupported format: %s", format)
	}
}
