package validate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/ports"
)

// Result — сколько событий прошло проверку и сколько отброшено.
type Result struct {
	Valid   int
	Invalid int
}

func (r Result) String() string { return fmt.Sprintf("%d valid / %d invalid", r.Valid, r.Invalid) }

// maxLineSize — предел длины одной строки JSONL.
const maxLineSize = 1 << 20

// ReadJSONL — читает события построчно; валидные отдаёт в emit, невалидные пропускает.
// Пустые строки игнорируются. Ошибка emit прерывает чтение.
func ReadJSONL(ctx context.Context, v ports.EventValidator, r io.Reader, emit func(domain.WatchEvent) error) (Result, error) {
	var res Result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		e, err := DecodeEvent(ctx, v, line)
		if err != nil {
			res.Invalid++
			continue
		}
		if err := emit(*e); err != nil {
			return res, err
		}
		res.Valid++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan: %w", err)
	}
	return res, nil
}
