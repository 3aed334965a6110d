package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/ports"
)

var _ ports.WatchHistoryReader = (*WatchHistoryService)(nil)

// ErrEmptyUserID — запрос истории без пользователя.
var ErrEmptyUserID = errors.New("user_id is required")

// WatchHistoryService — прикладная логика истории просмотров (без знаний о транспорте).
// HandleBatch подходит как обработчик пачек движка Kafka.
type WatchHistoryService struct {
	repo        ports.WatchHistoryRepository
	seen        ports.SeenCache
	log         ports.Logger
	validator   ports.EventValidator
	saveTimeout time.Duration
}

// NewWatchHistoryService — DI-конструктор. saveTimeout <= 0 — без ограничения.
func NewWatchHistoryService(
	repo ports.WatchHistoryRepository,
	seen ports.SeenCache,
	log ports.Logger,
	validator ports.EventValidator,
	saveTimeout time.Duration,
) *WatchHistoryService {
	return &WatchHistoryService{
		repo:        repo,
		seen:        seen,
		log:         log,
		validator:   validator,
		saveTimeout: saveTimeout,
	}
}

// HandleBatch — сохранить пачку событий из Kafka.
// Шаги:
//  1. доменная валидация, невалидные события отбрасываются;
//  2. дедупликация внутри пачки и по кэшу уже записанных event_id;
//  3. одна вставка всей пачки в БД;
//  4. отметка записанных id в кэше.
//
// Ошибка БД возвращается вызывающему; id в кэш не попадают.
func (s *WatchHistoryService) HandleBatch(ctx context.Context, batch []domain.WatchEvent) error {
	fresh := make([]domain.WatchEvent, 0, len(batch))
	inBatch := make(map[string]struct{}, len(batch))
	invalid, dup := 0, 0

	for i := range batch {
		e := &batch[i]
		if err := s.validator.Validate(ctx, e); err != nil {
			invalid++
			s.log.Warnf(ctx, "drop invalid watch event event_id=%s err=%v", e.EventID, err)
			continue
		}
		if _, ok := inBatch[e.EventID]; ok || s.seen.Seen(ctx, e.EventID) {
			dup++
			continue
		}
		inBatch[e.EventID] = struct{}{}
		fresh = append(fresh, *e)
	}

	if len(fresh) == 0 {
		s.log.Infof(ctx, "watch batch skipped size=%d invalid=%d duplicates=%d", len(batch), invalid, dup)
		return nil
	}

	saveCtx := ctx
	if s.saveTimeout > 0 {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(ctx, s.saveTimeout)
		defer cancel()
	}

	start := time.Now()
	inserted, err := s.repo.SaveBatch(saveCtx, fresh)
	if err != nil {
		s.log.Errorf(ctx, "repo.SaveBatch failed size=%d err=%v", len(fresh), err)
		return fmt.Errorf("save watch history: %w", err)
	}

	ids := make([]string, len(fresh))
	for i := range fresh {
		ids[i] = fresh[i].EventID
	}
	s.seen.Mark(ctx, ids...)

	s.log.Infof(ctx, "watch batch saved size=%d inserted=%d invalid=%d duplicates=%d took=%s",
		len(batch), inserted, invalid, dup, time.Since(start))
	return nil
}

// History — последние просмотры пользователя; limit приводится к [1, domain.MaxHistoryLimit].
func (s *WatchHistoryService) History(ctx context.Context, userID string, limit int) ([]domain.WatchEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	switch {
	case limit <= 0:
		limit = domain.DefaultHistoryLimit
	case limit > domain.MaxHistoryLimit:
		limit = domain.MaxHistoryLimit
	}

	events, err := s.repo.LastByUser(ctx, userID, limit)
	if err != nil {
		s.log.Errorf(ctx, "repo.LastByUser failed user_id=%s err=%v", userID, err)
		return nil, err
	}
	return events, nil
}
