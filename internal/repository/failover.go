package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"waterz/internal/domain"
	"waterz/internal/models"
)

const recoveryInterval = time.Minute

// health tracks whether the primary store is considered down.
type health struct {
	isDown    atomic.Bool
	lastCheck atomic.Int64
	logger    *zerolog.Logger
	name      string
}

func newHealth(name string, logger *zerolog.Logger) *health {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &health{logger: logger, name: name}
}

// usePrimary reports whether the next call should go to the primary store.
func (h *health) usePrimary() bool {
	if !h.isDown.Load() {
		return true
	}
	// Пробуем восстановиться раз в минуту
	return time.Since(time.Unix(0, h.lastCheck.Load())) > recoveryInterval
}

func (h *health) result(err error) {
	if err == nil {
		if h.isDown.Swap(false) {
			h.logger.Info().Str("store", h.name).Msg("primary store recovered")
		}
		return
	}
	if !h.isDown.Swap(true) {
		h.logger.Error().Err(err).Str("store", h.name).Msg("primary store failed, falling back to memory")
	}
	h.lastCheck.Store(time.Now().UnixNano())
}

type FailoverDraftRepository struct {
	primary  domain.DraftRepository
	fallback domain.DraftRepository
	health   *health
}

func NewFailoverDraftRepository(primary, fallback domain.DraftRepository, logger *zerolog.Logger) *FailoverDraftRepository {
	return &FailoverDraftRepository{
		primary:  primary,
		fallback: fallback,
		health:   newHealth("drafts", logger),
	}
}

func (r *FailoverDraftRepository) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	if r.health.usePrimary() {
		draft, err := r.primary.GetDraft(ctx, id)
		r.health.result(err)
		if err == nil {
			if draft != nil {
				return draft, nil
			}
			// the draft may have been written while the primary was down
			return r.fallback.GetDraft(ctx, id)
		}
	}
	return r.fallback.GetDraft(ctx, id)
}

func (r *FailoverDraftRepository) SaveDraft(ctx context.Context, draft *models.BookingDraft) error {
	if r.health.usePrimary() {
		err := r.primary.SaveDraft(ctx, draft)
		r.health.result(err)
		if err == nil {
			_ = r.fallback.DeleteDraft(ctx, draft.ID)
			return nil
		}
	}
	return r.fallback.SaveDraft(ctx, draft)
}

func (r *FailoverDraftRepository) DeleteDraft(ctx context.Context, id string) error {
	if r.health.usePrimary() {
		err := r.primary.DeleteDraft(ctx, id)
		r.health.result(err)
		if err != nil {
			return r.fallback.DeleteDraft(ctx, id)
		}
	}
	return r.fallback.DeleteDraft(ctx, id)
}

type FailoverSequencer struct {
	primary  domain.Sequencer
	fallback domain.Sequencer
	health   *health
}

func NewFailoverSequencer(primary, fallback domain.Sequencer, logger *zerolog.Logger) *FailoverSequencer {
	return &FailoverSequencer{
		primary:  primary,
		fallback: fallback,
		health:   newHealth("sequencer", logger),
	}
}

func (s *FailoverSequencer) Next(ctx context.Context, key string) (int64, error) {
	if s.health.usePrimary() {
		n, err := s.primary.Next(ctx, key)
		s.health.result(err)
		if err == nil {
			return n, nil
		}
	}
	return s.fallback.Next(ctx, key)
}

func (s *FailoverSequencer) Current(ctx context.Context, key string) (int64, error) {
	if s.health.usePrimary() {
		n, err := s.primary.Current(ctx, key)
		s.health.result(err)
		if err == nil {
			return n, nil
		}
	}
	return s.fallback.Current(ctx, key)
}
