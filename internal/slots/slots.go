package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"waterz/internal/backend"
	"waterz/internal/domain"
	"waterz/internal/metrics"
	"waterz/internal/models"
)

const requestDateLayout = "2006-01-02T15:04:05.000"

type Fetcher interface {
	BookingSlots(ctx context.Context, auth backend.AuthContext, req backend.SlotRequest) ([]models.AvailabilitySlot, error)
}

// NormalizeDate returns UTC midnight of the calendar date as seen in the date's own location.
func NormalizeDate(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatRequestDate renders the normalized date as "YYYY-MM-DDT00:00:00.000+00:00".
func FormatRequestDate(date time.Time) string {
	return NormalizeDate(date).Format(requestDateLayout) + "+00:00"
}

// Resolver fetches availability and drops results of lookups that were overtaken
// by a newer lookup for the same draft.
type Resolver struct {
	fetcher Fetcher
	seq     domain.Sequencer
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewResolver(fetcher Fetcher, seq domain.Sequencer, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{fetcher: fetcher, seq: seq, logger: logger, now: time.Now}
}

func sequenceKey(draftID string) string {
	return "slots:" + draftID
}

// Lookup fetches the slots for (yacht, date, duration) on behalf of a draft.
// It returns domain.ErrLookupSuperseded if another lookup for the draft started meanwhile.
func (r *Resolver) Lookup(ctx context.Context, auth backend.AuthContext, draftID, yachtID string, date time.Time, totalDuration float64) (*models.SlotSet, error) {
	key := sequenceKey(draftID)
	generation, err := r.seq.Next(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("issue lookup sequence: %w", err)
	}

	day := NormalizeDate(date)
	slots, fetchErr := r.fetcher.BookingSlots(ctx, auth, backend.SlotRequest{
		YachtID:       yachtID,
		Date:          FormatRequestDate(date),
		TotalDuration: totalDuration,
	})

	if !r.isLatest(ctx, key, generation) {
		metrics.IncSlotLookup("superseded")
		r.logger.Debug().Str("draft_id", draftID).Int64("generation", generation).Msg("slot lookup superseded")
		return nil, domain.ErrLookupSuperseded
	}

	if fetchErr != nil {
		metrics.IncSlotLookup("error")
		return nil, fetchErr
	}

	result := "applied"
	if len(slots) == 0 {
		result = "empty"
	}
	metrics.IncSlotLookup(result)

	return &models.SlotSet{
		Generation:    generation,
		YachtID:       yachtID,
		Date:          day,
		TotalDuration: totalDuration,
		Slots:         slots,
		FetchedAt:     r.now(),
	}, nil
}

// IsCurrent reports whether set is still the newest lookup for the draft.
func (r *Resolver) IsCurrent(ctx context.Context, draftID string, set *models.SlotSet) bool {
	if set == nil {
		return false
	}
	return r.isLatest(ctx, sequenceKey(draftID), set.Generation)
}

func (r *Resolver) isLatest(ctx context.Context, key string, generation int64) bool {
	latest, err := r.seq.Current(ctx, key)
	if err != nil {
		// sequencer unavailable: accept the result unless the caller gave up
		r.logger.Warn().Err(err).Str("key", key).Msg("sequence check failed")
		return !errors.Is(err, context.Canceled)
	}
	return latest == generation
}
