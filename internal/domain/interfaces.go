package domain

import (
	"context"
	"time"

	"waterz/internal/models"
)

// DraftRepository stores booking drafts. GetDraft returns nil, nil when the draft is absent.
type DraftRepository interface {
	GetDraft(ctx context.Context, id string) (*models.BookingDraft, error)
	SaveDraft(ctx context.Context, draft *models.BookingDraft) error
	DeleteDraft(ctx context.Context, id string) error
}

// Sequencer issues monotonically increasing numbers per key.
type Sequencer interface {
	Next(ctx context.Context, key string) (int64, error)
	Current(ctx context.Context, key string) (int64, error)
}

type CheckoutRepository interface {
	CreateSession(ctx context.Context, session *models.CheckoutSession) error
	GetSession(ctx context.Context, id string) (*models.CheckoutSession, error)
	GetSessionByBooking(ctx context.Context, bookingID string) (*models.CheckoutSession, error)
	// UpdateSession persists the session only if its stored state still equals expectedState.
	UpdateSession(ctx context.Context, session *models.CheckoutSession, expectedState string) error
	ListSessionsByState(ctx context.Context, state string, since time.Time) ([]*models.CheckoutSession, error)
	ListSessionsUpdatedBefore(ctx context.Context, state string, before time.Time) ([]*models.CheckoutSession, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
