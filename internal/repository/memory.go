package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"waterz/internal/models"
)

type draftEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryDraftRepository keeps serialized drafts so callers never share a draft value.
type MemoryDraftRepository struct {
	drafts sync.Map
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryDraftRepository(ttl time.Duration) *MemoryDraftRepository {
	return &MemoryDraftRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryDraftRepository) GetDraft(_ context.Context, id string) (*models.BookingDraft, error) {
	val, ok := r.drafts.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*draftEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.drafts.Delete(id)
		return nil, nil
	}

	var draft models.BookingDraft
	if err := json.Unmarshal(entry.data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

func (r *MemoryDraftRepository) SaveDraft(_ context.Context, draft *models.BookingDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	entry := &draftEntry{data: data}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.drafts.Store(draft.ID, entry)
	return nil
}

func (r *MemoryDraftRepository) DeleteDraft(_ context.Context, id string) error {
	r.drafts.Delete(id)
	return nil
}

type MemorySequencer struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{values: make(map[string]int64)}
}

func (s *MemorySequencer) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key]++
	return s.values[key], nil
}

func (s *MemorySequencer) Current(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}
