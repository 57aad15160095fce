package store

import (
	"context"
	"slices"
	"sync"

	"dials/internal/progress/models"
	"dials/pkg/platform/sentinel"
)

// InMemoryStore keeps progress records per user. Records are copied on the
// way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]models.Progress
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string]models.Progress)}
}

func (s *InMemoryStore) Upsert(_ context.Context, p *models.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.records[p.UserID]
	if byKey == nil {
		byKey = make(map[string]models.Progress)
		s.records[p.UserID] = byKey
	}
	rec := *p
	rec.Data = slices.Clone(p.Data)
	byKey[p.UserKey] = rec
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, userID, userKey string) (*models.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID][userKey]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyOf(rec), nil
}

func (s *InMemoryStore) Latest(_ context.Context, userID string) (*models.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Progress
	for _, rec := range s.records[userID] {
		if latest == nil || newer(rec, *latest) {
			latest = copyOf(rec)
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[userID], userKey)
	if len(s.records[userID]) == 0 {
		delete(s.records, userID)
	}
	return nil
}

func copyOf(rec models.Progress) *models.Progress {
	rec.Data = slices.Clone(rec.Data)
	return &rec
}

// newer orders by UpdatedAt, breaking ties on the user key so Latest is
// deterministic.
func newer(a, b models.Progress) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.UserKey > b.UserKey
}
