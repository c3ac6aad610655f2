// Package memory provides an in-memory record store with unique indexes on
// email and phone. It backs tests and single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"contactdir/internal/record/merge"
	"contactdir/internal/record/models"
	"contactdir/internal/record/store"
)

type InMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.Record
	order   []uuid.UUID
	byEmail map[string]uuid.UUID
	byPhone map[string]uuid.UUID
}

func New() *InMemory {
	return &InMemory{
		records: make(map[uuid.UUID]models.Record),
		byEmail: make(map[string]uuid.UUID),
		byPhone: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Count(_ context.Context, f store.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.order {
		if f.Matches(s.records[id]) {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) Find(_ context.Context, f store.Filter) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record
	for _, id := range s.order {
		if r := s.records[id]; f.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemory) FindOne(_ context.Context, f store.Filter) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if r := s.records[id]; f.Matches(r) {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *InMemory) Insert(_ context.Context, r models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, taken := s.byEmail[r.Email]; taken {
		return models.Record{}, &store.DuplicateKeyError{Field: models.FieldEmail}
	}
	if _, taken := s.byPhone[r.Phone]; taken {
		return models.Record{}, &store.DuplicateKeyError{Field: models.FieldPhone}
	}

	s.records[r.ID] = r
	s.order = append(s.order, r.ID)
	s.byEmail[r.Email] = r.ID
	s.byPhone[r.Phone] = r.ID
	return r, nil
}

// Update modifies the first record matching the filter: unset is applied
// before set, then the updated timestamp is stamped. Upserts never happen.
func (s *InMemory) Update(_ context.Context, f store.Filter, p store.Patch) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		existing, ok := s.records[id]
		if !ok || !f.Matches(existing) {
			continue
		}

		unset := make(map[models.Field]bool, len(p.Unset))
		for _, field := range p.Unset {
			unset[field] = true
		}
		updated := merge.Apply(existing, p.Set, unset)
		updated.Updated = p.Updated

		if updated.Email != existing.Email {
			if _, taken := s.byEmail[updated.Email]; taken {
				return nil, &store.DuplicateKeyError{Field: models.FieldEmail}
			}
		}
		if updated.Phone != existing.Phone {
			if _, taken := s.byPhone[updated.Phone]; taken {
				return nil, &store.DuplicateKeyError{Field: models.FieldPhone}
			}
		}

		delete(s.byEmail, existing.Email)
		delete(s.byPhone, existing.Phone)
		s.records[id] = updated
		s.byEmail[updated.Email] = id
		s.byPhone[updated.Phone] = id
		return &updated, nil
	}
	return nil, nil
}

func (s *InMemory) Remove(_ context.Context, f store.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range s.order {
		existing, ok := s.records[id]
		if !ok || !f.Matches(existing) {
			continue
		}
		delete(s.records, id)
		delete(s.byEmail, existing.Email)
		delete(s.byPhone, existing.Phone)
		s.order = append(s.order[:i], s.order[i+1:]...)
		return 1, nil
	}
	return 0, nil
}
