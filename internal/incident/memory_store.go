package incident

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[string]*Incident
	incidents []*Incident
}

// NewMemoryStore creates an in-memory incident store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Incident)}
}

func (s *MemoryStore) Create(ctx context.Context, inc *Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *inc
	s.byID[inc.ID] = &cp
	s.incidents = append(s.incidents, &cp)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.byID[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	cp := *inc
	return &cp, nil
}

func (s *MemoryStore) ListByPerson(ctx context.Context, personID string) ([]*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Incident
	for _, inc := range s.incidents {
		if inc.PersonID != personID {
			continue
		}
		cp := *inc
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result, nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Incident
	for _, inc := range s.incidents {
		if filter.Severity != "" && inc.Severity != filter.Severity {
			continue
		}
		if filter.Kind != "" && inc.Kind != filter.Kind {
			continue
		}
		cp := *inc
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *MemoryStore) CountSince(ctx context.Context, personID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, inc := range s.incidents {
		if inc.PersonID == personID && !inc.Date.Before(since) {
			count++
		}
	}
	return count, nil
}
