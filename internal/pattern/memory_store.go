package pattern

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*Finding
	findings []*Finding
}

// NewMemoryStore creates an in-memory pattern finding store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Finding)}
}

func copyFinding(f *Finding) *Finding {
	cp := *f
	cp.Evidence = make(map[string]any, len(f.Evidence))
	for k, v := range f.Evidence {
		cp.Evidence[k] = v
	}
	return &cp
}

func (s *MemoryStore) Create(ctx context.Context, f *Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyFinding(f)
	s.byID[f.ID] = cp
	s.findings = append(s.findings, cp)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.byID[id]
	if !ok {
		return nil, ErrFindingNotFound
	}
	return copyFinding(f), nil
}

func (s *MemoryStore) ListByPerson(ctx context.Context, personID string) ([]*Finding, error) {
	return s.list(func(f *Finding) bool { return f.PersonID == personID }, 0)
}

func (s *MemoryStore) ListUnreviewedByPerson(ctx context.Context, personID string) ([]*Finding, error) {
	return s.list(func(f *Finding) bool { return f.PersonID == personID && !f.Reviewed }, 0)
}

func (s *MemoryStore) ListActive(ctx context.Context, limit int) ([]*Finding, error) {
	return s.list(func(f *Finding) bool { return !f.Reviewed }, limit)
}

func (s *MemoryStore) list(match func(*Finding) bool, limit int) ([]*Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Finding
	for _, f := range s.findings {
		if match(f) {
			result = append(result, copyFinding(f))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DetectedAt.After(result[j].DetectedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) MarkReviewed(ctx context.Context, id, reviewedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.byID[id]
	if !ok {
		return ErrFindingNotFound
	}
	f.Reviewed = true
	f.ReviewedBy = reviewedBy
	f.ReviewedAt = time.Now().UTC()
	return nil
}
