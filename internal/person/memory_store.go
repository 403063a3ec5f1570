package person

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu         sync.RWMutex
	persons    map[string]*Person
	byIdentity map[string]string // identityNumber → person ID
}

// NewMemoryStore creates an in-memory person store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		persons:    make(map[string]*Person),
		byIdentity: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, p *Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIdentity[p.IdentityNumber]; exists {
		return ErrDuplicateIdentity
	}

	cp := *p
	s.persons[p.ID] = &cp
	s.byIdentity[p.IdentityNumber] = p.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.persons[id]
	if !ok {
		return nil, ErrPersonNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetByIdentity(ctx context.Context, identityNumber string) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentity[identityNumber]
	if !ok {
		return nil, ErrPersonNotFound
	}
	cp := *s.persons[id]
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Person
	for _, p := range s.persons {
		if filter.Tier != nil && p.RiskTier != *filter.Tier {
			continue
		}
		if filter.Blocked != nil && p.Blocked != *filter.Blocked {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	// Highest risk first, then newest registration
	sort.Slice(result, func(i, j int) bool {
		if result[i].RiskScore != result[j].RiskScore {
			return result[i].RiskScore > result[j].RiskScore
		}
		return result[i].RegisteredAt.After(result[j].RegisteredAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *MemoryStore) UpdateRisk(ctx context.Context, id string, score float64, tier Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.persons[id]
	if !ok {
		return ErrPersonNotFound
	}
	p.RiskScore = score
	p.RiskTier = tier
	return nil
}

func (s *MemoryStore) RecordPurchaseStats(ctx context.Context, id string, units float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.persons[id]
	if !ok {
		return ErrPersonNotFound
	}
	p.TotalPurchases++
	p.TotalUnitsConsumed += units
	if at.After(p.LastPurchaseDate) {
		p.LastPurchaseDate = at
	}
	return nil
}

func (s *MemoryStore) SetBlocked(ctx context.Context, id string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.persons[id]
	if !ok {
		return ErrPersonNotFound
	}
	p.Blocked = blocked
	return nil
}

func (s *MemoryStore) CountByTier(ctx context.Context) (map[Tier]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Tier]int)
	for _, p := range s.persons {
		counts[p.RiskTier]++
	}
	return counts, nil
}
