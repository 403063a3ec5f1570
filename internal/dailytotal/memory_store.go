package dailytotal

import (
	"context"
	"sync"

	"github.com/safeguardhq/safeguard/internal/syncutil"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
// Per-key locks serialize Reserve/Add per (person, day); the map mutex
// only guards the map itself.
type MemoryStore struct {
	locks  syncutil.ShardedMutex
	mu     sync.RWMutex
	totals map[string]*DailyTotal // "personID|day" → total
}

// NewMemoryStore creates an in-memory daily total store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{totals: make(map[string]*DailyTotal)}
}

func key(personID, day string) string { return personID + "|" + day }

func (s *MemoryStore) Get(ctx context.Context, personID, day string) (*DailyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.totals[key(personID, day)]; ok {
		cp := *t
		return &cp, nil
	}
	return &DailyTotal{PersonID: personID, Day: day}, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, personID, day string, units, limit float64) (*Reservation, error) {
	unlock := s.locks.Lock(key(personID, day))
	defer unlock()

	t := s.getOrCreate(personID, day)

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &Reservation{CurrentUnits: t.UnitsToday}
	if t.UnitsToday+units > limit {
		res.NewTotal = t.UnitsToday
		return res, nil
	}

	t.UnitsToday += units
	t.PurchaseCountToday++
	res.Admitted = true
	res.NewTotal = t.UnitsToday
	return res, nil
}

func (s *MemoryStore) Add(ctx context.Context, personID, day string, units float64) (float64, error) {
	unlock := s.locks.Lock(key(personID, day))
	defer unlock()

	t := s.getOrCreate(personID, day)

	s.mu.Lock()
	defer s.mu.Unlock()

	t.UnitsToday += units
	t.PurchaseCountToday++
	return t.UnitsToday, nil
}

// getOrCreate must be called with the per-key lock held.
func (s *MemoryStore) getOrCreate(personID, day string) *DailyTotal {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(personID, day)
	t, ok := s.totals[k]
	if !ok {
		t = &DailyTotal{PersonID: personID, Day: day}
		s.totals[k] = t
	}
	return t
}

func (s *MemoryStore) CountViolations(ctx context.Context, personID string, limit float64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.totals {
		if t.PersonID == personID && t.UnitsToday > limit {
			count++
		}
	}
	return count, nil
}
