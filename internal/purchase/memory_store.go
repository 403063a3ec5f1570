package purchase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/safeguardhq/safeguard/internal/pagination"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[string]*Purchase
	purchases []*Purchase // insertion order
}

// NewMemoryStore creates an in-memory purchase store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Purchase)}
}

func (s *MemoryStore) Create(ctx context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.byID[p.ID] = &cp
	s.purchases = append(s.purchases, &cp)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListByPerson(ctx context.Context, personID string, r Range, limit int) ([]*Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Purchase
	for _, p := range s.purchases {
		if p.PersonID != personID || !r.Contains(p.Timestamp) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Purchase
	for _, p := range s.purchases {
		if cursor != nil {
			// Strictly older than the cursor position, ties broken by ID
			if p.Timestamp.After(cursor.CreatedAt) {
				continue
			}
			if p.Timestamp.Equal(cursor.CreatedAt) && p.ID >= cursor.ID {
				continue
			}
		}
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) CountSince(ctx context.Context, personID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.purchases {
		if personID != "" && p.PersonID != personID {
			continue
		}
		if p.Timestamp.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *MemoryStore) SumUnitsSince(ctx context.Context, personID string, since time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, p := range s.purchases {
		if personID != "" && p.PersonID != personID {
			continue
		}
		if p.Timestamp.Before(since) {
			continue
		}
		total += p.Units
	}
	return total, nil
}

func (s *MemoryStore) DailyStats(ctx context.Context, days int) ([]DailyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	byDay := make(map[string]*DailyStat)
	for _, p := range s.purchases {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		day := p.Timestamp.UTC().Format("2006-01-02")
		stat, ok := byDay[day]
		if !ok {
			stat = &DailyStat{Day: day}
			byDay[day] = stat
		}
		stat.Count++
		stat.Units += p.Units
	}

	result := make([]DailyStat, 0, len(byDay))
	for _, stat := range byDay {
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day < result[j].Day })
	return result, nil
}
