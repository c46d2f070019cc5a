package progress

import (
	"context"
	"sort"
	"sync"

	"github.com/banglabot/quest-service/internal/badge"
)

type memoryRepository struct {
	mu       sync.RWMutex
	records  map[string]Record
	attempts map[string][]Attempt
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		records:  make(map[string]Record),
		attempts: make(map[string][]Attempt),
	}
}

func (r *memoryRepository) Load(_ context.Context, userID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyRecord(r.records[userID]), nil
}

func (r *memoryRepository) Apply(_ context.Context, userID string, attempt Attempt, mutate func(*Record) error) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := copyRecord(r.records[userID])
	if err := mutate(&working); err != nil {
		return Record{}, err
	}

	r.records[userID] = working
	r.attempts[userID] = append(r.attempts[userID], attempt)
	return copyRecord(working), nil
}

func (r *memoryRepository) Attempts(_ context.Context, userID string, limit int) ([]Attempt, error) {
	r.mu.RLock()
	stored := r.attempts[userID]
	snapshot := make([]Attempt, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		snapshot = append(snapshot, stored[i])
	}
	r.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].RecordedAt.After(snapshot[j].RecordedAt)
	})
	if limit > 0 && len(snapshot) > limit {
		snapshot = snapshot[:limit]
	}
	return snapshot, nil
}

func copyRecord(rec Record) Record {
	out := emptyRecord()
	for k, v := range rec.Progress {
		out.Progress[k] = v
	}
	if len(rec.Badges) > 0 {
		out.Badges = make([]badge.Badge, len(rec.Badges))
		copy(out.Badges, rec.Badges)
	}
	return out
}
