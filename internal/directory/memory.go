package directory

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepository builds an in-memory directory for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string]Record)}
}

func (r *memoryRepository) Create(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[record.Username]; exists {
		return ErrUsernameTaken
	}
	r.records[record.Username] = record
	return nil
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[username]
	if !ok {
		return Record{}, ErrUserNotFound
	}
	return record, nil
}

func (r *memoryRepository) FindManyByUsernames(_ context.Context, usernames []string) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[string]bool, len(usernames))
	for _, name := range usernames {
		wanted[name] = true
	}
	// Map iteration keeps the result order unspecified, matching the
	// repository contract.
	var records []Record
	for name, record := range r.records {
		if wanted[name] {
			records = append(records, record)
		}
	}
	return records, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}
