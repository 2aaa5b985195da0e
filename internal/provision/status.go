package provision

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Provisioning states. A user whose record exists but whose ledger account is
// not yet live sits in StatePending or StateRunning until the workflow
// resolves either way.
const (
	StatePending     = "pending"
	StateRunning     = "running"
	StateProvisioned = "provisioned"
	StateFailed      = "failed"
)

// ErrStatusUnknown indicates no provisioning status has been recorded for the
// username.
var ErrStatusUnknown = errors.New("no provisioning status recorded")

// Status is the queryable outcome of a user's provisioning workflow. Signup
// returning success only means the identity record exists; this is the record
// of whether the ledger side completed.
type Status struct {
	State     string    `json:"state"`
	Step      Step      `json:"step,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusStore persists provisioning outcomes keyed by username.
type StatusStore interface {
	Set(ctx context.Context, username string, status Status) error
	Get(ctx context.Context, username string) (Status, error)
}

// MemoryStatusStore is an in-process status store for tests and local runs.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMemoryStatusStore builds an empty in-memory store.
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]Status)}
}

// Set records the status for a username.
func (s *MemoryStatusStore) Set(_ context.Context, username string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[username] = status
	return nil
}

// Get returns the recorded status for a username.
func (s *MemoryStatusStore) Get(_ context.Context, username string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[username]
	if !ok {
		return Status{}, ErrStatusUnknown
	}
	return status, nil
}

const statusKeyPrefix = "provision:v1:"

// RedisStatusStore persists provisioning outcomes in Redis so they survive
// process restarts and are visible across instances.
type RedisStatusStore struct {
	cache *redis.Client
}

// NewRedisStatusStore builds a Redis-backed status store.
func NewRedisStatusStore(cache *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{cache: cache}
}

// Set records the status for a username.
func (s *RedisStatusStore) Set(ctx context.Context, username string, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, statusKeyPrefix+username, payload, 0).Err()
}

// Get returns the recorded status for a username.
func (s *RedisStatusStore) Get(ctx context.Context, username string) (Status, error) {
	payload, err := s.cache.Get(ctx, statusKeyPrefix+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{}, ErrStatusUnknown
	}
	if err != nil {
		return Status{}, err
	}
	var status Status
	if err := json.Unmarshal(payload, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}
