package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Record is the persisted grant information for one capability.
type Record struct {
	State     GrantState `json:"state"`
	Refusals  int        `json:"refusals"`
	Permanent bool       `json:"permanent"`
}

// Store abstracts where grant records live so the manager can be tested without Redis.
type Store interface {
	Load(ctx context.Context, capability Capability) (Record, error)
	Save(ctx context.Context, capability Capability, rec Record) error
}

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Capability]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Capability]Record)}
}

func (s *MemoryStore) Load(_ context.Context, capability Capability) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[capability], nil
}

func (s *MemoryStore) Save(_ context.Context, capability Capability, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[capability] = rec
	return nil
}

// RedisStore is a Store backed by go-redis, shared by every screen pointed at the
// same Redis instance.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed store. Keys are "<prefix><capability>".
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "permission:"}
}

func (s *RedisStore) key(capability Capability) string {
	return s.prefix + string(capability)
}

// Load returns the zero Record when nothing is stored for capability.
func (s *RedisStore) Load(ctx context.Context, capability Capability) (Record, error) {
	raw, err := s.client.Get(ctx, s.key(capability)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis get %s: %w", s.key(capability), err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("decode permission record %s: %w", s.key(capability), err)
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, capability Capability, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode permission record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(capability), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(capability), err)
	}
	return nil
}
