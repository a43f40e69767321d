package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	redispkg "github.com/mercatolabs/cartsync/pkg/redis"
)

// ErrNotFound reports that no envelope exists at the storage key.
var ErrNotFound = errors.New("cart: envelope not found")

// Storage is the durable key-value backend for cart envelopes. Implementations
// must be safe for concurrent use; callers treat every failure as
// non-fatal.
type Storage interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, payload string) error
}

// EncodeEnvelope wraps state in the versioned envelope and serializes it.
func EncodeEnvelope(state State) (string, error) {
	state.Items = cloneItems(state.Items)
	raw, err := json.Marshal(Envelope{State: state, Version: envelopeVersion})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeEnvelope parses a persisted envelope. Corrupt payloads, wrong versions
// and empty input all degrade to an empty cart; the second return reports
// whether the payload actually carried state.
func DecodeEnvelope(payload string) (State, bool) {
	empty := State{Items: []LineItem{}}
	if payload == "" {
		return empty, false
	}
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return empty, false
	}
	if env.Version != envelopeVersion {
		return empty, false
	}
	if env.State.Items == nil {
		env.State.Items = []LineItem{}
	}
	return env.State, true
}

// MemoryStorage keeps envelopes in process memory. It backs tests and the
// degraded mode where no durable store is reachable.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return payload, nil
}

func (m *MemoryStorage) Save(_ context.Context, key, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = payload
	return nil
}

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CartKey(storageKey string) string
}

// RedisStorage stores envelopes under the namespaced cart key.
type RedisStorage struct {
	kv  redisKV
	ttl time.Duration
}

// NewRedisStorage wraps the shared redis client. A zero ttl keeps envelopes
// until overwritten.
func NewRedisStorage(client *redispkg.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{kv: client, ttl: ttl}
}

func (r *RedisStorage) Load(ctx context.Context, key string) (string, error) {
	payload, err := r.kv.Get(ctx, r.kv.CartKey(key))
	if err != nil {
		if redispkg.IsNil(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return payload, nil
}

func (r *RedisStorage) Save(ctx context.Context, key, payload string) error {
	return r.kv.Set(ctx, r.kv.CartKey(key), payload, r.ttl)
}
