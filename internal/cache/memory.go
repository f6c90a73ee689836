package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache. go-cache se encarga de la
// expiración (lazy en Get + janitor periódico); el mutex hace atómico Take.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	mu     sync.Mutex
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory crea un cliente de cache en memoria. El janitor barre entradas
// expiradas cada minuto.
func NewMemory(prefix string, defaultTTL time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(defaultTTL, time.Minute),
	}
}

func (m *memoryClient) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		m.misses.Add(1)
		return nil, ErrNotFound
	}
	m.hits.Add(1)
	b, _ := v.([]byte)
	return b, nil
}

func (m *memoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	// el caller puede reutilizar value
	b := make([]byte, len(value))
	copy(b, value)

	m.mu.Lock()
	m.c.Set(prefixed(m.prefix, key), b, ttl)
	m.mu.Unlock()
	return nil
}

func (m *memoryClient) Take(_ context.Context, key string) ([]byte, error) {
	k := prefixed(m.prefix, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Get(k)
	// borrar siempre: una entrada expirada tampoco debe sobrevivir al intento
	m.c.Delete(k)
	if !ok {
		m.misses.Add(1)
		return nil, ErrNotFound
	}
	m.hits.Add(1)
	b, _ := v.([]byte)
	return b, nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	m.c.Delete(prefixed(m.prefix, key))
	m.mu.Unlock()
	return nil
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}

func (m *memoryClient) Stats(context.Context) (Stats, error) {
	m.c.DeleteExpired()
	return Stats{
		Driver: "memory",
		Keys:   int64(m.c.ItemCount()),
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}, nil
}
