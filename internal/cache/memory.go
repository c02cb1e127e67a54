package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a per-process cache used when no Redis address is
// configured, and as the backend in tests. Expired entries are dropped
// lazily on read.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	val     []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{items: map[string]memoryItem{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(it.expires) {
		delete(m.items, key)
		return nil, false, nil
	}
	return it.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryItem{val: val, expires: time.Now().Add(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
