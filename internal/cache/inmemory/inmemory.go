package inmemory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Backend is an in-process cache backend with lazy expiry.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewBackend() *Backend {
	return &Backend{entries: make(map[string]entry)}
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		b.mu.Lock()
		// Another writer may have refreshed the entry in between.
		if cur, ok := b.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(b.entries, key)
		}
		b.mu.Unlock()
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = entry{payload: payload, expiresAt: time.Now().Add(ttl)}
	return nil
}
