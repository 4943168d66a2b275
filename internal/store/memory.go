package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for local development and tests. TTLs are
// checked lazily on access rather than by a background sweeper.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
	hashes map[string]map[string]string
	expiry map[string]time.Time

	// now is swappable in tests to simulate TTL expiry without sleeping.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// expired reports and reaps a dead key. Caller must hold mu.
func (m *Memory) expired(key string) bool {
	deadline, ok := m.expiry[key]
	if !ok || m.now().Before(deadline) {
		return false
	}
	delete(m.values, key)
	delete(m.hashes, key)
	delete(m.expiry, key)
	return true
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", ErrNotFound
	}
	val, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.setTTL(key, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	m.setTTL(key, ttl)
	return true, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		delete(m.hashes, key)
		delete(m.expiry, key)
	}
	return nil
}

func (m *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired(key)
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return map[string]string{}, nil
	}
	h, ok := m.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exists(key) {
		m.setTTL(key, ttl)
	}
	return nil
}

func (m *Memory) Persist(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expiry, key)
	return nil
}

func (m *Memory) exists(key string) bool {
	if m.expired(key) {
		return false
	}
	if _, ok := m.values[key]; ok {
		return true
	}
	_, ok := m.hashes[key]
	return ok
}

func (m *Memory) setTTL(key string, ttl time.Duration) {
	if ttl > 0 {
		m.expiry[key] = m.now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
}
