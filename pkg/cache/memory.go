package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Service bounded by entry count. Eviction is
// least-recently-used; a janitor sweeps expired entries so the bound
// holds even without reads.
type Memory struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	janitorStop chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

type MemoryOption func(*Memory)

func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

func WithJanitorInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			go m.janitor(d)
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		capacity:    10000,
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		janitorStop: make(chan struct{}),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.janitorStop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*memoryEntry)
		if now.After(e.expiresAt) {
			m.removeLocked(el)
		}
		el = prev
	}
}

func (m *Memory) removeLocked(el *list.Element) {
	e := el.Value.(*memoryEntry)
	delete(m.entries, e.key)
	m.order.Remove(el)
}

func (m *Memory) setLocked(key string, value []byte, ttl time.Duration) {
	expiresAt := m.now().Add(ttl)
	if el, ok := m.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value = value
		e.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return
	}
	for len(m.entries) >= m.capacity {
		if back := m.order.Back(); back != nil {
			m.removeLocked(back)
		}
	}
	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
}

func (m *Memory) getLocked(key string) ([]byte, bool) {
	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memoryEntry)
	if m.now().After(e.expiresAt) {
		m.removeLocked(el)
		return nil, false
	}
	m.order.MoveToFront(el)
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, ttl)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.getLocked(key); ok {
		return v, nil
	}
	return nil, ErrCacheMiss
}

func (m *Memory) MSet(_ context.Context, entries map[string][]byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.setLocked(k, v, ttl)
	}
	return nil
}

// MGet returns the subset of keys present and unexpired; absent keys
// are simply missing from the result.
func (m *Memory) MGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.getLocked(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if el, ok := m.entries[k]; ok {
			m.removeLocked(el)
		}
	}
	return nil
}

// Clear removes every key under the given prefix.
func (m *Memory) Clear(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, el := range m.entries {
		if strings.HasPrefix(key, prefix) {
			m.removeLocked(el)
		}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Health(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.janitorStop) })
	return nil
}
