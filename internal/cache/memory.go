package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// Memory is a bounded in-process cache. The least recently used entry is evicted once
// MaxEntries is reached; expired entries are dropped when read.
type Memory struct {
	mu      sync.Mutex
	cfg     Config
	order   *list.List
	entries map[string]*list.Element
	now     func() time.Time
}

// NewMemory creates a memory cache. A non-positive MaxEntries uses DefaultMaxEntries.
func NewMemory(cfg Config) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &Memory{
		cfg:     cfg,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[m.cfg.Prefix+key]
	if !ok {
		return nil, ErrMiss
	}
	e := el.Value.(*memoryEntry)
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.remove(el)
		return nil, ErrMiss
	}
	m.order.MoveToFront(el)

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &memoryEntry{key: m.cfg.Prefix + key, value: append([]byte(nil), value...)}
	if m.cfg.TTL > 0 {
		e.expires = m.now().Add(m.cfg.TTL)
	}

	if el, ok := m.entries[e.key]; ok {
		el.Value = e
		m.order.MoveToFront(el)
		return nil
	}
	m.entries[e.key] = m.order.PushFront(e)
	for m.order.Len() > m.cfg.MaxEntries {
		m.remove(m.order.Back())
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[m.cfg.Prefix+key]; ok {
		m.remove(el)
	}
	return nil
}

// Len returns the number of entries held, expired ones included
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	m.entries = make(map[string]*list.Element)
	return nil
}

func (m *Memory) remove(el *list.Element) {
	m.order.Remove(el)
	delete(m.entries, el.Value.(*memoryEntry).key)
}
