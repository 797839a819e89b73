package persistence

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemoryKV is an in-process KV for tests and single-node development runs.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory medium.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value, or (nil, nil) when absent.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set stores a copy of value under key.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

// Incr bumps and returns an integer counter stored as decimal text.
func (m *MemoryKV) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if raw, ok := m.data[key]; ok {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("counter %s holds non-numeric value", key)
		}
		current = parsed
	}
	current++
	m.data[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

// Close is a no-op.
func (m *MemoryKV) Close() error { return nil }

// MemoryHub is an in-process Notifier. Multiple stores sharing one hub see
// each other's writes, which lets tests exercise the external-change
// re-read path without a broker.
type MemoryHub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(key, origin string)
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{listeners: make(map[int]func(key, origin string))}
}

// Publish synchronously fans the change out to every subscriber, including
// the publisher's own; subscribers filter by origin.
func (h *MemoryHub) Publish(_ context.Context, key, origin string) error {
	h.mu.Lock()
	fns := make([]func(string, string), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(key, origin)
	}
	return nil
}

// Subscribe registers fn and returns its cancel function.
func (h *MemoryHub) Subscribe(_ context.Context, fn func(key, origin string)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}, nil
}
