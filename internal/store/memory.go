package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a volatile Store. It backs tests and --dry-run style development;
// it intentionally implements the exact same semantics as the sqlite store
// minus durability.
type Memory struct {
	mu     sync.Mutex
	kv     map[string]string
	events []Event
	closed bool
}

func NewMemory() *Memory {
	return &Memory{kv: map[string]string{}}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrUnavailable
	}
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *Memory) Put(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	if key == "" {
		return nil
	}
	m.kv[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	delete(m.kv, key)
	return nil
}

func (m *Memory) AppendEvent(ctx context.Context, e Event) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded events. Test helper.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
