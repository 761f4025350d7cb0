package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Keeper used in local mode.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]Record
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

var _ Keeper = (*MemoryStore)(nil)

func NewMemoryStore(ttlWindow time.Duration) *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, ttlWindow: ttlWindow, nowFunc: time.Now}
}

func (m *MemoryStore) CreateIfNotExists(_ context.Context, key, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc().UTC()
	if cur, ok := m.records[key]; ok && !cur.Expired(now) && cur.Status != StatusFailed {
		return false, nil
	}
	m.records[key] = Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(m.ttlWindow).Unix(),
	}
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Expired(m.nowFunc()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) MarkDone(_ context.Context, key, responseBody string, responseStatus int) error {
	return m.update(key, func(r *Record) {
		r.Status = StatusDone
		r.ResponseBody = responseBody
		r.ResponseStatus = responseStatus
	})
}

func (m *MemoryStore) MarkFailed(_ context.Context, key, note string) error {
	return m.update(key, func(r *Record) {
		r.Status = StatusFailed
		r.Note = note
	})
}

func (m *MemoryStore) update(key string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	rec.UpdatedAt = m.nowFunc().UTC()
	m.records[key] = rec
	return nil
}
