package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used by unit tests and local development.
// It applies the same key, version and TTL semantics as the Postgres store.
type Memory struct {
	mu    sync.RWMutex
	items map[memKey]*Item
	now   func() time.Time
}

type memKey struct{ pk, sk string }

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[memKey]*Item), now: time.Now}
}

func (m *Memory) live(it *Item) bool {
	return it.ExpiresAt == nil || it.ExpiresAt.After(m.now())
}

func copyItem(it *Item) *Item {
	cp := *it
	cp.Attrs = append([]byte(nil), it.Attrs...)
	if it.ExpiresAt != nil {
		t := *it.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, pk, sk string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[memKey{pk, sk}]
	if !ok || !m.live(it) {
		return nil, ErrNotFound
	}
	return copyItem(it), nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(item)
	return nil
}

func (m *Memory) upsertLocked(item *Item) {
	k := memKey{item.PK, item.SK}
	cp := copyItem(item)
	now := m.now()
	if prev, ok := m.items[k]; ok && m.live(prev) {
		cp.Version = prev.Version + 1
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.Version = 1
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.items[k] = cp
	item.Version = cp.Version
}

// PutIfAbsent implements Store.
func (m *Memory) PutIfAbsent(_ context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.items[memKey{item.PK, item.SK}]; ok && m.live(prev) {
		return ErrConditionFailed
	}
	m.upsertLocked(item)
	return nil
}

// UpdateVersioned implements Store.
func (m *Memory) UpdateVersioned(_ context.Context, item *Item, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{item.PK, item.SK}
	prev, ok := m.items[k]
	if !ok || !m.live(prev) {
		return ErrNotFound
	}
	if prev.Version != expected {
		return ErrConditionFailed
	}
	m.upsertLocked(item)
	return nil
}

// Query implements Store.
func (m *Memory) Query(_ context.Context, pk, skPrefix string) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Item
	for k, it := range m.items {
		if k.pk == pk && strings.HasPrefix(k.sk, skPrefix) && m.live(it) {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SK < out[j].SK })
	return out, nil
}

// QueryGSI1 implements Store.
func (m *Memory) QueryGSI1(_ context.Context, gsi1pk, prefix string) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Item
	for _, it := range m.items {
		if it.GSI1PK == gsi1pk && strings.HasPrefix(it.GSI1SK, prefix) && m.live(it) {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GSI1SK < out[j].GSI1SK })
	return out, nil
}

// QueryGSI2 implements Store.
func (m *Memory) QueryGSI2(_ context.Context, gsi2pk, prefix string) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Item
	for _, it := range m.items {
		if it.GSI2PK == gsi2pk && strings.HasPrefix(it.GSI2SK, prefix) && m.live(it) {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GSI2SK < out[j].GSI2SK })
	return out, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, pk, sk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, memKey{pk, sk})
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
