package stack

import (
	"context"
	"slices"
	"sync"

	"github.com/ppiankov/stackguard/internal/model"
)

// MemoryStore keeps stacks in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]model.StackItem
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]model.StackItem)}
}

// CurrentStack implements Store
func (m *MemoryStore) CurrentStack(ctx context.Context, userID string) ([]model.StackItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items[userKey(userID)]), nil
}

// Add implements Store
func (m *MemoryStore) Add(ctx context.Context, userID string, item model.StackItem) (model.StackItem, error) {
	if err := ctx.Err(); err != nil {
		return model.StackItem{}, err
	}
	item, err := prepare(item)
	if err != nil {
		return model.StackItem{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := userKey(userID)
	if slices.ContainsFunc(m.items[key], func(it model.StackItem) bool { return it.ID == item.ID }) {
		return model.StackItem{}, ErrDuplicateItem
	}
	m.items[key] = append(m.items[key], item)
	return item, nil
}

// Remove implements Store
func (m *MemoryStore) Remove(ctx context.Context, userID, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := userKey(userID)
	idx := slices.IndexFunc(m.items[key], func(it model.StackItem) bool { return it.ID == itemID })
	if idx < 0 {
		return ErrItemNotFound
	}
	m.items[key] = slices.Delete(m.items[key], idx, idx+1)
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}
