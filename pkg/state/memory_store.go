package state

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/goliatone/go-modkit/mixing"
)

// MemoryStore keeps snapshots in process, keyed by Ref.Identifier. Snapshots
// are deep copied when saved and when loaded, so callers never share state
// with the store.
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]stored[T]
}

type stored[T any] struct {
	snapshot T
	meta     Meta
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{items: make(map[string]stored[T])}
}

func (s *MemoryStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return mixing.Clone(item.snapshot), item.meta.clone(), true, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = make(map[string]stored[T])
	}
	s.items[key] = stored[T]{snapshot: mixing.Clone(snapshot), meta: meta.clone()}
	return meta.clone(), nil
}

// Delete removes the snapshot for ref. Deleting a missing snapshot is not an
// error.
func (s *MemoryStore[T]) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Keys lists the stored identifiers in sorted order.
func (s *MemoryStore[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m Meta) clone() Meta {
	m.Extra = maps.Clone(m.Extra)
	return m
}
