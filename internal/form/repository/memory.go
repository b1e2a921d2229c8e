package repository

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/fooforms/fooforms/backend/go-services/internal/form"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo is an in-memory form.Store used by unit tests and as the
// fallback when MongoDB is not reachable. Writes are serialised by mu and
// every form is copied on the way in and out.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[primitive.ObjectID]*form.Form
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[primitive.ObjectID]*form.Form)}
}

func (m *MemoryRepo) Insert(ctx context.Context, f *form.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[f.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range m.store {
		if existing.URL == f.URL {
			return ErrDuplicate
		}
	}
	m.store[f.ID] = f.Clone()
	return nil
}

func (m *MemoryRepo) Update(ctx context.Context, f *form.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[f.ID]; !ok {
		return form.ErrNotFound
	}
	m.store[f.ID] = f.Clone()
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id primitive.ObjectID) (*form.Form, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.store[id]; ok {
		return f.Clone(), nil
	}
	return nil, form.ErrNotFound
}

func (m *MemoryRepo) List(ctx context.Context, filter form.Filter) ([]*form.Form, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*form.Form, 0, len(m.store))
	for _, f := range m.store {
		if !filter.PostStream.IsZero() && !hasStream(f, filter.PostStream) {
			continue
		}
		out = append(out, f.Clone())
	}
	// newest first; equal timestamps fall back to id, newest first
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return form.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func hasStream(f *form.Form, stream primitive.ObjectID) bool {
	for _, s := range f.PostStream {
		if s == stream {
			return true
		}
	}
	return false
}
