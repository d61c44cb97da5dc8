package memory

import (
	"context"
	"strings"
	"sync"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
)

// DocStore is an in-memory implementation of app.DocumentStore, used
// by unit tests and as the zero-dependency dev backend. Collections
// remember insertion order.
type DocStore struct {
	mu    sync.RWMutex
	docs  map[string]app.Fields
	order map[string][]string
}

func NewDocStore() *DocStore {
	return &DocStore{
		docs:  make(map[string]app.Fields),
		order: make(map[string][]string),
	}
}

func (s *DocStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[path]
	return ok, nil
}

func (s *DocStore) Read(_ context.Context, path string) (app.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.docs[path]
	if !ok {
		return app.Record{}, nil
	}
	return app.Record{Present: true, Fields: copyFields(fields)}, nil
}

func (s *DocStore) WriteMerge(_ context.Context, path string, fields app.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.docs[path]
	if !ok {
		existing = make(app.Fields, len(fields))
		s.docs[path] = existing
		s.register(path)
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (s *DocStore) WriteOverwrite(_ context.Context, path string, fields app.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.docs[path]
	if !ok {
		return domain.ErrNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (s *DocStore) ListChildren(_ context.Context, collection string) ([]app.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[collection]
	children := make([]app.Child, 0, len(ids))
	for _, id := range ids {
		fields, ok := s.docs[collection+"/"+id]
		if !ok {
			continue
		}
		children = append(children, app.Child{ID: id, Fields: copyFields(fields)})
	}
	return children, nil
}

// register records a new document in its parent collection's order.
// Callers hold the write lock.
func (s *DocStore) register(path string) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return
	}
	collection, id := path[:idx], path[idx+1:]
	s.order[collection] = append(s.order[collection], id)
}

func copyFields(fields app.Fields) app.Fields {
	out := make(app.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
