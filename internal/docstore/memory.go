package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// memoryStore is an in-memory document store for development and tests.
type memoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() Store {
	return &memoryStore{items: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = data
	return key, nil
}

func (s *memoryStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.items[ref]
	if !ok {
		return nil, fmt.Errorf("document %s not found", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) ResolveURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.items[ref]; !ok {
		return "", fmt.Errorf("document %s not found", ref)
	}
	return "memory://" + ref, nil
}
