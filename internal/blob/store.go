// Package blob keeps uploaded artifact bytes outside the process, so a
// session's artifact can be fetched again after upload.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

// Store saves artifact bytes under a session scope.
type Store interface {
	Put(ctx context.Context, scope, name string, content []byte, contentType string) error
	Get(ctx context.Context, scope, name string) ([]byte, error)
	Delete(ctx context.Context, scope, name string) error
}

func objectKey(scope, name string) (string, error) {
	scope = strings.Trim(strings.TrimSpace(scope), "/")
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if scope == "" {
		return "", fmt.Errorf("scope is required")
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	return scope + "/" + name, nil
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, scope, name string, content []byte, _ string) error {
	key, err := objectKey(scope, name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), content...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope, name string) ([]byte, error) {
	key, err := objectKey(scope, name)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, scope, name string) error {
	key, err := objectKey(scope, name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}
