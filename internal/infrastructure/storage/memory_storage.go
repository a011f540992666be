package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	carrierapp "github.com/fulfillment/backend/internal/application/carrier"
)

var _ carrierapp.ArchiveStorage = (*InMemoryArchiveStorage)(nil)

// Object is an archived blob held in memory.
type Object struct {
	Data        []byte
	ContentType string
}

// InMemoryArchiveStorage keeps archive objects in process memory.
// Contents are lost on restart.
type InMemoryArchiveStorage struct {
	mu      sync.RWMutex
	prefix  string
	objects map[string]Object
}

// NewInMemoryArchiveStorage creates an empty store.
func NewInMemoryArchiveStorage(prefix string) *InMemoryArchiveStorage {
	return &InMemoryArchiveStorage{
		prefix:  strings.Trim(prefix, "/"),
		objects: make(map[string]Object),
	}
}

// Put stores a copy of data and returns the full object key.
func (s *InMemoryArchiveStorage) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrKeyRequired
	}
	fullKey := joinKey(s.prefix, key)

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[fullKey] = Object{Data: buf, ContentType: contentType}
	return fullKey, nil
}

// Get returns the object stored under the full key.
func (s *InMemoryArchiveStorage) Get(fullKey string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[fullKey]
	return obj, ok
}

// Keys lists stored keys in lexical order.
func (s *InMemoryArchiveStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
