package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps records in memory. Used in tests and in deployments
// without a storage account; the archive is then lost on restart, which is
// acceptable since the backend keeps the authoritative scan counters.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ StorageInterface = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (s *MemoryStorage) Store(filename string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	s.blobs[filename] = copied
	return nil
}

func (s *MemoryStorage) Retrieve(filename string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[filename]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", filename)
	}
	return data, nil
}

func (s *MemoryStorage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) Delete(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[filename]; !ok {
		return fmt.Errorf("blob %s not found", filename)
	}
	delete(s.blobs, filename)
	return nil
}
