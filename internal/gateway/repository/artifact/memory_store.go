package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data      []byte
	createdAt time.Time
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryObject
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryObject),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(_ context.Context, docID, name string, content []byte) error {
	docID, name, err := cleanKey(docID, name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(docID, name)] = memoryObject{
		data:      append([]byte(nil), content...),
		createdAt: s.now(),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, docID, name string) ([]byte, error) {
	docID, name, err := cleanKey(docID, name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.data[objectKey(docID, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// GetURL is unsupported in memory; it returns an empty string.
func (s *MemoryStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *MemoryStore) List(_ context.Context, docID string) ([]Entry, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	prefix := docID + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, 4)
	for key, obj := range s.data {
		if name, ok := strings.CutPrefix(key, prefix); ok {
			out = append(out, Entry{Name: name, Size: int64(len(obj.data)), CreatedAt: obj.createdAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, docID string) error {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return fmt.Errorf("document id is required")
	}
	prefix := docID + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			delete(s.data, key)
		}
	}
	return nil
}
