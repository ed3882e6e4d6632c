package artifact

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, requestID, name string, content io.Reader, _ int64) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	requestID, name, err := validateKey(requestID, name)
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey("", requestID, name)] = raw
	return nil
}

func (s *MemoryStore) Get(_ context.Context, requestID, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	requestID, name, err := validateKey(requestID, name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[objectKey("", requestID, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, requestID string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("request_id is required")
	}
	prefix := requestID + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 4)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetURL returns a memory:// reference; the archive is only reachable
// through Get.
func (s *MemoryStore) GetURL(_ context.Context, requestID, name string) (string, error) {
	requestID, name, err := validateKey(requestID, name)
	if err != nil {
		return "", err
	}
	return "memory://" + objectKey("", requestID, name), nil
}
