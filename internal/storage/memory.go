package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryObjectStore is an in-process ObjectStore for tests and local
// development.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject

	now func() time.Time
}

type memoryObject struct {
	data       []byte
	uploadedAt time.Time
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (s *MemoryObjectStore) Put(_ context.Context, key string, data []byte, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[key] = memoryObject{data: stored, uploadedAt: s.now()}
	return "mem://" + key, nil
}

func (s *MemoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

func (s *MemoryObjectStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ObjectInfo
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, ObjectInfo{Key: key, URL: "mem://" + key, UploadedAt: obj.uploadedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Len returns the number of stored objects.
func (s *MemoryObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
