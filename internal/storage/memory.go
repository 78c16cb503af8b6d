package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process bucket used by tests and the memory backend.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data        []byte
	contentType string
	modTime     time.Time
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memoryObject),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key] = memoryObject{data: buf, contentType: contentType, modTime: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Object, error) {
	prefix = normalisePrefix(prefix)

	m.mu.RLock()
	out := make([]Object, 0)
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, Size: int64(len(obj.data)), ModTime: obj.modTime})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
