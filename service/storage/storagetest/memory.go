// Package storagetest provides an in-memory storage.ObjectStore for tests.
package storagetest

import (
	"community-intelligence-backend/service/storage"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type Object struct {
	ContentType string
	Data        []byte
}

type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object

	// 返回非nil时PutObject失败
	FailPut func(key string) error
	// 所有PresignGet调用都返回该错误
	PresignErr error
	Presigns   int

	BaseURL string
}

var _ storage.ObjectStore = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]Object),
		BaseURL: "https://cdn.example.test",
	}
}

func (m *MemoryStore) PutObject(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{ContentType: contentType, Data: data}
	return nil
}

func (m *MemoryStore) GetObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return obj.Data, nil
}

func (m *MemoryStore) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PresignErr != nil {
		return "", m.PresignErr
	}
	m.Presigns++
	return fmt.Sprintf("%s/%s?expires=%d&n=%d", m.BaseURL, key, int(expires.Seconds()), m.Presigns), nil
}

func (m *MemoryStore) PublicURL(key string) string {
	if m.BaseURL == "" {
		return ""
	}
	return m.BaseURL + "/" + key
}

func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) Object(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}
