package progress

import (
	"context"
	"sync"
)

// MemoryStore 进程内实现，用于命令行导入与测试
type MemoryStore struct {
	mu          sync.Mutex
	snapshots   map[string]Snapshot
	history     map[string][]Snapshot
	subscribers map[string]map[chan Snapshot]struct{}
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make(map[string]Snapshot),
		history:     make(map[string][]Snapshot),
		subscribers: make(map[string]map[chan Snapshot]struct{}),
	}
}

func (m *MemoryStore) Save(_ context.Context, snapshot Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[snapshot.JobID] = snapshot
	m.history[snapshot.JobID] = append(m.history[snapshot.JobID], snapshot)
	for ch := range m.subscribers[snapshot.JobID] {
		// 订阅者处理不及时时丢弃中间进度
		select {
		case ch <- snapshot:
		default:
		}
	}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, jobID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[jobID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Subscribe(_ context.Context, jobID string) (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, subscribeBuffer)

	m.mu.Lock()
	if m.subscribers[jobID] == nil {
		m.subscribers[jobID] = make(map[chan Snapshot]struct{})
	}
	m.subscribers[jobID][ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers[jobID], ch)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// History 任务保存过的全部快照
func (m *MemoryStore) History(jobID string) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.history[jobID]...)
}
