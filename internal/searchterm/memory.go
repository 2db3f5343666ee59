package searchterm

import (
	"context"
	"sync"
)

// MemoryStore はプロセス内マップによるKVStore実装。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get はキーの値を返す。
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set はキーに値を保存する。
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// compile-time interface check
var _ KVStore = (*MemoryStore)(nil)
