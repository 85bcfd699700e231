package cache

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
)

const DefaultMemoryEntries = 64

// Memory is an in-process LRU of image bytes, used when Redis is not
// configured so a batch fetches each remote image once.
type Memory struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &Memory{lru: lru.New(maxEntries)}
}

// Get returns nil, nil on a miss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.lru.Get(key); ok {
		return v.([]byte), nil
	}
	return nil, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, val)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
