package attachments

import (
	"bytes"
	"context"
	"sync"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
)

// MemoryStore keeps blobs in process memory. It backs the "memory"
// attachment backend and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
	puts  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

func (m *MemoryStore) Put(ctx context.Context, prefix string, up Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := KeyFor(prefix, up.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if _, ok := m.blobs[key]; ok {
		return key, nil
	}
	m.blobs[key] = Blob{Key: key, ContentType: up.ContentType, Data: bytes.Clone(up.Data)}
	return key, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[key]
	if !ok {
		return Blob{}, common.ErrorNotFound
	}
	b.Data = bytes.Clone(b.Data)
	return b, nil
}

// Puts reports how many Put calls were made, including deduplicated ones.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Len reports how many distinct blobs are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
