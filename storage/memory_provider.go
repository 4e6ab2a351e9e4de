package storage

import (
	"sync"
)

// MemoryProvider keeps all data in process memory. Used in tests and for
// throwaway wallets.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Provider = (*MemoryProvider)(nil)

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

func (p *MemoryProvider) LoadData(key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (p *MemoryProvider) StoreData(key string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	p.data[key] = stored
	return nil
}

func (p *MemoryProvider) Close() error {
	return nil
}
