package kv

import (
	"sort"
	"strings"
	"sync"
)

// MemBackend is an in-process Backend implementation used by unit tests
// that exercise atom/schema/policy logic without touching disk. It upholds
// the same single-key-atomic, lexically-ordered-scan contract as BoltBackend.
type MemBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemBackend() *MemBackend {
	return &MemBackend{data: make(map[string][]byte)}
}

func (m *MemBackend) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemBackend) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemBackend) Scan(prefix string) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it := &sliceIterator{}
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			it.keys = append(it.keys, k)
			it.values = append(it.values, append([]byte(nil), v...))
		}
	}
	sort.Sort(byKey(it))
	return it, nil
}

func (m *MemBackend) Close() error { return nil }

// byKey sorts a sliceIterator's parallel key/value slices by key, keeping
// MemBackend's scan order consistent with BoltBackend's cursor order.
type byKey struct{ *sliceIterator }

func (b byKey) Len() int      { return len(b.keys) }
func (b byKey) Swap(i, j int) {
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
	b.values[i], b.values[j] = b.values[j], b.values[i]
}
func (b byKey) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
