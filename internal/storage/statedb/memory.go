package statedb

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryDB is a map-backed statedb used in tests and for ephemeral runs.
type MemoryDB struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory statedb.
func NewMemory() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

func (m *MemoryDB) Read(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	val, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	return valCopy, nil
}

func (m *MemoryDB) Write(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	valCopy := make([]byte, len(value))
	copy(valCopy, value)
	m.data[string(key)] = valCopy
	return nil
}

func (m *MemoryDB) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.data, string(key))
	return nil
}

func (m *MemoryDB) Batch(ctx context.Context, ops []BatchOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			valCopy := make([]byte, len(op.Value))
			copy(valCopy, op.Value)
			m.data[string(op.Key)] = valCopy
		case BatchDelete:
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

func (m *MemoryDB) Iterator(ctx context.Context, start, end []byte) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		kb := []byte(k)
		if start != nil && bytes.Compare(kb, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(kb, end) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]memEntry, 0, len(keys))
	for _, k := range keys {
		val := m.data[k]
		valCopy := make([]byte, len(val))
		copy(valCopy, val)
		entries = append(entries, memEntry{key: []byte(k), value: valCopy})
	}
	return &memoryIterator{entries: entries, pos: -1}, nil
}

func (m *MemoryDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memEntry struct {
	key, value []byte
}

type memoryIterator struct {
	entries []memEntry
	pos     int
}

func (it *memoryIterator) Next() bool {
	if it.pos+1 >= len(it.entries) {
		return false
	}
	it.pos++
	return true
}

func (it *memoryIterator) Key() []byte {
	return it.entries[it.pos].key
}

func (it *memoryIterator) Value() []byte {
	return it.entries[it.pos].value
}

func (it *memoryIterator) Error() error { return nil }
func (it *memoryIterator) Close() error { return nil }
