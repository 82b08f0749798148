package statedb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleDB is the durable statedb backend used by the daemon.
type PebbleDB struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble-backed statedb at path.
func OpenPebble(path string) (*PebbleDB, error) {
	if path == "" {
		return nil, WrapError(ErrInvalidConfig, "open", "pebble", nil)
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, WrapError(err, "open", "pebble", nil)
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Read(ctx context.Context, key []byte) ([]byte, error) {
	if p.db == nil {
		return nil, ErrClosed
	}

	val, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "read", "pebble", key)
	}
	defer closer.Close()

	// Copy the value out: pebble reuses the buffer after closer.Close.
	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	return valCopy, nil
}

func (p *PebbleDB) Write(ctx context.Context, key, value []byte) error {
	if p.db == nil {
		return ErrClosed
	}
	return WrapError(p.db.Set(key, value, pebble.Sync), "write", "pebble", key)
}

func (p *PebbleDB) Delete(ctx context.Context, key []byte) error {
	if p.db == nil {
		return ErrClosed
	}
	return WrapError(p.db.Delete(key, pebble.Sync), "delete", "pebble", key)
}

func (p *PebbleDB) Batch(ctx context.Context, ops []BatchOperation) error {
	if p.db == nil {
		return ErrClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return WrapError(err, "batch", "pebble", op.Key)
			}
		case BatchDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return WrapError(err, "batch", "pebble", op.Key)
			}
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}

	return WrapError(batch.Commit(pebble.Sync), "batch", "pebble", nil)
}

func (p *PebbleDB) Iterator(ctx context.Context, start, end []byte) (Iterator, error) {
	if p.db == nil {
		return nil, ErrClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, WrapError(err, "iterator", "pebble", start)
	}

	return &pebbleIterator{iter: iter, start: start, end: end}, nil
}

func (p *PebbleDB) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return WrapError(err, "close", "pebble", nil)
}

type pebbleIterator struct {
	iter *pebble.Iterator

	start, end []byte
	current    struct {
		key, value []byte
	}
}

func (it *pebbleIterator) Next() bool {
	if it.current.key == nil {
		if it.start == nil {
			it.iter.First()
		} else {
			it.iter.SeekGE(it.start)
		}
	} else {
		it.iter.Next()
	}

	if !it.iter.Valid() {
		return false
	}

	key := it.iter.Key()
	if it.end != nil && bytes.Compare(key, it.end) >= 0 {
		return false
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	val := it.iter.Value()
	valCopy := make([]byte, len(val))
	copy(valCopy, val)

	it.current.key = keyCopy
	it.current.value = valCopy
	return true
}

func (it *pebbleIterator) Key() []byte {
	return it.current.key
}

func (it *pebbleIterator) Value() []byte {
	return it.current.value
}

func (it *pebbleIterator) Error() error {
	return it.iter.Error()
}

func (it *pebbleIterator) Close() error {
	return it.iter.Close()
}
