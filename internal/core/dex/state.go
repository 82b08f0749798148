package dex

import (
	"context"
	"errors"

	"github.com/LeJamon/goAMMd/internal/storage/statedb"
)

// stagedAction represents the type of modification to a state entry.
type stagedAction int

const (
	// actionCache means the entry was read but not modified
	actionCache stagedAction = iota
	// actionPut means the entry was created or modified
	actionPut
	// actionDelete means the entry was deleted
	actionDelete
)

// tracked represents a state entry being tracked for changes.
type tracked struct {
	action  stagedAction
	current []byte
}

// stateView wraps the backing store and stages every write so the whole
// operation commits as one batch or not at all. A view that is never
// committed leaves the store untouched.
type stateView struct {
	base  statedb.DB
	items map[string]*tracked
}

func newStateView(base statedb.DB) *stateView {
	return &stateView{
		base:  base,
		items: make(map[string]*tracked),
	}
}

// get reads an entry, preferring staged values. Returns (nil, false, nil)
// for absent keys.
func (v *stateView) get(ctx context.Context, key string) ([]byte, bool, error) {
	if entry, ok := v.items[key]; ok {
		if entry.action == actionDelete {
			return nil, false, nil
		}
		return entry.current, true, nil
	}

	data, err := v.base.Read(ctx, []byte(key))
	if err != nil {
		if errors.Is(err, statedb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	v.items[key] = &tracked{action: actionCache, current: data}
	return data, true, nil
}

// put stages a write. Nothing reaches the store until commit.
func (v *stateView) put(key string, value []byte) {
	v.items[key] = &tracked{action: actionPut, current: value}
}

// delete stages a removal.
func (v *stateView) delete(key string) {
	v.items[key] = &tracked{action: actionDelete}
}

// commit applies every staged write as a single atomic batch.
func (v *stateView) commit(ctx context.Context) error {
	ops := make([]statedb.BatchOperation, 0, len(v.items))
	for key, entry := range v.items {
		switch entry.action {
		case actionPut:
			ops = append(ops, statedb.BatchOperation{
				Type:  statedb.BatchPut,
				Key:   []byte(key),
				Value: entry.current,
			})
		case actionDelete:
			ops = append(ops, statedb.BatchOperation{
				Type: statedb.BatchDelete,
				Key:  []byte(key),
			})
		}
	}
	if len(ops) == 0 {
		return nil
	}
	return v.base.Batch(ctx, ops)
}
