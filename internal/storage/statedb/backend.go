package statedb

import "fmt"

// Backend names accepted by Open.
const (
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Open creates a statedb with the named backend. The path is ignored by the
// memory backend.
func Open(backend, path string) (DB, error) {
	switch backend {
	case BackendPebble:
		return OpenPebble(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}
