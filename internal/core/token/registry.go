package token

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultAdapterCacheSize = 256

// Registry maps asset identifiers to token modules and hands out conformed
// adapters. The conformance gate runs once per asset; later lookups hit the
// adapter cache.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]any

	adapters *lru.Cache[string, Token]
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	cache, _ := lru.New[string, Token](defaultAdapterCacheSize)
	return &Registry{
		modules:  make(map[string]any),
		adapters: cache,
	}
}

// Register binds a token module to an asset id. Re-registering replaces the
// module and invalidates any cached adapter.
func (r *Registry) Register(assetID string, module any) {
	r.mu.Lock()
	r.modules[assetID] = module
	r.mu.Unlock()
	r.adapters.Remove(assetID)
}

// Resolve returns the conformed token for an asset id, running the
// conformance gate on a cache miss.
func (r *Registry) Resolve(assetID string) (Token, error) {
	if tok, ok := r.adapters.Get(assetID); ok {
		return tok, nil
	}

	r.mu.RLock()
	module, ok := r.modules[assetID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, assetID)
	}

	tok, err := Conform(module)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", assetID, err)
	}
	r.adapters.Add(assetID, tok)
	return tok, nil
}

// Registered reports whether a module is bound to the asset id.
func (r *Registry) Registered(assetID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[assetID]
	return ok
}
