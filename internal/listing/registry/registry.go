// internal/listing/registry/registry.go

// Package registry tracks which listing IDs have already been displayed
// within one page render, so later placements can exclude them.
package registry

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"sync"
)

// Registry is a per-request display tracker. Callers construct one per
// inbound request and pass it down; it is never shared across requests.
type Registry struct {
	mu        sync.Mutex
	displayed map[string]map[int64]struct{}
}

func New() *Registry {
	return &Registry{displayed: make(map[string]map[int64]struct{})}
}

// ContextKey resolves the display context key: the explicit key when one is
// supplied, otherwise a hash of the request's logical page path. Placements
// on the same page share a context by default.
func ContextKey(explicit, path string) string {
	if explicit != "" {
		return explicit
	}
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Register merges the given IDs into the context's displayed set.
// Re-registering an ID is a no-op.
func (r *Registry) Register(contextKey string, ids []int64) {
	if len(ids) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.displayed[contextKey]
	if !ok {
		set = make(map[int64]struct{})
		r.displayed[contextKey] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// Displayed returns the context's accumulated IDs in ascending order. The
// order keeps downstream query bodies, and therefore cache keys of callers
// that include exclusions in their own hashing, deterministic.
func (r *Registry) Displayed(contextKey string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.displayed[contextKey]
	if len(set) == 0 {
		return nil
	}

	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear drops one context's accumulated IDs.
func (r *Registry) Clear(contextKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.displayed, contextKey)
}

// ClearAll drops every context.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displayed = make(map[string]map[int64]struct{})
}
