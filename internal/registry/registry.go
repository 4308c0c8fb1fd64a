// Package registry holds the ordered list of check pools the orchestrator
// fans every request out to, populated once at startup by cmd/grossd,
// which adds one entry per configured check.
package registry

import "github.com/samettonyali/gross/internal/pool"

// Entry pairs a check's worker pool with whether that check's verdict is
// definitive: a definitive BLOCK or PASS short-circuits the orchestrator's
// collection loop.
type Entry struct {
	Name       string
	Pool       *pool.Pool
	Definitive bool
}

// Registry is the ordered list of registered checks. Order follows
// registration order, matching the original's dnsbl_init/spf_init calling
// register_check in sequence.
type Registry struct {
	entries []Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add appends a check entry. Called by cmd/grossd for each check during
// daemon startup.
func (r *Registry) Add(e Entry) {
	r.entries = append(r.entries, e)
}

// Entries returns the registered checks in registration order.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// Len reports how many checks are registered.
func (r *Registry) Len() int {
	return len(r.entries)
}
