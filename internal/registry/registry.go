package registry

import (
	"context"
	"sync"
)

// MemoryRegistry allocates installation identifiers in process. The identity
// and KYC checks behind registration belong to an external collaborator; this
// package only hands out the next id.
type MemoryRegistry struct {
	mu   sync.Mutex
	next uint64
}

// NewMemoryRegistry constructs a registry starting at id 1.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{next: 1}
}

// NextInstallationID allocates the next identifier.
func (r *MemoryRegistry) NextInstallationID(ctx context.Context) (uint64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	return id, nil
}
