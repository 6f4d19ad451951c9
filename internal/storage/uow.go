package storage

import (
	"context"
	"sync"
)

// UnitOfWork scopes one public settlement operation. Every mutating entry
// point of the pool, oracle, and payout services runs inside Within exactly
// once; cross-component calls made during the operation share the same scope
// and never re-enter it. Implementations guarantee the single-writer model:
// operations against the same settlement core are serialized, and a failed
// operation leaves no observable state change.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}

// Serial is the in-memory unit of work: a single mutex per settlement core.
// Rollback comes from ordering, not undo — services validate and perform
// collaborator calls before the first repository write, and in-memory writes
// cannot fail.
type Serial struct {
	mu sync.Mutex
}

// NewSerial constructs a Serial unit of work.
func NewSerial() *Serial {
	return &Serial{}
}

// Within runs fn while holding the core lock.
func (s *Serial) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}
