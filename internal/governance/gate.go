package governance

import (
	"context"

	"energy-subsidy/internal/auth"
)

// Gate supplies authorization decisions for governance-gated operations:
// rate changes, freezes, signer-set changes, and governance withdrawals.
// Every service consumes the same capability check instead of inlining
// caller comparisons.
type Gate interface {
	RequireAdmin(ctx context.Context) error
}

// RoleGate authorizes against the authenticated role in the request context.
type RoleGate struct{}

// RequireAdmin returns auth.ErrForbidden unless the caller is admin.
func (RoleGate) RequireAdmin(ctx context.Context) error {
	if auth.RoleFromContext(ctx) != auth.RoleAdmin {
		return auth.ErrForbidden
	}
	return nil
}
