package auth

import (
	"context"

	"energy-subsidy/internal/identity"
)

type contextKey string

const (
	contextKeyRole    contextKey = "auth.role"
	contextKeyAddress contextKey = "auth.address"
)

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, role Role, addr identity.Address) context.Context {
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeyAddress, addr)
	return ctx
}

// RoleFromContext extracts the caller role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// AddressFromContext extracts the caller address from context.
func AddressFromContext(ctx context.Context) identity.Address {
	if ctx == nil {
		return ""
	}
	if addr, ok := ctx.Value(contextKeyAddress).(identity.Address); ok {
		return addr
	}
	return ""
}
