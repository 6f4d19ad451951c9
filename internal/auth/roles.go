package auth

// Role represents a caller role.
type Role string

const (
	// RoleViewer may call read-only queries.
	RoleViewer Role = "viewer"
	// RoleOperator may move own value: deposits, withdrawals, reports, claims.
	RoleOperator Role = "operator"
	// RoleAdmin is the governance identity: rate, freeze, signer set, pause.
	RoleAdmin Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleViewer, RoleOperator, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
