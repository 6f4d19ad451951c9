package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/pool/freeze" || path == "/api/v1/pool/unfreeze":
		return RoleAdmin, true
	case path == "/api/v1/pool/governance-withdrawals":
		return RoleAdmin, true
	case path == "/api/v1/pool/deposits" && method == http.MethodPost:
		return RoleOperator, true
	case path == "/api/v1/pool/withdrawals":
		return RoleOperator, true
	case path == "/api/v1/pool/transfers":
		return RoleOperator, true
	case path == "/api/v1/pool" || strings.HasPrefix(path, "/api/v1/pool/deposits/"):
		return RoleViewer, true
	case path == "/api/v1/oracle/pause" || path == "/api/v1/oracle/unpause":
		return RoleAdmin, true
	case path == "/api/v1/oracle/signers" || strings.HasPrefix(path, "/api/v1/oracle/signers/"):
		return RoleAdmin, true
	case path == "/api/v1/oracle/reports" && method == http.MethodPost:
		return RoleOperator, true
	case path == "/api/v1/oracle" || strings.HasPrefix(path, "/api/v1/oracle/reports/"):
		return RoleViewer, true
	case path == "/api/v1/subsidy/rate":
		return RoleAdmin, true
	case path == "/api/v1/subsidy":
		return RoleViewer, true
	case path == "/api/v1/installations" && method == http.MethodPost:
		return RoleOperator, true
	case strings.HasPrefix(path, "/api/v1/installations/") && strings.HasSuffix(path, "/claims"):
		return RoleOperator, true
	case strings.HasPrefix(path, "/api/v1/installations/"):
		return RoleViewer, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleOperator, true
	}
	return "", false
}
