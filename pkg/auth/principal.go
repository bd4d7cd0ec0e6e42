// Package auth provides principals, scope checks and the vault access gate.
// Token verification is the in-process stand-in for the external
// authentication collaborator: it resolves a bearer token to a Principal
// before any gate check runs.
package auth

import "slices"

// Scope is a coarse permission attached to a principal.
type Scope string

const (
	// ScopeRead allows pull, realtime subscription and blob reads.
	ScopeRead Scope = "read"

	// ScopeWrite allows push and blob uploads.
	ScopeWrite Scope = "write"

	// ScopeAdmin is a superset of read and write.
	ScopeAdmin Scope = "admin"
)

// IsValid reports whether s is a known scope.
func (s Scope) IsValid() bool {
	return s == ScopeRead || s == ScopeWrite || s == ScopeAdmin
}

// AuthType records how a principal was authenticated.
type AuthType string

const (
	AuthTypeBearer AuthType = "bearer"
	AuthTypeAPIKey AuthType = "api_key"
)

// Principal is an authenticated identity with its scope set, injected by the
// authentication collaborator. The sync core never sees credentials, only
// resolved principals.
type Principal struct {
	UserID   string
	Scopes   []Scope
	AuthType AuthType
}

// HasScope reports whether the principal carries the requested scope.
// Admin is a superset of every scope; read and write are siblings.
func (p *Principal) HasScope(requested Scope) bool {
	if slices.Contains(p.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(p.Scopes, requested)
}

// IsAdmin reports whether the principal carries the admin scope.
func (p *Principal) IsAdmin() bool {
	return slices.Contains(p.Scopes, ScopeAdmin)
}
