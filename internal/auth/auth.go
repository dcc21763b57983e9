// Package auth issues and checks the operator tokens that guard the
// gateway's management API. Skill traffic is never authenticated here.
package auth

import (
	"errors"
	"slices"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrNoSigningKey = errors.New("signing key not configured")
	ErrUnauthorized = errors.New("unauthorized")
)

// Scopes granted to operator tokens.
const (
	ScopeAuditRead  = "audit:read"
	ScopeCacheWrite = "cache:write"
)

// Operator is the authenticated caller of the management API.
type Operator struct {
	Subject string   `json:"sub"`
	Scopes  []string `json:"scopes"`
}

// HasScope reports whether the operator was granted scope.
func (o *Operator) HasScope(scope string) bool {
	return o != nil && slices.Contains(o.Scopes, scope)
}
