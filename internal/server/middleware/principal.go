// Package middleware holds the HTTP middleware chain: identity reconstruction
// from session tokens, request logging, client IP capture, and route auditing.
package middleware

import (
	"context"

	"eduplatform/backend/internal/account/domain"
)

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	clientIPKey  = contextKey{"client_ip"}
)

// Principal is the resolved identity of one in-flight request.
type Principal struct {
	Account *domain.Account
	// Authority is the derived role claim, "ROLE_" + role.
	Authority string
}

// NewPrincipal builds the Principal for a resolved account.
func NewPrincipal(a *domain.Account) *Principal {
	return &Principal{Account: a, Authority: a.Role.Authority()}
}

// Role returns the principal's role, or RoleNone for a nil principal.
func (p *Principal) Role() domain.Role {
	if p == nil || p.Account == nil {
		return domain.RoleNone
	}
	return p.Account.Role
}

// AccountID returns the principal's account ID, or "" for a nil principal.
func (p *Principal) AccountID() string {
	if p == nil || p.Account == nil {
		return ""
	}
	return p.Account.ID
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the Principal attached to ctx and true if set; otherwise nil, false.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
