// Package rbac decides whether a request's Principal satisfies a route's role requirement.
package rbac

import (
	"context"
	"slices"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/server/middleware"
)

// Decision is the outcome of an authorization check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Grants maps a role to every role requirement it satisfies. A role absent from
// the table satisfies nothing.
type Grants map[domain.Role][]domain.Role

// DefaultGrants makes Admin a superset of Instructor, and Instructor a superset of Student.
func DefaultGrants() Grants {
	return Grants{
		domain.RoleStudent:    {domain.RoleStudent},
		domain.RoleInstructor: {domain.RoleInstructor, domain.RoleStudent},
		domain.RoleAdmin:      {domain.RoleAdmin, domain.RoleInstructor, domain.RoleStudent},
	}
}

// Satisfies reports whether holder meets required under g.
func (g Grants) Satisfies(holder, required domain.Role) bool {
	return slices.Contains(g[holder], required)
}

// Decider is implemented by every authorization engine.
type Decider interface {
	Decide(ctx context.Context, p *middleware.Principal, required domain.Role) (Decision, error)
}

// Policy is the in-process grant-table decider. It holds no mutable state.
type Policy struct {
	grants Grants
}

// NewPolicy returns a Policy over grants; nil uses DefaultGrants.
func NewPolicy(grants Grants) *Policy {
	if grants == nil {
		grants = DefaultGrants()
	}
	return &Policy{grants: grants}
}

// Grants returns the table this policy decides with.
func (p *Policy) Grants() Grants { return p.grants }

// Authorize denies a missing Principal on any route with a requirement and
// denies a role that does not satisfy required. RoleNone allows everyone.
func (p *Policy) Authorize(principal *middleware.Principal, required domain.Role) Decision {
	if required == domain.RoleNone {
		return Allow
	}
	if principal == nil || principal.Account == nil {
		return Deny
	}
	return Decision(p.grants.Satisfies(principal.Role(), required))
}

// Decide implements Decider.
func (p *Policy) Decide(_ context.Context, principal *middleware.Principal, required domain.Role) (Decision, error) {
	return p.Authorize(principal, required), nil
}
