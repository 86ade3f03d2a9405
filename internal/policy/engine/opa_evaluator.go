// Package engine evaluates role requirements with OPA Rego.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/platform/rbac"
	"eduplatform/backend/internal/policy/repository"
	"eduplatform/backend/internal/server/middleware"
)

const (
	policyPackage = "eduplatform.authz"
	decisionQuery = "data." + policyPackage + ".allow"
)

// baseModule is completed with the grant table as JSON. Stored policies may add
// allow or deny rules in the same package; deny wins over grant-based allow.
const baseModule = `package eduplatform.authz

grants := %s

default allow := false

default deny := false

allow if input.required == ""

allow if {
	input.principal.authenticated
	input.required in grants[input.principal.role]
	not deny
}
`

// OPAEvaluator implements rbac.Decider over a Rego module generated from a
// grant table, extended by enabled policies from the repository.
type OPAEvaluator struct {
	grants     rbac.Grants
	policyRepo repository.Repository
	log        zerolog.Logger

	mu       sync.RWMutex
	prepared rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the decision module. policyRepo may be nil, in
// which case only the grant table is used.
func NewOPAEvaluator(ctx context.Context, grants rbac.Grants, policyRepo repository.Repository, log zerolog.Logger) (*OPAEvaluator, error) {
	if grants == nil {
		grants = rbac.DefaultGrants()
	}
	e := &OPAEvaluator{grants: grants, policyRepo: policyRepo, log: log}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// BaseModule renders the built-in Rego module for grants.
func BaseModule(grants rbac.Grants) (string, error) {
	table := make(map[string][]string, len(grants))
	for holder, satisfied := range grants {
		roles := make([]string, len(satisfied))
		for i, r := range satisfied {
			roles[i] = string(r)
		}
		table[string(holder)] = roles
	}
	b, err := json.Marshal(table)
	if err != nil {
		return "", fmt.Errorf("encode grants: %w", err)
	}
	return fmt.Sprintf(baseModule, b), nil
}

// Reload recompiles the base module together with the currently enabled stored
// policies. On failure the previously prepared query stays in effect.
func (e *OPAEvaluator) Reload(ctx context.Context) error {
	base, err := BaseModule(e.grants)
	if err != nil {
		return err
	}
	modules := map[string]string{"authz_base.rego": base}
	if e.policyRepo != nil {
		policies, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			return fmt.Errorf("list policies: %w", err)
		}
		for _, p := range policies {
			modules["policy_"+p.ID+".rego"] = p.Rules
		}
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return fmt.Errorf("compile policies: %w", err)
	}
	pq, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("prepare policy query: %w", err)
	}
	e.mu.Lock()
	e.prepared = pq
	e.mu.Unlock()
	e.log.Info().Int("modules", len(modules)).Msg("Authorization policies loaded")
	return nil
}

// Decide implements rbac.Decider. Any evaluation error is returned with Deny.
func (e *OPAEvaluator) Decide(ctx context.Context, p *middleware.Principal, required domain.Role) (rbac.Decision, error) {
	e.mu.RLock()
	pq := e.prepared
	e.mu.RUnlock()

	rs, err := pq.Eval(ctx, rego.EvalInput(decisionInput(p, required)))
	if err != nil {
		return rbac.Deny, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return rbac.Deny, errors.New("policy query returned no result")
	}
	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return rbac.Deny, fmt.Errorf("policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return rbac.Decision(allow), nil
}

// HealthCheck verifies the in-process engine answers a known decision. It does
// not call the policy repository.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.Decide(ctx, nil, domain.RoleNone)
	if err != nil {
		return err
	}
	if d != rbac.Allow {
		return errors.New("policy engine denied an open route")
	}
	return nil
}

func decisionInput(p *middleware.Principal, required domain.Role) map[string]interface{} {
	principal := map[string]interface{}{"authenticated": false}
	if p != nil && p.Account != nil {
		principal = map[string]interface{}{
			"authenticated": true,
			"account_id":    p.AccountID(),
			"role":          string(p.Role()),
			"authority":     p.Authority,
			"status":        string(p.Account.Status),
		}
	}
	return map[string]interface{}{
		"required":  string(required),
		"principal": principal,
	}
}
