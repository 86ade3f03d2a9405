package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/security"
)

type memAccounts struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Account
	err     error
	calls   int
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.byEmail[domain.NormalizeEmail(email)], nil
}

// countingTokens wraps a TokenService and counts calls.
type countingTokens struct {
	*security.TokenService
	mu    sync.Mutex
	calls int
}

func (c *countingTokens) ExtractSubject(token string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.TokenService.ExtractSubject(token)
}

type captured struct {
	p  *Principal
	ok bool
}

func captureHandler(out *captured) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out.p, out.ok = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func newFixture(t *testing.T, opts ...security.TokenOption) (*countingTokens, *memAccounts, *Authenticator) {
	t.Helper()
	ts, err := security.NewTestTokenService(opts...)
	if err != nil {
		t.Fatalf("NewTestTokenService: %v", err)
	}
	tokens := &countingTokens{TokenService: ts}
	accounts := &memAccounts{byEmail: map[string]*domain.Account{
		"alice@example.com": {ID: "acc-1", Email: "alice@example.com", Role: domain.RoleInstructor},
	}}
	return tokens, accounts, NewAuthenticator(tokens, accounts, nil, zerolog.Nop())
}

func serve(h http.Handler, path, authHeader string) {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		r.Header.Set("Authorization", authHeader)
	}
	h.ServeHTTP(httptest.NewRecorder(), r)
}

func TestAuthenticate_AttachesPrincipal(t *testing.T) {
	tokens, _, auth := newFixture(t)
	token, _ := tokens.Issue("alice@example.com")

	for _, header := range []string{"Bearer " + token, token} {
		var got captured
		serve(auth.Middleware(captureHandler(&got)), "/users/me", header)
		if !got.ok {
			t.Fatalf("header %q: no principal attached", header[:10])
		}
		if got.p.AccountID() != "acc-1" || got.p.Authority != "ROLE_INSTRUCTOR" {
			t.Errorf("principal = %+v, authority %q", got.p.Account, got.p.Authority)
		}
	}
}

func TestAuthenticate_FailuresProceedUnauthenticated(t *testing.T) {
	clock := time.Now()
	tokens, accounts, auth := newFixture(t, security.WithClock(func() time.Time { return clock }))
	good, _ := tokens.Issue("alice@example.com")
	ghost, _ := tokens.Issue("ghost@example.com")
	other, _ := security.NewTokenService([]byte("another-secret-0123456789abcdefghijklmnop"), "test-issuer", time.Hour)
	forged, _ := other.Issue("alice@example.com")

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"malformed", "Bearer not-a-token"},
		{"forged", "Bearer " + forged},
		{"unknown account", "Bearer " + ghost},
		{"lowercase scheme is a bare token", "bearer " + good},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			serve(auth.Middleware(captureHandler(&got)), "/users/me", tc.header)
			if got.ok {
				t.Errorf("principal attached for %s", tc.name)
			}
		})
	}

	t.Run("store error", func(t *testing.T) {
		accounts.err = errors.New("db down")
		defer func() { accounts.err = nil }()
		var got captured
		serve(auth.Middleware(captureHandler(&got)), "/users/me", "Bearer "+good)
		if got.ok {
			t.Error("principal attached despite store error")
		}
	})
}

func TestAuthenticate_Expired(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	tokens, _, auth := newFixture(t, security.WithClock(clock))
	token, _ := tokens.Issue("alice@example.com")
	mu.Lock()
	now = now.Add(25 * time.Hour)
	mu.Unlock()

	rec := httptest.NewRecorder()
	var got captured
	r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	auth.Middleware(captureHandler(&got)).ServeHTTP(rec, r)
	if got.ok {
		t.Error("expired token attached a principal")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, middleware must not reject", rec.Code)
	}
}

func TestAuthenticate_PublicPathSkipsTokenWork(t *testing.T) {
	tokens, accounts, auth := newFixture(t)
	token, _ := tokens.Issue("alice@example.com")
	for _, path := range []string{"/auth/login", "/public/x", "/courses/public", "/courses/public/list", "/actuator/info", "/health", "/health/ready"} {
		var got captured
		serve(auth.Middleware(captureHandler(&got)), path, "Bearer "+token)
		if got.ok {
			t.Errorf("%s: principal attached on public path", path)
		}
	}
	if tokens.calls != 0 || accounts.calls != 0 {
		t.Errorf("token calls = %d, store calls = %d; want 0", tokens.calls, accounts.calls)
	}
}

func TestAuthenticator_IsPublic(t *testing.T) {
	_, _, auth := newFixture(t)
	cases := map[string]bool{
		"/courses/public":       true,
		"/courses/public/":      true,
		"/courses/publications": false,
		"/courses/abc":          false,
		"/health":               true,
		"/healthcheck":          false,
		"/auth/register":        true,
		"/auth":                 false,
		"/users/me":             false,
	}
	for path, want := range cases {
		if got := auth.IsPublic(path); got != want {
			t.Errorf("IsPublic(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestAuthenticate_KeepsExistingPrincipal(t *testing.T) {
	tokens, _, auth := newFixture(t)
	token, _ := tokens.Issue("alice@example.com")
	existing := NewPrincipal(&domain.Account{ID: "preset", Role: domain.RoleAdmin})

	var got captured
	r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r = r.WithContext(WithPrincipal(r.Context(), existing))
	auth.Middleware(captureHandler(&got)).ServeHTTP(httptest.NewRecorder(), r)
	if got.p != existing {
		t.Errorf("principal = %+v, want the preset one", got.p)
	}
}

func TestAuthenticator_CustomPublicPrefixes(t *testing.T) {
	auth := NewAuthenticator(nil, nil, []string{"/docs/"}, zerolog.Nop())
	if !auth.IsPublic("/docs/index.html") || auth.IsPublic("/auth/login") {
		t.Error("custom prefixes must replace the defaults")
	}
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"Bearer abc":    "abc",
		"  Bearer abc ": "abc",
		"abc":           "abc",
		"Bearer ":       "",
	}
	for in, want := range cases {
		if got := extractToken(in); got != want {
			t.Errorf("extractToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrincipal_NilSafe(t *testing.T) {
	var p *Principal
	if p.Role() != domain.RoleNone || p.AccountID() != "" {
		t.Error("nil principal should report no role and no ID")
	}
	if _, ok := PrincipalFrom(context.Background()); ok {
		t.Error("empty context has no principal")
	}
}
