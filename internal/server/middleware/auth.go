package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/security"
)

const bearerPrefix = "Bearer "

// DefaultPublicPrefixes are the path prefixes served without token work. A prefix
// without a trailing slash also matches the bare path itself.
var DefaultPublicPrefixes = []string{"/auth/", "/public/", "/courses/public", "/actuator/", "/health"}

// TokenValidator is the subset of security.TokenService the middleware uses.
type TokenValidator interface {
	ExtractSubject(token string) (string, error)
	Validate(token string) (string, error)
}

// AccountFinder resolves the token subject to an account.
type AccountFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// Authenticator reconstructs the request Principal from the Authorization header.
// It never rejects a request: every failure leaves the context without a
// Principal and authorization is decided downstream.
type Authenticator struct {
	tokens   TokenValidator
	accounts AccountFinder
	public   []string
	log      zerolog.Logger
}

// NewAuthenticator returns an Authenticator. A nil publicPrefixes uses DefaultPublicPrefixes.
func NewAuthenticator(tokens TokenValidator, accounts AccountFinder, publicPrefixes []string, log zerolog.Logger) *Authenticator {
	if publicPrefixes == nil {
		publicPrefixes = DefaultPublicPrefixes
	}
	return &Authenticator{tokens: tokens, accounts: accounts, public: publicPrefixes, log: log}
}

// IsPublic reports whether path matches a public prefix.
func (a *Authenticator) IsPublic(path string) bool {
	for _, p := range a.public {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Middleware wraps next with identity reconstruction.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := PrincipalFrom(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		token := extractToken(r.Header.Get("Authorization"))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if p := a.resolve(r.Context(), token); p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolve(ctx context.Context, token string) *Principal {
	log := a.log.With().Str("component", "auth").Logger()
	if _, err := a.tokens.ExtractSubject(token); err != nil {
		log.Debug().Err(err).Msg("Unable to get subject from token")
		return nil
	}
	subject, err := a.tokens.Validate(token)
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, security.ErrTokenExpired) {
			ev = log.Debug()
		}
		ev.Err(err).Msg("Rejected session token")
		return nil
	}
	acc, err := a.accounts.FindByEmail(ctx, subject)
	if err != nil {
		log.Error().Err(err).Msg("Account lookup failed")
		return nil
	}
	if acc == nil {
		log.Debug().Str("subject", subject).Msg("Token subject has no account")
		return nil
	}
	return NewPrincipal(acc)
}

// extractToken accepts "Bearer <token>" or a bare token.
func extractToken(header string) string {
	header = strings.TrimSpace(header)
	if header == strings.TrimSpace(bearerPrefix) {
		return ""
	}
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return header
}
