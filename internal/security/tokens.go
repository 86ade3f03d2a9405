package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HMAC secret size accepted by NewTokenService.
const MinSecretLength = 32

var (
	// ErrEmptySubject is returned by Issue when the subject is blank.
	ErrEmptySubject = errors.New("token subject is required")
	// ErrWeakSecret is returned when the signing secret is shorter than MinSecretLength.
	ErrWeakSecret = errors.New("token secret must be at least 32 bytes")

	// Sentinels matched by TokenError.Is, so callers can use errors.Is on any kind.
	ErrTokenMalformed         = errors.New("token malformed")
	ErrTokenSignatureMismatch = errors.New("token signature mismatch")
	ErrTokenExpired           = errors.New("token expired")
)

// TokenErrorKind classifies why a session token was rejected.
type TokenErrorKind int

const (
	TokenMalformed TokenErrorKind = iota + 1
	TokenSignatureMismatch
	TokenExpired
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenMalformed:
		return "malformed"
	case TokenSignatureMismatch:
		return "signature_mismatch"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// TokenError is returned by Validate and ExtractSubject.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "token " + e.Kind.String()
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *TokenError) Is(target error) bool {
	switch target {
	case ErrTokenMalformed:
		return e.Kind == TokenMalformed
	case ErrTokenSignatureMismatch:
		return e.Kind == TokenSignatureMismatch
	case ErrTokenExpired:
		return e.Kind == TokenExpired
	}
	return false
}

// SessionClaims are the claims carried by a session token. Subject is the account email.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 session tokens. It holds no mutable state
// after construction and is safe for concurrent use.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService returns a TokenService signing with secret. ttl is the token lifetime.
func NewTokenService(secret []byte, issuer string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	s := &TokenService{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for subject expiring TTL after now.
func (s *TokenService) Issue(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", ErrEmptySubject
	}
	now := s.now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate verifies the signature and expiry of token and returns its subject.
// The signature is checked before expiry, so a forged expired token reports
// TokenSignatureMismatch and a genuine expired token reports TokenExpired.
// Once header and payload decode, any defect in the signature segment, including
// bytes outside the base64url alphabet, reports TokenSignatureMismatch.
func (s *TokenService) Validate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if _, err := s.parseUnverified(token); err != nil {
		return "", err
	}
	_, _, signature, _ := splitSegments(token)
	if _, err := jwt.NewParser(jwt.WithStrictDecoding()).DecodeSegment(signature); err != nil {
		return "", &TokenError{Kind: TokenSignatureMismatch, Err: err}
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	claims := &SessionClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", classify(err)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return "", &TokenError{Kind: TokenSignatureMismatch, Err: errors.New("issuer mismatch")}
	}
	if claims.Subject == "" {
		return "", &TokenError{Kind: TokenMalformed, Err: errors.New("missing subject")}
	}
	return claims.Subject, nil
}

// ExtractSubject returns the subject claim without checking signature or expiry.
// Callers must still call Validate before trusting the value.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims, err := s.parseUnverified(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", &TokenError{Kind: TokenMalformed, Err: errors.New("missing subject")}
	}
	return claims.Subject, nil
}

// splitSegments splits token at its first two dots. Everything after the second
// dot is the signature segment, so a stray dot there is a signature defect.
func splitSegments(token string) (header, payload, signature string, ok bool) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func (s *TokenService) parseUnverified(token string) (*SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &TokenError{Kind: TokenMalformed, Err: errors.New("empty token")}
	}
	header, payload, _, ok := splitSegments(token)
	if !ok {
		return nil, &TokenError{Kind: TokenMalformed, Err: errors.New("token must have three segments")}
	}
	// The signature segment is left out so that only header and payload defects are malformed.
	claims := &SessionClaims{}
	if _, _, err := jwt.NewParser(jwt.WithStrictDecoding()).ParseUnverified(header+"."+payload+".", claims); err != nil {
		return nil, &TokenError{Kind: TokenMalformed, Err: err}
	}
	return claims, nil
}

// classify maps a jwt parse error to a TokenError. Validate has already decoded the
// header, payload and signature segments with the same strict decoder, so a
// malformed error at this point can only come from signature verification.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenMalformed):
		return &TokenError{Kind: TokenSignatureMismatch, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}
