package security

import "time"

// testSecret is a fixed HMAC secret for unit tests only. Do not use in production.
const testSecret = "test-secret-0123456789abcdefghijklmnopqrstuvwxyz"

// NewTestTokenService returns a TokenService using the embedded test secret and a 24h TTL.
// For unit tests only.
func NewTestTokenService(opts ...TokenOption) (*TokenService, error) {
	return NewTokenService([]byte(testSecret), "test-issuer", 24*time.Hour, opts...)
}
