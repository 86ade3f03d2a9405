package security

import (
	"errors"
	"os"
	"strings"
)

// ErrInvalidSecret is returned when the configured secret is empty or unreadable.
var ErrInvalidSecret = errors.New("invalid token secret")

const filePrefix = "file://"

// LoadSecret returns the signing secret from s. A value prefixed with file:// is
// read from that path with surrounding whitespace trimmed; anything else is used inline.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if !strings.HasPrefix(s, filePrefix) {
		return []byte(s), nil
	}
	b, err := os.ReadFile(strings.TrimPrefix(s, filePrefix))
	if err != nil {
		return nil, err
	}
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 {
		return nil, ErrInvalidSecret
	}
	return b, nil
}
