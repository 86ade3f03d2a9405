package httpx

import (
	"net/http"
	"strconv"

	"eduplatform/backend/internal/account/domain"
)

// Route is one endpoint contributed by a handler package. The router wraps
// Handler with the role check and, when Audit is set, the audit recorder.
type Route struct {
	Pattern string
	Role    domain.Role
	Audit   bool
	Handler http.HandlerFunc
}

// QueryInt parses the query parameter name, returning def when absent or invalid.
func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryFloat parses the query parameter name, returning nil when absent or invalid.
func QueryFloat(r *http.Request, name string) *float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
