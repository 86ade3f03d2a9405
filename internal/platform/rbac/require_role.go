package rbac

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/platform/httpx"
	"eduplatform/backend/internal/server/middleware"
)

// UnauthorizedBody is the 401 response for requests without a usable session token.
type UnauthorizedBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}

// RequireRole wraps next so it runs only when d allows the request Principal for
// required. No Principal yields 401; an insufficient role yields 403. A decider
// error is treated as a deny.
func RequireRole(d Decider, required domain.Role, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := middleware.PrincipalFrom(r.Context())
			decision, err := d.Decide(r.Context(), p, required)
			if err != nil {
				log.Error().Err(err).Str("required", string(required)).Msg("Authorization engine failed")
				decision = Deny
			}
			if decision == Allow {
				next.ServeHTTP(w, r)
				return
			}
			if p == nil {
				httpx.WriteJSON(w, log, http.StatusUnauthorized, UnauthorizedBody{
					Error:     "Unauthorized",
					Message:   "Access denied. Please provide a valid authentication token.",
					Status:    http.StatusUnauthorized,
					Path:      r.URL.RequestURI(),
					Timestamp: time.Now().UnixMilli(),
				})
				return
			}
			log.Debug().Str("account_id", p.AccountID()).Str("role", string(p.Role())).
				Str("required", string(required)).Msg("Insufficient role")
			httpx.WriteError(w, log, http.StatusForbidden, "Access denied")
		})
	}
}
