package middleware

import (
	"context"
	"fmt"
	"net/http"

	"eduplatform/backend/internal/audit"
	auditdomain "eduplatform/backend/internal/audit/domain"
)

func withClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFrom returns the IP stored by ClientIP, or "". It satisfies audit.IPExtractor.
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// Audit records one audit entry per request to the route registered under
// pattern, after the handler has run. Success is any status below 400; 401 and
// 403 are recorded as denied.
func Audit(logger audit.AuditLogger, pattern string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			ar := audit.ParseRoute(r.Method, pattern)
			status := rec.code()
			outcome := auditdomain.OutcomeSuccess
			switch {
			case status == http.StatusUnauthorized, status == http.StatusForbidden:
				outcome = auditdomain.OutcomeDenied
			case status >= 400:
				outcome = auditdomain.OutcomeFailure
			}
			p, _ := PrincipalFrom(r.Context())
			resource := ar.Resource
			if id := r.PathValue("id"); id != "" {
				resource += "/" + id
			}
			logger.LogEvent(r.Context(), audit.Entry{
				AccountID: p.AccountID(),
				Action:    ar.Action,
				Resource:  resource,
				Outcome:   outcome,
				Metadata:  fmt.Sprintf(`{"status":%d}`, status),
			})
		})
	}
}
