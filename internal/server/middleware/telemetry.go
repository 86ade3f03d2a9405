package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/telemetry"
)

// httpRequestMetadata is the JSON body of http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry emits an http_request event after each request. Emission is async
// and best-effort. Paths in skip (e.g. health checks) are not emitted. A nil
// emitter makes the middleware a passthrough.
func Telemetry(emitter telemetry.EventEmitter, log zerolog.Logger, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next http.Handler) http.Handler {
		if emitter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if skipped[r.URL.Path] {
				return
			}
			meta, _ := json.Marshal(httpRequestMetadata{
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     rec.code(),
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   ClientIPFrom(r.Context()),
			})
			p, _ := PrincipalFrom(r.Context())
			telemetry.EmitAsync(emitter, log, &telemetry.Event{
				Type:      "http_request",
				AccountID: p.AccountID(),
				Resource:  r.URL.Path,
				Metadata:  meta,
				CreatedAt: start.UTC(),
			})
		})
	}
}
