// Package server assembles the HTTP handler: the middleware chain and the
// per-route authorization and audit wrappers.
package server

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/audit"
	"eduplatform/backend/internal/platform/httpx"
	"eduplatform/backend/internal/platform/rbac"
	"eduplatform/backend/internal/server/middleware"
	"eduplatform/backend/internal/telemetry"
)

// RouteProvider is implemented by every HTTP handler package.
type RouteProvider interface {
	Routes() []httpx.Route
}

// Deps holds the cross-cutting dependencies of the router.
type Deps struct {
	Authenticator *middleware.Authenticator
	Decider       rbac.Decider
	// Audit records audited routes. If nil, no route is audited.
	Audit audit.AuditLogger
	// Emitter receives one http_request event per request. Optional.
	Emitter     telemetry.EventEmitter
	CORSOrigins []string
	Log         zerolog.Logger
}

// NewRouter registers every provider's routes and wraps the mux as
// cors → request log → client IP → telemetry → otelhttp → authentication.
func NewRouter(deps Deps, providers ...RouteProvider) http.Handler {
	decider := deps.Decider
	if decider == nil {
		decider = rbac.NewPolicy(nil)
	}
	mux := http.NewServeMux()
	for _, p := range providers {
		for _, rt := range p.Routes() {
			mux.Handle(rt.Pattern, wrapRoute(rt, decider, deps.Audit, deps.Log))
		}
	}

	var h http.Handler = mux
	if deps.Authenticator != nil {
		h = deps.Authenticator.Middleware(h)
	}
	h = otelhttp.NewHandler(h, "eduplatform.http")
	h = middleware.Telemetry(deps.Emitter, deps.Log, "/health", "/health/ready")(h)
	h = middleware.ClientIP(h)
	h = middleware.RequestLogger(deps.Log)(h)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(h)
}

// wrapRoute applies the role check, then auditing around it so denied
// requests are recorded too.
func wrapRoute(rt httpx.Route, decider rbac.Decider, auditor audit.AuditLogger, log zerolog.Logger) http.Handler {
	var h http.Handler = rt.Handler
	if rt.Role != domain.RoleNone {
		h = rbac.RequireRole(decider, rt.Role, log)(h)
	}
	if rt.Audit {
		h = middleware.Audit(auditor, rt.Pattern)(h)
	}
	return h
}
