package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/platform/httpx"
)

const checkTimeout = 2 * time.Second

// Serving states reported by /health/ready.
const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

// Pinger reports database connectivity. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker reports whether the authorization engine can evaluate decisions.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Response is the body of both health endpoints.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Server serves liveness and readiness checks for load balancers and orchestrators.
type Server struct {
	db     Pinger
	policy PolicyChecker
	log    zerolog.Logger
}

// NewServer returns a health Server. Nil dependencies are skipped.
func NewServer(db Pinger, policy PolicyChecker, log zerolog.Logger) *Server {
	return &Server{db: db, policy: policy, log: log}
}

// Routes lists the health endpoints. Neither requires authentication.
func (s *Server) Routes() []httpx.Route {
	return []httpx.Route{
		{Pattern: "GET /health", Handler: s.live},
		{Pattern: "GET /health/ready", Handler: s.ready},
	}
}

func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, s.log, http.StatusOK, Response{Status: StatusServing})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	resp := s.HealthCheck(r.Context())
	code := http.StatusOK
	if resp.Status != StatusServing {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, s.log, code, resp)
}

// HealthCheck runs every configured check. A failing check never returns an
// error; it marks the response NOT_SERVING.
func (s *Server) HealthCheck(ctx context.Context) Response {
	resp := Response{Status: StatusServing, Checks: map[string]string{}}
	run := func(name string, fn func(context.Context) error) {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := fn(cctx); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			resp.Status = StatusNotServing
			resp.Checks[name] = "down"
			return
		}
		resp.Checks[name] = "up"
	}
	if s.db != nil {
		run("database", s.db.Ping)
	}
	if s.policy != nil {
		run("policy", s.policy.HealthCheck)
	}
	return resp
}
