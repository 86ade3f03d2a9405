package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eduplatform/backend/internal/audit/domain"
	auditrepo "eduplatform/backend/internal/audit/repository"
	"eduplatform/backend/internal/telemetry"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Entry is one auditable event as reported by a caller.
type Entry struct {
	AccountID string
	Action    string
	Resource  string
	Outcome   string
	Metadata  string
}

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are
// logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, e Entry)
}

// Logger persists entries to the audit repository and mirrors them to the
// telemetry event pipeline.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	emitter     telemetry.EventEmitter
	log         zerolog.Logger
	now         func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithEmitter mirrors every entry to emitter asynchronously.
func WithEmitter(emitter telemetry.EventEmitter) Option {
	return func(l *Logger) { l.emitter = emitter }
}

// WithIPExtractor sets how the client IP is read; without it IP is "unknown".
func WithIPExtractor(fn IPExtractor) Option {
	return func(l *Logger) { l.ipExtractor = fn }
}

// NewLogger returns a Logger persisting to repo. repo may be nil, in which case
// entries are only emitted.
func NewLogger(repo auditrepo.Repository, log zerolog.Logger, opts ...Option) *Logger {
	l := &Logger{repo: repo, log: log, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, e Entry) {
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	if e.Outcome == "" {
		e.Outcome = domain.OutcomeSuccess
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		AccountID: e.AccountID,
		Action:    e.Action,
		Resource:  e.Resource,
		Outcome:   e.Outcome,
		IP:        ip,
		Metadata:  e.Metadata,
		CreatedAt: l.now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.log.Error().Err(err).Str("action", e.Action).Str("resource", e.Resource).Msg("audit: failed to log event")
		}
	}
	if l.emitter != nil {
		var meta []byte
		if e.Metadata != "" {
			meta = []byte(e.Metadata)
		}
		telemetry.EmitAsync(l.emitter, l.log, &telemetry.Event{
			Type:      "audit." + e.Action,
			AccountID: e.AccountID,
			Resource:  e.Resource,
			Outcome:   e.Outcome,
			Metadata:  meta,
			CreatedAt: entry.CreatedAt,
		})
	}
}
