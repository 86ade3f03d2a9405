// Package telemetry defines the domain events the backend emits to its
// observability pipeline and the plumbing to emit them off the request path.
package telemetry

import (
	"context"
	"time"
)

// Event is one structured domain event, e.g. an enrollment outcome or a login failure.
type Event struct {
	Type      string
	AccountID string
	Resource  string
	Outcome   string
	// Metadata is an optional JSON document carried as the record body.
	Metadata  []byte
	CreatedAt time.Time
}

// EventEmitter emits events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
