package domain

import "time"

// Outcomes recorded on audit entries.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// AuditLog represents an audit event. AccountID is empty for anonymous callers.
type AuditLog struct {
	ID        string
	AccountID string
	Action    string
	Resource  string
	Outcome   string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
