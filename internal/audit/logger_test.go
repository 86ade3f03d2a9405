package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/audit/domain"
	"eduplatform/backend/internal/telemetry"
)

type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByAccount(context.Context, string, int, int) ([]*domain.AuditLog, error) {
	return nil, nil
}

type captureEmitter struct {
	events chan *telemetry.Event
}

func (c *captureEmitter) Emit(_ context.Context, e *telemetry.Event) error {
	c.events <- e
	return nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, zerolog.Nop(), WithIPExtractor(func(context.Context) string { return "192.168.1.1" }))

	l.LogEvent(context.Background(), Entry{
		AccountID: "acc-1", Action: "enroll", Resource: "course/c-1", Metadata: `{"k":"v"}`,
	})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.AccountID != "acc-1" || e.Action != "enroll" || e.Resource != "course/c-1" {
		t.Errorf("entry = %+v", e)
	}
	if e.Outcome != domain.OutcomeSuccess {
		t.Errorf("outcome = %q, want default success", e.Outcome)
	}
	if e.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want 192.168.1.1", e.IP)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt should be set")
	}
}

func TestLogger_LogEvent_UnknownIP(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, zerolog.Nop()).LogEvent(context.Background(), Entry{Action: "login"})
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want unknown", repo.entries[0].IP)
	}
}

func TestLogger_LogEvent_RepoErrorIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, zerolog.Nop()).LogEvent(context.Background(), Entry{Action: "login"})
	if len(repo.entries) != 0 {
		t.Errorf("entries = %d, want 0", len(repo.entries))
	}
}

func TestLogger_LogEvent_Emits(t *testing.T) {
	em := &captureEmitter{events: make(chan *telemetry.Event, 1)}
	l := NewLogger(nil, zerolog.Nop(), WithEmitter(em))
	l.LogEvent(context.Background(), Entry{AccountID: "acc-1", Action: "enroll", Outcome: domain.OutcomeFailure})

	select {
	case ev := <-em.events:
		if ev.Type != "audit.enroll" || ev.AccountID != "acc-1" || ev.Outcome != domain.OutcomeFailure {
			t.Errorf("event = %+v", ev)
		}
		if ev.Metadata != nil {
			t.Errorf("metadata = %q, want nil", ev.Metadata)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}
}
