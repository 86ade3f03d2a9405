package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type chanEmitter struct {
	mu     sync.Mutex
	ctxErr []error
	events chan *Event
	err    error
}

func newChanEmitter(n int) *chanEmitter {
	return &chanEmitter{events: make(chan *Event, n)}
}

func (m *chanEmitter) Emit(ctx context.Context, event *Event) error {
	m.mu.Lock()
	m.ctxErr = append(m.ctxErr, ctx.Err())
	m.mu.Unlock()
	m.events <- event
	return m.err
}

func (m *chanEmitter) wait(t *testing.T, n int) []*Event {
	t.Helper()
	var got []*Event
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case e := <-m.events:
			got = append(got, e)
		case <-deadline:
			t.Fatalf("received %d events, want %d", len(got), n)
		}
	}
	return got
}

func TestEmitAsync_NilArgs(t *testing.T) {
	EmitAsync(nil, zerolog.Nop(), &Event{Type: "x"})
	m := newChanEmitter(1)
	EmitAsync(m, zerolog.Nop(), nil)
	select {
	case e := <-m.events:
		t.Fatalf("unexpected emit %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEmitAsync_Emits(t *testing.T) {
	m := newChanEmitter(1)
	EmitAsync(m, zerolog.Nop(), &Event{Type: "enrollment", AccountID: "acc-1", Outcome: "success"})
	got := m.wait(t, 1)
	if got[0].Type != "enrollment" || got[0].AccountID != "acc-1" || got[0].Outcome != "success" {
		t.Errorf("event = %+v", got[0])
	}
}

func TestEmitAsync_UsesLiveContext(t *testing.T) {
	m := newChanEmitter(1)
	EmitAsync(m, zerolog.Nop(), &Event{Type: "x"})
	m.wait(t, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctxErr[0] != nil {
		t.Errorf("emit ctx err = %v, want nil", m.ctxErr[0])
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	m := newChanEmitter(5)
	m.err = errors.New("collector down")
	for i := 0; i < 5; i++ {
		EmitAsync(m, zerolog.Nop(), &Event{Type: "x"})
	}
	m.wait(t, 5)
}
