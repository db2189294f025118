package trace

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxPayloadLen = 2000

type traceMsg struct {
	kind  string // "event", "end"
	event Event
}

// Tracer writes trace data asynchronously via a buffered channel.
// All methods are nil-safe (no-op on nil receiver). Record and Close may
// race: session callbacks fire from the conversation read goroutine while
// the session goroutine tears down.
type Tracer struct {
	store     *Store
	sessionID string

	mu     sync.Mutex
	closed bool
	ch     chan traceMsg
	done   chan struct{}
}

// NewTracer creates a tracer bound to a session and records the session
// row. Returns nil when store is nil. Must call Close when done.
func NewTracer(store *Store, sessionID, metadata string) *Tracer {
	if store == nil {
		return nil
	}
	if err := store.CreateSession(sessionID, metadata); err != nil {
		slog.Warn("trace session create failed", "session_id", sessionID, "error", err)
		return nil
	}
	t := &Tracer{
		store:     store,
		sessionID: sessionID,
		ch:        make(chan traceMsg, 64),
		done:      make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
}

func (t *Tracer) handle(m traceMsg) {
	var err error
	switch m.kind {
	case "event":
		err = t.store.AppendEvent(m.event)
	case "end":
		err = t.store.EndSession(t.sessionID)
	default:
		return
	}
	if err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

// Record appends one session event. After Close it is a no-op.
func (t *Tracer) Record(kind, payload string) {
	if t == nil {
		return
	}
	ev := Event{
		ID:        uuid.NewString(),
		SessionID: t.sessionID,
		Kind:      kind,
		Payload:   truncate(payload, maxPayloadLen),
		CreatedAt: time.Now().UTC(),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.ch <- traceMsg{kind: "event", event: ev}
}

// Close marks the session ended, drains pending writes, and shuts down the
// background goroutine. Safe to call more than once and concurrently with
// Record.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		t.ch <- traceMsg{kind: "end"}
		close(t.ch)
	}
	t.mu.Unlock()
	<-t.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
