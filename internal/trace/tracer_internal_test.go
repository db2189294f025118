package trace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// newDrainingTracer builds a tracer whose drain loop discards messages, so
// the Record/Close channel handoff can be exercised without a database.
func newDrainingTracer() *Tracer {
	tr := &Tracer{
		sessionID: "s-1",
		ch:        make(chan traceMsg, 4),
		done:      make(chan struct{}),
	}
	go func() {
		defer close(tr.done)
		for range tr.ch {
		}
	}()
	return tr
}

// The conversation read goroutine can fire a disconnect transition while
// the session goroutine is already closing the tracer. A late Record must
// not hit the closed channel.
func TestRecordAfterClose_IsNoop(t *testing.T) {
	tr := newDrainingTracer()
	tr.Close()
	assert.NotPanics(t, func() {
		tr.Record(EventTransition, "disconnected")
		tr.Close()
	})
}

func TestRecordConcurrentWithClose(t *testing.T) {
	for range 50 {
		tr := newDrainingTracer()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Close()
		}()
		go func() {
			defer wg.Done()
			for range 10 {
				tr.Record(EventToolCall, `{"x":1}`)
			}
		}()
		wg.Wait()
	}
}
