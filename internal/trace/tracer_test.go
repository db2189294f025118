package trace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elevenshopping/gateway/internal/trace"
)

// Tracing is optional; every entry point must be safe on a nil tracer.
func TestNilTracer_IsNoop(t *testing.T) {
	var tr *trace.Tracer
	assert.NotPanics(t, func() {
		tr.Record(trace.EventToolCall, `{"x":1}`)
		tr.Record(trace.EventUIAction, "")
		tr.Close()
	})
}

func TestNewTracer_NilStore(t *testing.T) {
	assert.Nil(t, trace.NewTracer(nil, "s-1", "{}"))
}
