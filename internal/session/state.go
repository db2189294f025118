// Package session implements the per-session view-state machine and routes
// UI actions from rendered resources to their side effects.
package session

import (
	"encoding/json"
	"time"
)

// ViewState is the top-level screen the user currently sees. The machine is
// cyclic: every session ends back at ViewInitial.
type ViewState string

const (
	ViewInitial   ViewState = "initial"
	ViewListening ViewState = "listening"
	ViewResults   ViewState = "results"
)

// Log entry types.
const (
	LogMessage  = "message"
	LogDebug    = "debug"
	LogUIAction = "ui_action"
)

// LogEntry is one append-only debug log record.
type LogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// Ring buffer caps for the session debug logs.
const (
	toolCallLogCap = 20
	uiResultLogCap = 10
)
