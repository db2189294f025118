package trace

import "time"

// Session represents one browser WebSocket session.
type Session struct {
	ID         string     `json:"id"`
	Metadata   string     `json:"metadata"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	EventCount int        `json:"event_count,omitempty"`
}

// Event kinds recorded per session.
const (
	EventToolCall   = "tool_call"
	EventUIAction   = "ui_action"
	EventTransition = "transition"
)

// Event is one recorded session event: a vendor tool-call payload, a UI
// action, or a view transition.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
