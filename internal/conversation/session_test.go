package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRoutesConversationalFrames(t *testing.T) {
	var messages, debug [][]byte
	s := New(Events{
		OnMessage: func(raw []byte) { messages = append(messages, raw) },
		OnDebug:   func(raw []byte) { debug = append(debug, raw) },
	})

	s.dispatch([]byte(`{"type":"agent_response","agent_response_event":{"agent_response":"hi"}}`))
	s.dispatch([]byte(`{"type":"user_transcript","user_transcription_event":{"user_transcript":"hello"}}`))
	s.dispatch([]byte(`{"type":"client_tool_call","mcp_tool_call":{"result":[]}}`))
	s.dispatch([]byte(`{"type":"ping"}`))
	s.dispatch([]byte(`not json`))

	assert.Len(t, messages, 2)
	assert.Len(t, debug, 3)
}

func TestDispatchWithNilCallbacks(t *testing.T) {
	s := New(Events{})
	assert.NotPanics(t, func() {
		s.dispatch([]byte(`{"type":"agent_response"}`))
		s.dispatch([]byte(`{"type":"ping"}`))
	})
}

func TestSendUserMessageRequiresConnection(t *testing.T) {
	s := New(Events{})
	err := s.SendUserMessage(context.Background(), "hello")
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StatusDisconnected, s.Status())
}

func TestNewSessionHasID(t *testing.T) {
	a := New(Events{})
	b := New(Events{})
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
