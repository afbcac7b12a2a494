package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/protocol"
)

func frameBytes(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestRenderPrompt(t *testing.T) {
	data := frameBytes(t, protocol.PromptMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypePromptPosted},
		PromptID:    "p1",
		Text:        "are you ready?",
		Controls:    domain.Controls("d"),
	})

	out := render(protocol.TypePromptPosted, data)

	assert.Equal(t, "--- posted ---\nare you ready?\n[Ready] [Not Ready]  (r = ready, n = not ready)", out)
}

func TestRenderOtherFrames(t *testing.T) {
	final := frameBytes(t, protocol.ChatMessage{Text: "everyone is ready!"})
	assert.Equal(t, ">>> everyone is ready!", render(protocol.TypeMessage, final))

	eph := frameBytes(t, protocol.EphemeralMessage{Text: "Status: **A** is ready"})
	assert.Equal(t, "(only you) Status: **A** is ready", render(protocol.TypeEphemeral, eph))

	errFrame := frameBytes(t, protocol.ErrorMessage{Code: "prompt_closed", Message: "prompt is closed"})
	assert.Equal(t, "error: prompt_closed - prompt is closed", render(protocol.TypeError, errFrame))

	assert.Empty(t, render(protocol.TypeHelloAck, []byte(`{}`)))
}

func TestTrackFollowsCurrentPrompt(t *testing.T) {
	c := &Client{}
	posted := frameBytes(t, protocol.PromptMessage{PromptID: "p1", Text: "a", Controls: domain.Controls("d")})
	edited := frameBytes(t, protocol.PromptMessage{PromptID: "p1", Text: "b"})
	closed := frameBytes(t, protocol.PromptMessage{PromptID: "p1", Text: "b (Closed)"})

	c.track(protocol.TypePromptPosted, posted)
	c.track(protocol.TypePromptEdited, edited)
	require.NotNil(t, c.prompt)
	assert.Equal(t, "b", c.prompt.Text)
	assert.Len(t, c.prompt.Controls, 2)

	c.track(protocol.TypePromptClosed, closed)
	assert.Nil(t, c.prompt)
	assert.EqualError(t, c.Answer(domain.ActionMarkReady), "no open prompt")
}

func TestControlForAndParseAnswer(t *testing.T) {
	controls := domain.Controls("d")

	token, ok := controlFor(controls, domain.ActionMarkNotReady)
	require.True(t, ok)
	assert.Equal(t, domain.ActionMarkNotReady, domain.Classify(token))

	_, ok = controlFor(nil, domain.ActionMarkReady)
	assert.False(t, ok)

	action, ok := parseAnswer("R")
	assert.True(t, ok)
	assert.Equal(t, domain.ActionMarkReady, action)
	action, ok = parseAnswer("n")
	assert.True(t, ok)
	assert.Equal(t, domain.ActionMarkNotReady, action)
	_, ok = parseAnswer("maybe")
	assert.False(t, ok)
}
