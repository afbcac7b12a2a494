package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/readyup/internal/config"
	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/protocol"
	"github.com/xiaot623/readyup/internal/service"
)

type sent struct {
	participantID string
	msg           interface{}
}

type fakeTransport struct {
	mu     sync.Mutex
	frames []sent
}

func (f *fakeTransport) BroadcastJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, sent{msg: v})
	return nil
}

func (f *fakeTransport) SendJSONToParticipant(participantID string, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, sent{participantID: participantID, msg: v})
	return nil
}

func (f *fakeTransport) snapshot() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sent, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeTransport) chatMessages() []string {
	var out []string
	for _, s := range f.snapshot() {
		if m, ok := s.msg.(protocol.ChatMessage); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func response(id, token string) domain.Response {
	return domain.Response{
		Participant: domain.NewParticipant(id, ""),
		Token:       token,
		Origin:      domain.Origin{Kind: domain.OriginComponent, InteractionID: "i-" + id},
	}
}

func TestPromptLifecycleFrames(t *testing.T) {
	transport := &fakeTransport{}
	ch := NewChannel(transport)
	ctx := context.Background()

	h, err := ch.PostPrompt(ctx, "hello", domain.Controls("d"))
	require.NoError(t, err)
	require.NoError(t, ch.EditPrompt(ctx, h, "edited"))
	require.NoError(t, ch.ClosePrompt(ctx, h, "closed"))

	frames := transport.snapshot()
	require.Len(t, frames, 3)

	posted := frames[0].msg.(protocol.PromptMessage)
	assert.Equal(t, protocol.TypePromptPosted, posted.Type)
	assert.Equal(t, string(h), posted.PromptID)
	assert.Len(t, posted.Controls, 2)

	edited := frames[1].msg.(protocol.PromptMessage)
	assert.Equal(t, protocol.TypePromptEdited, edited.Type)
	assert.Equal(t, "edited", edited.Text)

	closed := frames[2].msg.(protocol.PromptMessage)
	assert.Equal(t, protocol.TypePromptClosed, closed.Type)
	assert.Equal(t, "closed", closed.Text)
	assert.Empty(t, closed.Controls)

	assert.ErrorIs(t, ch.EditPrompt(ctx, h, "late"), ErrPromptClosed)
	assert.ErrorIs(t, ch.ClosePrompt(ctx, h, "again"), ErrPromptClosed)
	assert.ErrorIs(t, ch.EditPrompt(ctx, "missing", "x"), ErrUnknownPrompt)
}

func TestDispatchRoutesToWaiter(t *testing.T) {
	ch := NewChannel(&fakeTransport{})
	h, err := ch.PostPrompt(context.Background(), "p", nil)
	require.NoError(t, err)

	require.NoError(t, ch.Dispatch(h, response("u1", "ready$d")))

	resp, err := ch.AwaitNextResponse(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantID("u1"), resp.Participant.ID)
	assert.Equal(t, "ready$d", resp.Token)
}

func TestDispatchErrors(t *testing.T) {
	ch := NewChannel(&fakeTransport{})
	ctx := context.Background()

	assert.ErrorIs(t, ch.Dispatch("missing", response("u1", "ready$d")), ErrUnknownPrompt)

	h, err := ch.PostPrompt(ctx, "p", nil)
	require.NoError(t, err)
	for i := 0; i < inboxSize; i++ {
		require.NoError(t, ch.Dispatch(h, response("u1", "ready$d")))
	}
	assert.ErrorIs(t, ch.Dispatch(h, response("u1", "ready$d")), ErrInboxFull)

	require.NoError(t, ch.ClosePrompt(ctx, h, "done"))
	assert.ErrorIs(t, ch.Dispatch(h, response("u1", "ready$d")), ErrPromptClosed)
}

func TestAwaitReleasedByCloseAndContext(t *testing.T) {
	ch := NewChannel(&fakeTransport{})
	h, err := ch.PostPrompt(context.Background(), "p", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ch.AwaitNextResponse(ctx, h)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	errc := make(chan error, 1)
	go func() {
		_, err := ch.AwaitNextResponse(context.Background(), h)
		errc <- err
	}()
	require.NoError(t, ch.ClosePrompt(context.Background(), h, "closed"))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrPromptClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by close")
	}
}

func TestAwaitPrefersExpiredContextOverQueuedResponse(t *testing.T) {
	ch := NewChannel(&fakeTransport{})
	h, err := ch.PostPrompt(context.Background(), "p", nil)
	require.NoError(t, err)
	require.NoError(t, ch.Dispatch(h, response("u1", "ready$d")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 20; i++ {
		_, err = ch.AwaitNextResponse(ctx, h)
		require.ErrorIs(t, err, context.Canceled)
	}

	resp, err := ch.AwaitNextResponse(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantID("u1"), resp.Participant.ID)
}

func TestClosedPromptsAreForgottenEventually(t *testing.T) {
	ch := NewChannel(&fakeTransport{})
	ctx := context.Background()

	first, err := ch.PostPrompt(ctx, "first", nil)
	require.NoError(t, err)
	require.NoError(t, ch.ClosePrompt(ctx, first, "closed"))

	for i := 0; i < maxClosedPrompts; i++ {
		h, err := ch.PostPrompt(ctx, "p", nil)
		require.NoError(t, err)
		require.NoError(t, ch.ClosePrompt(ctx, h, "closed"))
	}

	assert.ErrorIs(t, ch.Dispatch(first, response("u1", "ready$d")), ErrUnknownPrompt)
}

func TestOpenPromptsExcludesClosed(t *testing.T) {
	ch := NewChannel(&fakeTransport{})
	ctx := context.Background()

	closed, err := ch.PostPrompt(ctx, "old", nil)
	require.NoError(t, err)
	require.NoError(t, ch.ClosePrompt(ctx, closed, "old closed"))
	open, err := ch.PostPrompt(ctx, "new", domain.Controls("d"))
	require.NoError(t, err)

	prompts := ch.OpenPrompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, string(open), prompts[0].PromptID)
	assert.Equal(t, "new", prompts[0].Text)
}

func TestEphemeralReplyTargetsResponder(t *testing.T) {
	transport := &fakeTransport{}
	ch := NewChannel(transport)

	require.NoError(t, ch.SendEphemeralReply(context.Background(), response("u7", "ready$d"), "Status: 1 ready"))

	frames := transport.snapshot()
	require.Len(t, frames, 1)
	assert.Equal(t, "u7", frames[0].participantID)
	msg := frames[0].msg.(protocol.EphemeralMessage)
	assert.Equal(t, "i-u7", msg.InteractionID)
	assert.Equal(t, "Status: 1 ready", msg.Text)
}

func TestControllerOverChannel(t *testing.T) {
	transport := &fakeTransport{}
	ch := NewChannel(transport)
	ctrl := service.New(ch, nil, &config.Config{
		DefaultTimeout:           time.Minute,
		DefaultReadyThreshold:    3,
		DefaultNotReadyThreshold: 1,
	}, nil)
	t.Cleanup(func() { ctrl.Shutdown(context.Background()) })

	run, err := ctrl.Start(context.Background(), domain.SessionParams{
		EventLabel:     "raid",
		ReadyThreshold: 2,
	})
	require.NoError(t, err)

	prompts := ch.OpenPrompts()
	require.Len(t, prompts, 1)
	h := domain.PromptHandle(prompts[0].PromptID)
	ready := prompts[0].Controls[0].Token

	require.NoError(t, ch.Dispatch(h, response("u1", ready)))
	require.NoError(t, ch.Dispatch(h, response("u2", ready)))

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}

	status, final := run.Outcome()
	assert.Equal(t, domain.SessionStatusSucceeded, status)
	assert.Equal(t, []string{final}, transport.chatMessages())
	assert.Equal(t, "**<@u1>** and **<@u2>**\neveryone is ready!", final)
	assert.Empty(t, ch.OpenPrompts())
	assert.ErrorIs(t, ch.Dispatch(h, response("u3", ready)), ErrPromptClosed)
}
