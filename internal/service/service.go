// Package service runs readiness sessions: it starts them, supersedes the
// previous one, races participant responses against the deadline and
// publishes the result.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xiaot623/readyup/internal/config"
	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/policy"
)

// platformCallTimeout bounds each call into the chat platform.
const platformCallTimeout = 5 * time.Second

var (
	// ErrPolicyDenied is returned when the start policy blocks a command.
	ErrPolicyDenied = errors.New("start command denied by policy")
	// ErrNoActiveSession is returned when no session is open.
	ErrNoActiveSession = errors.New("no active session")
)

// Platform is the chat platform the controller talks through.
type Platform interface {
	// PostPrompt publishes the prompt with its interactive controls.
	PostPrompt(ctx context.Context, text string, controls []domain.Control) (domain.PromptHandle, error)
	// EditPrompt replaces the prompt text in place.
	EditPrompt(ctx context.Context, h domain.PromptHandle, text string) error
	// ClosePrompt replaces the prompt text and removes its controls.
	ClosePrompt(ctx context.Context, h domain.PromptHandle, text string) error
	// AwaitNextResponse blocks until a control of the prompt is activated or
	// ctx is done.
	AwaitNextResponse(ctx context.Context, h domain.PromptHandle) (domain.Response, error)
	// SendEphemeralReply answers a single responder privately.
	SendEphemeralReply(ctx context.Context, r domain.Response, text string) error
	// PostFinalMessage publishes the outcome separately from the prompt.
	PostFinalMessage(ctx context.Context, text string) error
}

// Recorder stores session history.
type Recorder interface {
	CreateReadyUp(ctx context.Context, record *domain.Record) error
	AppendResponse(ctx context.Context, response *domain.ResponseRecord) error
	CompleteReadyUp(ctx context.Context, sessionID string, status domain.SessionStatus, finalMessage string, endedAt time.Time) (bool, error)
}

// Policy checks start commands.
type Policy interface {
	Evaluate(ctx context.Context, input policy.StartInput) (policy.Decision, error)
}

// Controller owns the single active session.
type Controller struct {
	platform Platform
	recorder Recorder
	policy   Policy
	config   *config.Config
	now      func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	active *Run
}

// New creates a controller. recorder and policyEngine may be nil.
func New(platform Platform, recorder Recorder, cfg *config.Config, policyEngine Policy) *Controller {
	if cfg == nil {
		cfg = &config.Config{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		platform:   platform,
		recorder:   recorder,
		policy:     policyEngine,
		config:     cfg,
		now:        time.Now,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Active returns a snapshot of the open session.
func (c *Controller) Active() (domain.SessionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return domain.SessionView{}, ErrNoActiveSession
	}
	return c.active.View(), nil
}

// Shutdown closes the open session without publishing a result and stops
// all session loops.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	prev := c.active
	if prev != nil {
		c.supersede(prev)
		c.active = nil
	}
	c.mu.Unlock()
	c.baseCancel()

	if prev == nil {
		return nil
	}
	select {
	case <-prev.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.baseCtx, platformCallTimeout)
}
