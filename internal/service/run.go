package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/xiaot623/readyup/internal/domain"
	"github.com/xiaot623/readyup/internal/policy"
	"github.com/xiaot623/readyup/internal/projector"
)

// Run is one open session and the goroutine that drives it.
type Run struct {
	mu          sync.Mutex
	session     *domain.Session
	displayText string
	outcome     domain.SessionStatus
	final       string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// SessionID returns the session identifier.
func (r *Run) SessionID() string {
	return r.session.ID
}

// Done is closed when the session loop has exited.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the terminal status and the published result message.
// The message is empty for superseded sessions.
func (r *Run) Outcome() (domain.SessionStatus, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.final
}

// View snapshots the session.
func (r *Run) View() domain.SessionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.View()
}

// Start opens a new session, closing the previous one first if it is still
// open. The session runs until a threshold is met or its deadline passes.
func (c *Controller) Start(ctx context.Context, params domain.SessionParams) (*Run, error) {
	params = c.withDefaults(params)
	if err := c.checkPolicy(ctx, params); err != nil {
		return nil, err
	}

	session, err := domain.NewSession(uuid.New().String(), params, c.now())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.active; prev != nil {
		c.supersede(prev)
		c.active = nil
	}

	text := projector.PromptText(session)
	postCtx, cancel := c.callContext()
	handle, err := c.platform.PostPrompt(postCtx, text, domain.Controls(uuid.New().String()))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to post prompt: %w", err)
	}
	session.ActiveHandle = handle

	runCtx, runCancel := context.WithDeadline(c.baseCtx, session.Deadline())
	r := &Run{
		session:     session,
		displayText: text,
		ctx:         runCtx,
		cancel:      runCancel,
		done:        make(chan struct{}),
	}
	c.active = r

	if c.recorder != nil {
		if err := c.recorder.CreateReadyUp(ctx, domain.NewRecord(session)); err != nil {
			log.Printf("WARN: failed to record session %s: %v", session.ID, err)
		}
	}

	log.Printf("Session started: session_id=%s prompt_id=%s ready_threshold=%d not_ready_threshold=%d timeout=%s",
		session.ID, handle, session.ReadyThreshold, session.NotReadyThreshold, session.Timeout)

	go c.loop(r)
	return r, nil
}

func (c *Controller) withDefaults(params domain.SessionParams) domain.SessionParams {
	if params.Timeout == 0 {
		params.Timeout = c.config.DefaultTimeout
	}
	if params.ReadyThreshold == 0 {
		params.ReadyThreshold = c.config.DefaultReadyThreshold
	}
	if params.NotReadyThreshold == 0 {
		params.NotReadyThreshold = c.config.DefaultNotReadyThreshold
	}
	return params
}

func (c *Controller) checkPolicy(ctx context.Context, params domain.SessionParams) error {
	if c.policy == nil {
		return nil
	}
	decision, err := c.policy.Evaluate(ctx, policy.StartInput{
		OrganizerID:       string(params.Organizer.ID),
		ReadyThreshold:    params.ReadyThreshold,
		NotReadyThreshold: params.NotReadyThreshold,
		TimeoutSeconds:    int64(params.Timeout.Seconds()),
		MaxTimeoutSeconds: int64(c.config.MaxTimeout.Seconds()),
		MaxThreshold:      c.config.MaxThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to evaluate start policy: %w", err)
	}
	if !decision.Allowed() {
		if len(decision.Reasons) == 0 {
			return ErrPolicyDenied
		}
		return fmt.Errorf("%w: %s", ErrPolicyDenied, strings.Join(decision.Reasons, "; "))
	}
	return nil
}

// loop waits for responses until the session finishes, times out or is
// superseded. It is the only goroutine that mutates the session.
func (c *Controller) loop(r *Run) {
	defer close(r.done)
	defer r.cancel()

	handle := r.session.ActiveHandle
	for !r.finished() {
		resp, err := c.platform.AwaitNextResponse(r.ctx, handle)
		if err != nil {
			if r.ctx.Err() == nil && !r.finished() {
				log.Printf("WARN: waiting for responses on session %s failed: %v", r.session.ID, err)
			}
			break
		}
		if r.ctx.Err() != nil {
			log.Printf("WARN: dropping response from %s received after session %s ended", resp.Participant.ID, r.session.ID)
			break
		}
		c.handleResponse(r, resp)
	}

	c.finish(r)
}

func (r *Run) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Status != domain.SessionStatusOpen || r.session.IsFinished()
}

func (c *Controller) handleResponse(r *Run, resp domain.Response) {
	action := domain.Classify(resp.Token)
	c.recordResponse(r.session.ID, resp, action)

	callCtx, cancel := c.callContext()
	defer cancel()

	if action == domain.ActionUnrecognized {
		log.Printf("WARN: unrecognized token %q from %s on session %s", resp.Token, resp.Participant.ID, r.session.ID)
		if err := c.platform.SendEphemeralReply(callCtx, resp, projector.DiagnosticReply); err != nil {
			log.Printf("WARN: failed to send diagnostic reply: %v", err)
		}
		return
	}

	r.mu.Lock()
	if r.session.Status != domain.SessionStatusOpen {
		r.mu.Unlock()
		return
	}
	r.session.ApplyResponse(resp.Participant, action, resp.Origin)
	text := projector.PromptText(r.session)
	reply := projector.ResponderReply(r.session)
	handle := r.session.ActiveHandle
	r.displayText = text
	r.mu.Unlock()

	if err := c.platform.EditPrompt(callCtx, handle, text); err != nil {
		log.Printf("WARN: failed to update prompt %s: %v", handle, err)
	}
	if err := c.platform.SendEphemeralReply(callCtx, resp, reply); err != nil {
		log.Printf("WARN: failed to reply to %s: %v", resp.Participant.ID, err)
	}
}

// supersede closes a still-open session early. The caller holds c.mu.
func (c *Controller) supersede(r *Run) {
	r.mu.Lock()
	if r.session.Status != domain.SessionStatusOpen {
		r.mu.Unlock()
		return
	}
	r.session.Status = domain.SessionStatusSuperseded
	r.outcome = domain.SessionStatusSuperseded
	handle := r.session.ActiveHandle
	text := r.displayText
	r.session.ActiveHandle = ""
	r.mu.Unlock()

	c.closePrompt(handle, text)
	r.cancel()
	c.completeRecord(r.session.ID, domain.SessionStatusSuperseded, "")

	log.Printf("Session superseded: session_id=%s", r.session.ID)
}

// finish closes the prompt and publishes the result, unless the session was
// superseded while it was finishing. The outcome is decided under c.mu; the
// platform calls happen after it is released.
func (c *Controller) finish(r *Run) {
	c.mu.Lock()
	r.mu.Lock()
	if c.active != r || r.session.Status != domain.SessionStatusOpen {
		r.mu.Unlock()
		c.mu.Unlock()
		return
	}
	status := r.session.FinalStatus()
	final := projector.FinalResultMessage(r.session)
	r.session.Status = status
	r.outcome = status
	r.final = final
	handle := r.session.ActiveHandle
	text := r.displayText
	r.session.ActiveHandle = ""
	r.mu.Unlock()

	c.active = nil
	c.mu.Unlock()

	// The session is terminal; platform calls run without holding c.mu.
	c.closePrompt(handle, text)

	postCtx, cancel := c.callContext()
	defer cancel()
	if err := c.platform.PostFinalMessage(postCtx, final); err != nil {
		log.Printf("WARN: failed to post result for session %s: %v", r.session.ID, err)
	}
	c.completeRecord(r.session.ID, status, final)

	log.Printf("Session finished: session_id=%s status=%s", r.session.ID, status)
}

func (c *Controller) closePrompt(handle domain.PromptHandle, text string) {
	if handle == "" {
		return
	}
	ctx, cancel := c.callContext()
	defer cancel()
	if err := c.platform.ClosePrompt(ctx, handle, projector.ClosedText(text)); err != nil {
		log.Printf("WARN: failed to close prompt %s: %v", handle, err)
	}
}

func (c *Controller) recordResponse(sessionID string, resp domain.Response, action domain.Action) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := c.callContext()
	defer cancel()
	if err := c.recorder.AppendResponse(ctx, domain.NewResponseRecord(sessionID, resp, action, c.now())); err != nil {
		log.Printf("WARN: failed to record response on session %s: %v", sessionID, err)
	}
}

func (c *Controller) completeRecord(sessionID string, status domain.SessionStatus, final string) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := c.callContext()
	defer cancel()
	if _, err := c.recorder.CompleteReadyUp(ctx, sessionID, status, final, c.now()); err != nil {
		log.Printf("WARN: failed to record outcome of session %s: %v", sessionID, err)
	}
}
