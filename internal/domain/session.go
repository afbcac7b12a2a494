package domain

import (
	"fmt"
	"math"
	"time"
)

// Defaults applied when a session is created without explicit values.
const (
	DefaultReadyThreshold    = 3
	DefaultNotReadyThreshold = 1
	DefaultTimeout           = 900 * time.Second
)

// maxTimeoutSeconds is the largest whole-second timeout a time.Duration holds.
const maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// TimeoutFromSeconds converts a start command timeout. Negative values and
// values that do not fit in a time.Duration are rejected instead of wrapping.
func TimeoutFromSeconds(seconds int) (time.Duration, error) {
	if seconds < 0 || int64(seconds) > maxTimeoutSeconds {
		return 0, fmt.Errorf("timeout %ds: %w", seconds, ErrInvalidTimeout)
	}
	return time.Duration(seconds) * time.Second, nil
}

// SessionParams are the organizer-supplied settings of a session.
type SessionParams struct {
	EventLabel        string        `json:"event_label,omitempty"`
	TimeWindowLabel   string        `json:"time_window_label,omitempty"`
	ReadyThreshold    int           `json:"ready_threshold,omitempty"`
	NotReadyThreshold int           `json:"not_ready_threshold,omitempty"`
	Timeout           time.Duration `json:"timeout,omitempty"`
	Organizer         Participant   `json:"organizer,omitempty"`
	OrganizerReady    bool          `json:"organizer_ready,omitempty"` // counts the organizer as ready
}

// Session is one readiness poll. It is owned by a single goroutine once open.
type Session struct {
	ID                string
	EventLabel        string
	TimeWindowLabel   string
	ReadyThreshold    int
	NotReadyThreshold int
	Timeout           time.Duration
	Organizer         Participant
	StartedAt         time.Time
	Status            SessionStatus
	ActiveHandle      PromptHandle

	ready    participantSet
	notReady participantSet
}

// NewSession validates params and returns an open session. Zero thresholds and
// timeouts take the package defaults.
func NewSession(id string, params SessionParams, now time.Time) (*Session, error) {
	if params.ReadyThreshold == 0 {
		params.ReadyThreshold = DefaultReadyThreshold
	}
	if params.NotReadyThreshold == 0 {
		params.NotReadyThreshold = DefaultNotReadyThreshold
	}
	if params.Timeout == 0 {
		params.Timeout = DefaultTimeout
	}
	if params.ReadyThreshold < 1 {
		return nil, fmt.Errorf("ready threshold %d: %w", params.ReadyThreshold, ErrInvalidThreshold)
	}
	if params.NotReadyThreshold < 1 {
		return nil, fmt.Errorf("not ready threshold %d: %w", params.NotReadyThreshold, ErrInvalidThreshold)
	}
	if params.Timeout < 0 {
		return nil, fmt.Errorf("timeout %s: %w", params.Timeout, ErrInvalidTimeout)
	}

	s := &Session{
		ID:                id,
		EventLabel:        params.EventLabel,
		TimeWindowLabel:   params.TimeWindowLabel,
		ReadyThreshold:    params.ReadyThreshold,
		NotReadyThreshold: params.NotReadyThreshold,
		Timeout:           params.Timeout,
		Organizer:         params.Organizer,
		StartedAt:         now,
		Status:            SessionStatusOpen,
		ready:             newParticipantSet(),
		notReady:          newParticipantSet(),
	}
	if params.OrganizerReady && params.Organizer.ID != "" {
		s.ApplyResponse(params.Organizer, ActionMarkReady, Origin{Kind: OriginCommand})
	}
	return s, nil
}

// ApplyResponse moves the participant into the set named by action. The insert
// into the target happens before the removal from the other set.
func (s *Session) ApplyResponse(p Participant, action Action, origin Origin) *Session {
	switch action {
	case ActionMarkReady:
		s.ready.put(p, origin)
		s.notReady.remove(p.ID)
	case ActionMarkNotReady:
		s.notReady.put(p, origin)
		s.ready.remove(p.ID)
	}
	return s
}

// IsSuccessful reports whether enough participants are ready.
func (s *Session) IsSuccessful() bool {
	return s.ready.len() >= s.ReadyThreshold
}

// IsFailed reports whether enough participants are not ready.
func (s *Session) IsFailed() bool {
	return s.notReady.len() >= s.NotReadyThreshold
}

// IsFinished reports whether either threshold is met.
func (s *Session) IsFinished() bool {
	return s.IsSuccessful() || s.IsFailed()
}

// Deadline is the absolute time the session stops waiting for responses.
func (s *Session) Deadline() time.Time {
	return s.StartedAt.Add(s.Timeout)
}

// FinalStatus derives the terminal status. Success is checked before failure.
func (s *Session) FinalStatus() SessionStatus {
	switch {
	case s.IsSuccessful():
		return SessionStatusSucceeded
	case s.IsFailed():
		return SessionStatusFailed
	default:
		return SessionStatusTimedOut
	}
}

// ReadyParticipants returns ready participants in arrival order.
func (s *Session) ReadyParticipants() []Participant {
	return s.ready.participants()
}

// NotReadyParticipants returns not-ready participants in arrival order.
func (s *Session) NotReadyParticipants() []Participant {
	return s.notReady.participants()
}

// IsReady reports whether the participant is in the ready set.
func (s *Session) IsReady(id ParticipantID) bool {
	return s.ready.has(id)
}

// IsNotReady reports whether the participant is in the not-ready set.
func (s *Session) IsNotReady(id ParticipantID) bool {
	return s.notReady.has(id)
}

// ReadyOrigin returns the last response handle recorded for a ready participant.
func (s *Session) ReadyOrigin(id ParticipantID) (Origin, bool) {
	e, ok := s.ready.get(id)
	return e.origin, ok
}

// SessionView is a read-only snapshot of a session for external callers.
type SessionView struct {
	SessionID         string        `json:"session_id"`
	EventLabel        string        `json:"event_label,omitempty"`
	TimeWindowLabel   string        `json:"time_window_label,omitempty"`
	ReadyThreshold    int           `json:"ready_threshold"`
	NotReadyThreshold int           `json:"not_ready_threshold"`
	TimeoutMs         int64         `json:"timeout_ms"`
	Status            SessionStatus `json:"status"`
	PromptID          PromptHandle  `json:"prompt_id,omitempty"`
	Ready             []Participant `json:"ready"`
	NotReady          []Participant `json:"not_ready"`
	StartedAt         int64         `json:"started_at"`
	DeadlineAt        int64         `json:"deadline_at"`
}

// View snapshots the session.
func (s *Session) View() SessionView {
	return SessionView{
		SessionID:         s.ID,
		EventLabel:        s.EventLabel,
		TimeWindowLabel:   s.TimeWindowLabel,
		ReadyThreshold:    s.ReadyThreshold,
		NotReadyThreshold: s.NotReadyThreshold,
		TimeoutMs:         s.Timeout.Milliseconds(),
		Status:            s.Status,
		PromptID:          s.ActiveHandle,
		Ready:             s.ReadyParticipants(),
		NotReady:          s.NotReadyParticipants(),
		StartedAt:         s.StartedAt.UnixMilli(),
		DeadlineAt:        s.Deadline().UnixMilli(),
	}
}
