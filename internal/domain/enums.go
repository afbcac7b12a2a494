// Package domain defines the readiness session model and its transition rules.
package domain

// Action is the semantic meaning of a control activation.
type Action int

const (
	// ActionUnrecognized is the zero value so unknown input degrades to a no-op.
	ActionUnrecognized Action = iota
	ActionMarkReady
	ActionMarkNotReady
)

func (a Action) String() string {
	switch a {
	case ActionMarkReady:
		return "ready"
	case ActionMarkNotReady:
		return "not_ready"
	default:
		return "unrecognized"
	}
}

// OriginKind tells where a participant response came from.
type OriginKind string

const (
	OriginCommand   OriginKind = "command"
	OriginComponent OriginKind = "component"
)

// SessionStatus represents the lifecycle state of a session. A session that
// met a threshold is SUCCEEDED or FAILED; one that hit its deadline first is
// TIMED_OUT.
type SessionStatus string

const (
	SessionStatusOpen       SessionStatus = "OPEN"
	SessionStatusSucceeded  SessionStatus = "SUCCEEDED"
	SessionStatusFailed     SessionStatus = "FAILED"
	SessionStatusTimedOut   SessionStatus = "TIMED_OUT"
	SessionStatusSuperseded SessionStatus = "SUPERSEDED"
)

// Terminal reports whether the status ends a session.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusOpen && s != ""
}
