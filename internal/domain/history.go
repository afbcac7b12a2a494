package domain

import "time"

// Record is the stored history of one session.
type Record struct {
	SessionID         string           `json:"session_id"`
	EventLabel        string           `json:"event_label,omitempty"`
	TimeWindowLabel   string           `json:"time_window_label,omitempty"`
	OrganizerID       string           `json:"organizer_id,omitempty"`
	ReadyThreshold    int              `json:"ready_threshold"`
	NotReadyThreshold int              `json:"not_ready_threshold"`
	TimeoutMs         int64            `json:"timeout_ms"`
	Status            SessionStatus    `json:"status"`
	FinalMessage      string           `json:"final_message,omitempty"`
	StartedAt         time.Time        `json:"started_at"`
	EndedAt           *time.Time       `json:"ended_at,omitempty"`
	Responses         []ResponseRecord `json:"responses,omitempty"`
}

// NewRecord captures an open session for the history store.
func NewRecord(s *Session) *Record {
	return &Record{
		SessionID:         s.ID,
		EventLabel:        s.EventLabel,
		TimeWindowLabel:   s.TimeWindowLabel,
		OrganizerID:       string(s.Organizer.ID),
		ReadyThreshold:    s.ReadyThreshold,
		NotReadyThreshold: s.NotReadyThreshold,
		TimeoutMs:         s.Timeout.Milliseconds(),
		Status:            s.Status,
		StartedAt:         s.StartedAt,
	}
}

// ResponseRecord is one logged participant response.
type ResponseRecord struct {
	ID            int64         `json:"id"`
	SessionID     string        `json:"session_id"`
	ParticipantID ParticipantID `json:"participant_id"`
	DisplayName   string        `json:"display_name"`
	Action        string        `json:"action"`
	Token         string        `json:"token"`
	OriginKind    OriginKind    `json:"origin_kind"`
	InteractionID string        `json:"interaction_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewResponseRecord captures a classified response for the history store.
func NewResponseRecord(sessionID string, r Response, action Action, at time.Time) *ResponseRecord {
	return &ResponseRecord{
		SessionID:     sessionID,
		ParticipantID: r.Participant.ID,
		DisplayName:   r.Participant.DisplayName,
		Action:        action.String(),
		Token:         r.Token,
		OriginKind:    r.Origin.Kind,
		InteractionID: r.Origin.InteractionID,
		CreatedAt:     at,
	}
}
