package domain

// ParticipantID is the stable identifier of a responder.
type ParticipantID string

// Participant is someone who may respond to a prompt.
type Participant struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"display_name"`
	Mention     string        `json:"mention"`
}

// NewParticipant builds a participant, deriving the mention token from the ID
// and falling back to the ID when no display name is known.
func NewParticipant(id, displayName string) Participant {
	if displayName == "" {
		displayName = id
	}
	return Participant{
		ID:          ParticipantID(id),
		DisplayName: displayName,
		Mention:     "<@" + id + ">",
	}
}

// Origin identifies the interaction a response was received through.
type Origin struct {
	Kind          OriginKind `json:"kind"`
	InteractionID string     `json:"interaction_id,omitempty"`
}

// Response is one control activation by a participant.
type Response struct {
	Participant Participant `json:"participant"`
	Token       string      `json:"token"`
	Origin      Origin      `json:"origin"`
}

// PromptHandle references a posted prompt. The zero value means no prompt.
type PromptHandle string

// Control is an interactive button attached to a prompt.
type Control struct {
	Label string `json:"label"`
	Token string `json:"custom_id"`
	Style string `json:"style"`
}

// Control styles
const (
	ControlStyleSuccess = "success"
	ControlStyleDanger  = "danger"
)
