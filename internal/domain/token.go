package domain

import "strings"

// TokenSeparator splits a token into its kind and disambiguator.
const TokenSeparator = "$"

const (
	tokenKindReady    = "ready"
	tokenKindNotReady = "not_ready"
)

// EncodeToken builds the activation token for a control. The disambiguator only
// keeps tokens unique per posting.
func EncodeToken(action Action, disambiguator string) string {
	kind := "invalid"
	switch action {
	case ActionMarkReady:
		kind = tokenKindReady
	case ActionMarkNotReady:
		kind = tokenKindNotReady
	}
	return kind + TokenSeparator + disambiguator
}

// Classify maps an activation token to an action. The disambiguator is ignored;
// a token without a separator is malformed.
func Classify(token string) Action {
	kind, _, found := strings.Cut(token, TokenSeparator)
	if !found {
		return ActionUnrecognized
	}
	switch kind {
	case tokenKindReady:
		return ActionMarkReady
	case tokenKindNotReady:
		return ActionMarkNotReady
	default:
		return ActionUnrecognized
	}
}

// Controls returns the Ready / Not Ready buttons for one posting.
func Controls(disambiguator string) []Control {
	return []Control{
		{Label: "Ready", Token: EncodeToken(ActionMarkReady, disambiguator), Style: ControlStyleSuccess},
		{Label: "Not Ready", Token: EncodeToken(ActionMarkNotReady, disambiguator), Style: ControlStyleDanger},
	}
}
