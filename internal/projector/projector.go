// Package projector renders readiness session state as chat text.
// Every function here is pure.
package projector

import (
	"strings"

	"github.com/xiaot623/readyup/internal/domain"
)

const (
	// DiagnosticReply is sent to a responder whose activation could not be classified.
	DiagnosticReply = "something went wrong"

	closedSuffix = " (Closed)"
)

// CallToAction is the question shown at the top of the prompt.
func CallToAction(s *domain.Session) string {
	var b strings.Builder
	b.WriteString("are you ready")
	if !isBlank(s.EventLabel) {
		b.WriteString(" for ")
		b.WriteString(s.EventLabel)
	}
	if !isBlank(s.TimeWindowLabel) {
		b.WriteString(" ")
		b.WriteString(s.TimeWindowLabel)
	}
	b.WriteString("?")
	return b.String()
}

// JoinNames bolds each name and joins them in Oxford style.
func JoinNames(names []string) string {
	bold := make([]string, len(names))
	for i, n := range names {
		bold[i] = "**" + n + "**"
	}
	switch len(bold) {
	case 0:
		return ""
	case 1:
		return bold[0]
	case 2:
		return bold[0] + " and " + bold[1]
	default:
		return strings.Join(bold[:len(bold)-1], ", ") + ", and " + bold[len(bold)-1]
	}
}

// StatusTally lists who is ready and who is not. Empty when nobody responded.
func StatusTally(s *domain.Session) string {
	var lines []string
	if ready := s.ReadyParticipants(); len(ready) > 0 {
		lines = append(lines, JoinNames(displayNames(ready))+" "+verb(len(ready))+" ready")
	}
	if notReady := s.NotReadyParticipants(); len(notReady) > 0 {
		lines = append(lines, JoinNames(displayNames(notReady))+" "+verb(len(notReady))+" not ready")
	}
	return strings.Join(lines, "\n")
}

// FinalResultMessage is published once the session resolves or times out.
func FinalResultMessage(s *domain.Session) string {
	mentions := JoinNames(mentionTokens(s.ReadyParticipants()))

	var outcome string
	switch {
	case s.IsSuccessful():
		outcome = "everyone is ready!"
	case s.IsFailed():
		notReady := s.NotReadyParticipants()
		outcome = JoinNames(displayNames(notReady)) + " " + verb(len(notReady)) + " not ready"
	default:
		outcome = "not enough members readied up"
	}

	if mentions == "" {
		return outcome
	}
	return mentions + "\n" + outcome
}

// PromptText is the live prompt body: the call to action followed by the tally.
func PromptText(s *domain.Session) string {
	text := CallToAction(s)
	if tally := StatusTally(s); tally != "" {
		text += "\n\n" + tally
	}
	return text
}

// ResponderReply acknowledges a responder privately.
func ResponderReply(s *domain.Session) string {
	return "Status: " + StatusTally(s)
}

// ClosedText marks displayed prompt text as closed.
func ClosedText(text string) string {
	return text + closedSuffix
}

func displayNames(ps []domain.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.DisplayName
	}
	return out
}

func mentionTokens(ps []domain.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Mention
	}
	return out
}

func verb(n int) string {
	if n > 1 {
		return "are"
	}
	return "is"
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
