package llm

import (
	"strings"

	"github.com/haivivi/voicebridge/pkg/conversation"
)

// DefaultPreamble sets the speaking style for phone calls.
const DefaultPreamble = `You are a friendly, upbeat voice assistant talking to someone on the phone.
Answer in one to three short sentences and stay under fifty words.
Speak the way people talk: no lists, headings, markdown, emoji or links.
Write numbers and symbols the way they are said aloud.
If the caller's request is unclear, ask one short clarifying question.`

// systemPrompt appends phrasing hints derived from session tags to the
// preamble. Unknown or neutral tags are omitted.
func systemPrompt(preamble string, tags map[string]string) string {
	var hints []string
	if t := tags[conversation.ContextTone]; t != "" && t != "neutral" {
		hints = append(hints, "The caller sounds "+t+".")
	}
	switch tags[conversation.ContextEnergy] {
	case "high":
		hints = append(hints, "Match their energy but stay calm.")
	case "low":
		hints = append(hints, "Keep a gentle, relaxed pace.")
	}
	if len(hints) == 0 {
		return preamble
	}
	return preamble + "\n\n" + strings.Join(hints, " ")
}
