// Package tone tags caller utterances with coarse phrasing hints.
//
// Tags only steer how the assistant phrases a reply. Nothing in the call
// flow branches on them.
package tone

import (
	"strings"
	"unicode"
)

// Tone is the emotional register detected in an utterance.
type Tone string

const (
	Neutral    Tone = "neutral"
	Positive   Tone = "positive"
	Frustrated Tone = "frustrated"
	Confused   Tone = "confused"
	Urgent     Tone = "urgent"
)

// Level is the energy detected in an utterance.
type Level string

const (
	Low    Level = "low"
	Normal Level = "normal"
	High   Level = "high"
)

// Classifier assigns a Tone to caller text.
type Classifier interface {
	Classify(text string) Tone
}

// ClassifierFunc adapts a function to [Classifier].
type ClassifierFunc func(text string) Tone

// Classify calls f(text).
func (f ClassifierFunc) Classify(text string) Tone { return f(text) }

var _ Classifier = (*KeywordClassifier)(nil)

// KeywordClassifier matches words and short phrases against per-tone lists.
// Tones are checked in order; the first list with a hit wins.
type KeywordClassifier struct {
	Rules []Rule
}

// Rule is a keyword list for one tone.
type Rule struct {
	Tone     Tone
	Keywords []string
}

// DefaultRules is the rule set used by [NewKeywordClassifier].
var DefaultRules = []Rule{
	{Urgent, []string{"emergency", "urgent", "right now", "immediately", "asap", "hurry", "quickly"}},
	{Frustrated, []string{"annoying", "annoyed", "frustrated", "frustrating", "ridiculous", "useless", "not working", "again and again", "angry", "terrible"}},
	{Confused, []string{"confused", "don't understand", "do not understand", "what do you mean", "not sure", "lost", "huh"}},
	{Positive, []string{"thanks", "thank you", "great", "awesome", "perfect", "love", "wonderful", "excellent", "nice"}},
}

// NewKeywordClassifier returns a classifier using [DefaultRules].
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{Rules: DefaultRules}
}

// Classify implements [Classifier].
func (c *KeywordClassifier) Classify(text string) Tone {
	padded := " " + normalize(text) + " "
	for _, r := range c.Rules {
		for _, kw := range r.Keywords {
			if strings.Contains(padded, " "+kw+" ") {
				return r.Tone
			}
		}
	}
	return Neutral
}

// Energy estimates how animated an utterance is from exclamation marks,
// shouted words and length.
func Energy(text string) Level {
	words := strings.Fields(text)
	if len(words) == 0 {
		return Low
	}
	shouted := 0
	for _, w := range words {
		if isShouted(w) {
			shouted++
		}
	}
	switch {
	case strings.Count(text, "!") >= 2, shouted*3 >= len(words) && shouted > 0:
		return High
	case len(words) <= 2 && !strings.Contains(text, "!"):
		return Low
	default:
		return Normal
	}
}

func isShouted(w string) bool {
	letters := 0
	for _, r := range w {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

// normalize lowercases text and replaces punctuation (except apostrophes)
// with spaces.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			b.WriteRune(r)
		case r == '’':
			b.WriteRune('\'')
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
