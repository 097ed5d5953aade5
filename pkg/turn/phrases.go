package turn

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Phrases are the fixed lines the controller speaks. Callers never hear
// backend error text; every failure maps to one of these.
type Phrases struct {
	Greeting  string
	Repeat    string
	Goodbye   string
	Silence   string
	Transient string
	Fatal     string
}

// DefaultPhrases are used for any empty field in Config.Phrases.
var DefaultPhrases = Phrases{
	Greeting:  "Hey there! It's great to hear from you. What's on your mind?",
	Repeat:    "I didn't quite catch that. Could you say that again?",
	Goodbye:   "Thanks for calling. Goodbye!",
	Silence:   "I haven't heard anything, so I'll let you go. Goodbye!",
	Transient: "I'm having some trouble. Could you please try again?",
	Fatal:     "I'm having trouble understanding. Could you please repeat that?",
}

func (p Phrases) withDefaults() Phrases {
	fill := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	fill(&p.Greeting, DefaultPhrases.Greeting)
	fill(&p.Repeat, DefaultPhrases.Repeat)
	fill(&p.Goodbye, DefaultPhrases.Goodbye)
	fill(&p.Silence, DefaultPhrases.Silence)
	fill(&p.Transient, DefaultPhrases.Transient)
	fill(&p.Fatal, DefaultPhrases.Fatal)
	return p
}

// DefaultFarewells end the call when they are the whole utterance.
var DefaultFarewells = []string{
	"no",
	"nope",
	"no thanks",
	"no thank you",
	"no that's all",
	"no that's it",
	"bye",
	"bye bye",
	"goodbye",
	"good bye",
	"that's all",
	"that is all",
	"that's it",
	"nothing else",
	"i'm done",
	"hang up",
}

// ParseConfidence parses a transport confidence value. Anything that is not
// a finite number yields 0 so the utterance is re-prompted. Results are
// clamped to [0, 1].
func ParseConfidence(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return clamp01(f)
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// normalizeUtterance lowercases text, turns punctuation into spaces (curly
// apostrophes become straight ones) and collapses whitespace.
func normalizeUtterance(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '’' || r == '\'':
			b.WriteRune('\'')
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
