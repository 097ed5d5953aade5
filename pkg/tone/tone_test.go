package tone

import "testing"

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()
	tests := []struct {
		text string
		want Tone
	}{
		{"", Neutral},
		{"What's the weather in Paris?", Neutral},
		{"Thanks, that was great!", Positive},
		{"This is so frustrating.", Frustrated},
		{"I don't understand what you said", Confused},
		{"I need help right now", Urgent},
		{"Thank you, but I need it immediately", Urgent},
		{"I'm losing my patience", Neutral},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestKeywordClassifierWholeWords(t *testing.T) {
	c := NewKeywordClassifier()
	// "lost" must only match as a whole word.
	if got := c.Classify("I like lostalgia"); got != Neutral {
		t.Fatalf("Classify matched a partial word: %q", got)
	}
}

func TestEnergy(t *testing.T) {
	tests := []struct {
		text string
		want Level
	}{
		{"", Low},
		{"okay", Low},
		{"tell me a story about dragons", Normal},
		{"wow!! that is amazing", High},
		{"STOP THAT NOW please", High},
	}
	for _, tt := range tests {
		if got := Energy(tt.text); got != tt.want {
			t.Errorf("Energy(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifierFunc(t *testing.T) {
	var c Classifier = ClassifierFunc(func(string) Tone { return Urgent })
	if c.Classify("anything") != Urgent {
		t.Fatal("ClassifierFunc did not delegate")
	}
}
