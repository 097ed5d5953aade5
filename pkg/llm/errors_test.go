package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	transient := &TransientError{Op: "x", Err: errors.New("busy")}
	fatal := &FatalError{Op: "x", Err: errors.New("bad")}

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantFatal     bool
	}{
		{"deadline", context.DeadlineExceeded, true, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true, false},
		{"poll timeout", ErrPollTimeout, true, false},
		{"net", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, true, false},
		{"plain", errors.New("boom"), false, true},
		{"already transient", transient, true, false},
		{"already fatal", fatal, false, true},
		{"cancelled", context.Canceled, false, false},
		{"superseded", ErrSuperseded, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("op", tt.err)
			if IsTransient(got) != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v", IsTransient(got), tt.wantTransient)
			}
			if IsFatal(got) != tt.wantFatal {
				t.Errorf("IsFatal = %v, want %v", IsFatal(got), tt.wantFatal)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error does not wrap the original")
			}
		})
	}

	if Classify("op", nil) != nil {
		t.Fatal("Classify(nil) != nil")
	}
}

func TestSystemPrompt(t *testing.T) {
	if got := systemPrompt("base", nil); got != "base" {
		t.Fatalf("no tags: %q", got)
	}
	if got := systemPrompt("base", map[string]string{"tone": "neutral", "energy": "normal"}); got != "base" {
		t.Fatalf("neutral tags: %q", got)
	}
	got := systemPrompt("base", map[string]string{"tone": "frustrated", "energy": "high"})
	want := "base\n\nThe caller sounds frustrated. Match their energy but stay calm."
	if got != want {
		t.Fatalf("systemPrompt = %q, want %q", got, want)
	}
}
