// Package tts turns reply text into speech audio.
package tts

import (
	"context"
	"fmt"
)

// Audio is a synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer converts text to audio. Failures are *SynthesisError.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// SynthesizeFunc adapts a function to [Synthesizer].
type SynthesizeFunc func(ctx context.Context, text string) (Audio, error)

// Synthesize calls f(ctx, text).
func (f SynthesizeFunc) Synthesize(ctx context.Context, text string) (Audio, error) {
	return f(ctx, text)
}

// SynthesisError reports a failed synthesis.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("tts: %s: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
