// Package render turns raw model replies into something a caller can hear.
//
// A [Renderer] cleans the text for speech, caps its length and, when a
// synthesizer and an audio store are configured, publishes an audio clip.
// Rendering never fails: without a clip the transport speaks the text with
// its own voice.
package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/haivivi/voicebridge/pkg/audiostore"
	"github.com/haivivi/voicebridge/pkg/tts"
)

const (
	DefaultMaxWords   = 50
	DefaultTTSTimeout = 8 * time.Second
)

// Audio references a published clip.
type Audio struct {
	URL         string
	ContentType string
	TTL         time.Duration
}

// Reply is voice-ready output. Audio is nil when the text should be spoken
// by the transport.
type Reply struct {
	Text  string
	Audio *Audio
	// Degraded is set when synthesis or upload was attempted and failed.
	Degraded bool
}

// Config configures a Renderer. Synthesizer and Store are optional; audio
// is produced only when both are set.
type Config struct {
	MaxWords    int
	Synthesizer tts.Synthesizer
	Store       audiostore.Store
	TTSTimeout  time.Duration
	Logger      *slog.Logger
}

// Renderer is safe for concurrent use.
type Renderer struct {
	maxWords int
	synth    tts.Synthesizer
	store    audiostore.Store
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a Renderer.
func New(cfg Config) *Renderer {
	r := &Renderer{
		maxWords: cfg.MaxWords,
		synth:    cfg.Synthesizer,
		store:    cfg.Store,
		timeout:  cfg.TTSTimeout,
		log:      cfg.Logger,
	}
	if r.maxWords <= 0 {
		r.maxWords = DefaultMaxWords
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTTSTimeout
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// AudioEnabled reports whether replies may carry audio.
func (r *Renderer) AudioEnabled() bool {
	return r.synth != nil && r.store != nil
}

// Text returns the cleaned, length-capped form of raw without synthesis.
func (r *Renderer) Text(raw string) string {
	return LimitWords(Speakable(raw), r.maxWords)
}

// Render cleans raw and tries to attach audio.
func (r *Renderer) Render(ctx context.Context, raw string) Reply {
	reply := Reply{Text: r.Text(raw)}
	if reply.Text == "" || !r.AudioEnabled() {
		return reply
	}

	audio, ok := r.synthesize(ctx, reply.Text)
	if !ok {
		reply.Degraded = true
		return reply
	}
	reply.Audio = audio
	return reply
}

// synthesize reports ok=false on any synthesis or storage failure.
func (r *Renderer) synthesize(ctx context.Context, text string) (*Audio, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	clip, err := r.synth.Synthesize(ctx, text)
	if err != nil {
		r.log.Warn("render: synthesis failed, falling back to text", "error", err)
		return nil, false
	}
	if len(clip.Data) == 0 {
		r.log.Warn("render: synthesizer returned no audio, falling back to text")
		return nil, false
	}
	obj, err := r.store.Put(ctx, clip.Data, clip.ContentType)
	if err != nil {
		r.log.Warn("render: audio upload failed, falling back to text", "error", err)
		return nil, false
	}
	r.log.Debug("render: audio ready", "key", obj.Key, "bytes", len(clip.Data), "took", time.Since(start))
	return &Audio{URL: obj.URL, ContentType: clip.ContentType, TTL: obj.TTL}, true
}
