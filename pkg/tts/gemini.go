package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-2.5-flash-preview-tts"
	DefaultGeminiVoice = "Kore"
)

var _ Synthesizer = (*Gemini)(nil)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Gemini synthesizes speech with a Gemini TTS model. The raw PCM the model
// returns is wrapped in a WAV container.
type Gemini struct {
	model    string
	voice    string
	generate generateFunc
}

// NewGemini creates a Gemini synthesizer. Empty model or voice select the
// defaults.
func NewGemini(client *genai.Client, model, voice string) *Gemini {
	return newGemini(client.Models.GenerateContent, model, voice)
}

func newGemini(fn generateFunc, model, voice string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	if voice == "" {
		voice = DefaultGeminiVoice
	}
	return &Gemini{model: model, voice: voice, generate: fn}
}

// Synthesize implements [Synthesizer].
func (g *Gemini) Synthesize(ctx context.Context, text string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, &SynthesisError{Provider: "gemini", Err: errors.New("empty text")}
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}
	resp, err := g.generate(ctx, g.model, genai.Text(text), cfg)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return Audio{}, &SynthesisError{Provider: "gemini", Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Audio{}, &SynthesisError{Provider: "gemini", Err: errors.New("no candidates")}
	}

	var (
		pcm  bytes.Buffer
		mime string
	)
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || len(p.InlineData.Data) == 0 {
			continue
		}
		if mime == "" {
			mime = p.InlineData.MIMEType
		}
		pcm.Write(p.InlineData.Data)
	}
	if pcm.Len() == 0 {
		return Audio{}, &SynthesisError{Provider: "gemini", Err: errors.New("no audio in response")}
	}

	if strings.HasPrefix(mime, "audio/L16") || strings.HasPrefix(mime, "audio/pcm") || mime == "" {
		rate := pcmRate(mime)
		return Audio{Data: wav(pcm.Bytes(), rate, 1, 16), ContentType: "audio/wav"}, nil
	}
	return Audio{Data: pcm.Bytes(), ContentType: mime}, nil
}

// pcmRate reads the rate parameter from a MIME type such as
// "audio/L16;codec=pcm;rate=24000".
func pcmRate(mime string) int {
	for _, part := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k == "rate" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return 24000
}

func (g *Gemini) String() string {
	return fmt.Sprintf("gemini(%s/%s)", g.model, g.voice)
}
