package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini-tts"
	DefaultOpenAIVoice = "alloy"

	// maxAudioBytes bounds a single clip read from the API.
	maxAudioBytes = 8 << 20
)

var _ Synthesizer = (*OpenAI)(nil)

// OpenAI synthesizes MP3 audio with the OpenAI speech endpoint.
type OpenAI struct {
	Client *openai.Client
	Model  string
	Voice  string
	// Instructions steer delivery on models that support it.
	Instructions string
}

// Synthesize implements [Synthesizer].
func (o *OpenAI) Synthesize(ctx context.Context, text string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, &SynthesisError{Provider: "openai", Err: errors.New("empty text")}
	}
	model, voice := o.Model, o.Voice
	if model == "" {
		model = DefaultOpenAIModel
	}
	if voice == "" {
		voice = DefaultOpenAIVoice
	}
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if o.Instructions != "" {
		params.Instructions = openai.String(o.Instructions)
	}

	resp, err := o.Client.Audio.Speech.New(ctx, params)
	if err != nil {
		return Audio{}, &SynthesisError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return Audio{}, &SynthesisError{Provider: "openai", Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(data) == 0 {
		return Audio{}, &SynthesisError{Provider: "openai", Err: errors.New("empty audio")}
	}
	if len(data) > maxAudioBytes {
		return Audio{}, &SynthesisError{Provider: "openai", Err: errors.New("audio too large")}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = "audio/mpeg"
	}
	return Audio{Data: data, ContentType: ct}, nil
}
