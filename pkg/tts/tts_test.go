package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

func TestOpenAISynthesize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake-mp3"))
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithAPIKey("k"), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	s := &OpenAI{Client: &client, Voice: "nova"}

	audio, err := s.Synthesize(context.Background(), "Hello there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "ID3fake-mp3" || audio.ContentType != "audio/mpeg" {
		t.Fatalf("audio = %q %q", audio.Data, audio.ContentType)
	}
	if body["input"] != "Hello there" || body["voice"] != "nova" || body["model"] != DefaultOpenAIModel || body["response_format"] != "mp3" {
		t.Fatalf("request body = %v", body)
	}
}

func TestOpenAISynthesizeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"down"}}`)
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithAPIKey("k"), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	_, err := (&OpenAI{Client: &client}).Synthesize(context.Background(), "hi")
	var se *SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SynthesisError", err)
	}
	if se.Provider != "openai" {
		t.Fatalf("Provider = %q", se.Provider)
	}
}

func TestEmptyTextRejected(t *testing.T) {
	g := newGemini(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		t.Fatal("generate called for empty text")
		return nil, nil
	}, "", "")
	var se *SynthesisError
	if _, err := g.Synthesize(context.Background(), "  "); !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SynthesisError", err)
	}
	if _, err := (&OpenAI{}).Synthesize(context.Background(), ""); !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SynthesisError", err)
	}
}

func TestGeminiSynthesizeWrapsPCM(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	var gotModel, gotVoice string
	g := newGemini(func(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel = model
		gotVoice = cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{InlineData: &genai.Blob{MIMEType: "audio/L16;codec=pcm;rate=16000", Data: pcm[:4]}},
					{InlineData: &genai.Blob{MIMEType: "audio/L16;codec=pcm;rate=16000", Data: pcm[4:]}},
				}},
			}},
		}, nil
	}, "", "Puck")

	audio, err := g.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotModel != DefaultGeminiModel || gotVoice != "Puck" {
		t.Fatalf("model/voice = %q/%q", gotModel, gotVoice)
	}
	if audio.ContentType != "audio/wav" {
		t.Fatalf("ContentType = %q", audio.ContentType)
	}
	if len(audio.Data) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(audio.Data), 44+len(pcm))
	}
	if !bytes.HasPrefix(audio.Data, []byte("RIFF")) || string(audio.Data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE header")
	}
	if rate := binary.LittleEndian.Uint32(audio.Data[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if !bytes.Equal(audio.Data[44:], pcm) {
		t.Fatalf("payload = %v, want %v", audio.Data[44:], pcm)
	}
}

func TestGeminiNoAudio(t *testing.T) {
	g := newGemini(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "no audio"}}}}}}, nil
	}, "", "")
	var se *SynthesisError
	if _, err := g.Synthesize(context.Background(), "hello"); !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SynthesisError", err)
	}
}

func TestPCMRate(t *testing.T) {
	tests := map[string]int{
		"audio/L16;codec=pcm;rate=24000": 24000,
		"audio/L16; rate=8000":           8000,
		"audio/L16":                      24000,
		"audio/L16;rate=bogus":           24000,
	}
	for mime, want := range tests {
		if got := pcmRate(mime); got != want {
			t.Errorf("pcmRate(%q) = %d, want %d", mime, got, want)
		}
	}
}
