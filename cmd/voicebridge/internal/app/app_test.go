package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haivivi/voicebridge/pkg/config"
	"github.com/haivivi/voicebridge/pkg/twilio"
)

const chatOK = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "It is **sunny** today."}}]
}`

func fakeOpenAI(t *testing.T, hits *atomic.Int32) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatOK)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/"
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.BaseURL = baseURL
	cfg.Archive.Dir = t.TempDir()
	cfg.Monitor.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func post(t *testing.T, h http.Handler, path string, form url.Values) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST %s = %d", path, rec.Code)
	}
	return rec.Body.String()
}

func TestCallLifecycle(t *testing.T) {
	var hits atomic.Int32
	cfg := testConfig(t, fakeOpenAI(t, &hits))
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	post(t, a.Handler, twilio.PathVoice, url.Values{"CallSid": {"CA100"}, "From": {"+14155550123"}})
	body := post(t, a.Handler, twilio.PathSpeech, url.Values{
		"CallSid": {"CA100"}, "SpeechResult": {"what's the weather"}, "Confidence": {"0.93"},
	})
	if !strings.Contains(body, "It is sunny today.") {
		t.Fatalf("reply not rendered: %s", body)
	}
	if hits.Load() != 1 {
		t.Fatalf("openai hits = %d", hits.Load())
	}
	if n := len(a.Store.HistoryWindow("CA100", 10)); n != 2 {
		t.Fatalf("history = %d turns", n)
	}

	body = post(t, a.Handler, twilio.PathSpeech, url.Values{
		"CallSid": {"CA100"}, "SpeechResult": {"no thanks"}, "Confidence": {"0.9"},
	})
	if !strings.Contains(body, "<Hangup>") {
		t.Fatalf("farewell did not hang up: %s", body)
	}

	rec, err := a.Archive.Get(context.Background(), "CA100")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if rec.Caller != "+14******123" || len(rec.Turns) != 2 || rec.Reason != "farewell" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestLocalAudioAndSweep(t *testing.T) {
	var hits atomic.Int32
	cfg := testConfig(t, fakeOpenAI(t, &hits))
	cfg.Audio.Store = "local"
	cfg.Audio.Dir = t.TempDir()
	cfg.PublicBaseURL = "https://voice.example.com"
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if a.local == nil {
		t.Fatal("local store not wired")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Sweep(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sweep did not stop")
	}
}

func TestHealthAndMonitorRoutes(t *testing.T) {
	var hits atomic.Int32
	a, err := New(context.Background(), testConfig(t, fakeOpenAI(t, &hits)), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	if a.Hub == nil {
		t.Fatal("monitor hub not wired")
	}
	// A plain GET is not a websocket handshake.
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, twilio.PathMonitor, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("monitor = %d", rec.Code)
	}
}

func TestUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "k"
	cfg.LLM.Backend = "carrier-pigeon"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error")
	}
}
