package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haivivi/voicebridge/pkg/conversation"
	"github.com/haivivi/voicebridge/pkg/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, status int, body string, captured *chatRequest) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if captured != nil {
			if err := json.Unmarshal(raw, captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	client := openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	return &client
}

const chatOK = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  Hi there!  "}}]
}`

func TestChatBackendComplete(t *testing.T) {
	var req chatRequest
	client := newChatServer(t, http.StatusOK, chatOK, &req)
	b := llm.NewChat(llm.ChatConfig{Client: client, Model: "gpt-4o-mini"})

	reply, err := b.Complete(context.Background(), llm.Request{
		System: "be nice",
		History: []conversation.Turn{
			{Role: conversation.RoleCaller, Text: "hi"},
			{Role: conversation.RoleAssistant, Text: "hello"},
		},
		Utterance: "how are you",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "Hi there!" {
		t.Fatalf("reply = %q", reply)
	}

	if req.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", req.Model)
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	wantText := []string{"be nice", "hi", "hello", "how are you"}
	if len(req.Messages) != len(wantRoles) {
		t.Fatalf("sent %d messages, want %d", len(req.Messages), len(wantRoles))
	}
	for i, m := range req.Messages {
		if m.Role != wantRoles[i] || m.Content != wantText[i] {
			t.Errorf("message %d = %s:%q, want %s:%q", i, m.Role, m.Content, wantRoles[i], wantText[i])
		}
	}
}

func TestChatBackendErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, true},
		{"server error", http.StatusBadGateway, `{"error":{"message":"upstream"}}`, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, false},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, false},
		{"empty content", http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":""}}]}`, false},
		{"content filter", http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"content_filter","message":{"role":"assistant","content":"partial"}}]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newChatServer(t, tt.status, tt.body, nil)
			b := llm.NewChat(llm.ChatConfig{Client: client})
			_, err := b.Complete(context.Background(), llm.Request{Utterance: "hi"})
			if err == nil {
				t.Fatal("Complete succeeded, want error")
			}
			if llm.IsTransient(err) != tt.wantTransient {
				t.Fatalf("IsTransient = %v, want %v", llm.IsTransient(err), tt.wantTransient)
			}
			if !tt.wantTransient && !llm.IsFatal(err) {
				t.Fatal("want fatal error")
			}
		})
	}
}
