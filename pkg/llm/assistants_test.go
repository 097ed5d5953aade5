package llm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/voicebridge/pkg/conversation"
	"github.com/haivivi/voicebridge/pkg/llm"
)

type fakeAssistants struct {
	mu        sync.Mutex
	statuses  []llm.RunStatus // returned in order; the last one repeats
	polls     int
	reply     string
	turns     []conversation.Turn
	instr     string
	cancelled bool
	createErr error
}

func (f *fakeAssistants) CreateThread(_ context.Context, turns []conversation.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.turns = turns
	return "thread_1", nil
}

func (f *fakeAssistants) CreateRun(_ context.Context, threadID, assistantID, instructions string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instr = instructions
	return "run_1", nil
}

func (f *fakeAssistants) GetRun(context.Context, string, string) (llm.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	return f.statuses[i], nil
}

func (f *fakeAssistants) CancelRun(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	return nil
}

func (f *fakeAssistants) LatestReply(context.Context, string, string) (string, error) {
	return f.reply, nil
}

func newAssistants(t *testing.T, api llm.AssistantsAPI, maxWait time.Duration) *llm.AssistantsBackend {
	t.Helper()
	b, err := llm.NewAssistants(llm.AssistantsConfig{
		API:          api,
		AssistantID:  "asst_1",
		PollInterval: time.Millisecond,
		MaxPollWait:  maxWait,
	})
	if err != nil {
		t.Fatalf("NewAssistants: %v", err)
	}
	return b
}

func TestAssistantsComplete(t *testing.T) {
	api := &fakeAssistants{
		statuses: []llm.RunStatus{{Status: "queued"}, {Status: "in_progress"}, {Status: "completed"}},
		reply:    "Sure thing.",
	}
	b := newAssistants(t, api, time.Second)

	reply, err := b.Complete(context.Background(), llm.Request{
		System:    "style",
		History:   []conversation.Turn{{Role: conversation.RoleCaller, Text: "hi"}, {Role: conversation.RoleAssistant, Text: "hey"}},
		Utterance: "help me",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "Sure thing." {
		t.Fatalf("reply = %q", reply)
	}
	if api.polls != 3 {
		t.Errorf("polls = %d, want 3", api.polls)
	}
	if api.instr != "style" {
		t.Errorf("instructions = %q", api.instr)
	}
	if len(api.turns) != 3 || api.turns[2].Text != "help me" || api.turns[2].Role != conversation.RoleCaller {
		t.Errorf("thread turns = %+v", api.turns)
	}
}

func TestAssistantsTerminalFailures(t *testing.T) {
	tests := []struct {
		name          string
		status        llm.RunStatus
		reply         string
		wantTransient bool
	}{
		{"failed", llm.RunStatus{Status: "failed", ErrorCode: "invalid_prompt"}, "", false},
		{"expired", llm.RunStatus{Status: "expired"}, "", false},
		{"cancelled", llm.RunStatus{Status: "cancelled"}, "", false},
		{"requires action", llm.RunStatus{Status: "requires_action"}, "", false},
		{"rate limited", llm.RunStatus{Status: "failed", ErrorCode: "rate_limit_exceeded"}, "", true},
		{"empty output", llm.RunStatus{Status: "completed"}, "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAssistants{statuses: []llm.RunStatus{tt.status}, reply: tt.reply}
			_, err := newAssistants(t, api, time.Second).Complete(context.Background(), llm.Request{Utterance: "x"})
			if err == nil {
				t.Fatal("Complete succeeded, want error")
			}
			if llm.IsTransient(err) != tt.wantTransient {
				t.Fatalf("IsTransient(%v) = %v, want %v", err, llm.IsTransient(err), tt.wantTransient)
			}
			if !tt.wantTransient && !llm.IsFatal(err) {
				t.Fatalf("err = %v, want fatal", err)
			}
		})
	}
}

func TestAssistantsPollTimeout(t *testing.T) {
	api := &fakeAssistants{statuses: []llm.RunStatus{{Status: "in_progress"}}}
	_, err := newAssistants(t, api, 15*time.Millisecond).Complete(context.Background(), llm.Request{Utterance: "x"})
	if !llm.IsTransient(err) || !errors.Is(err, llm.ErrPollTimeout) {
		t.Fatalf("err = %v, want transient poll timeout", err)
	}
	if !api.cancelled {
		t.Fatal("run not cancelled after timeout")
	}
}

func TestAssistantsCreateError(t *testing.T) {
	api := &fakeAssistants{createErr: errors.New("boom")}
	_, err := newAssistants(t, api, time.Second).Complete(context.Background(), llm.Request{Utterance: "x"})
	if !llm.IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
}

func TestNewAssistantsValidation(t *testing.T) {
	if _, err := llm.NewAssistants(llm.AssistantsConfig{AssistantID: "a"}); err == nil {
		t.Fatal("missing api accepted")
	}
	if _, err := llm.NewAssistants(llm.AssistantsConfig{API: &fakeAssistants{}}); err == nil {
		t.Fatal("missing assistant id accepted")
	}
}
