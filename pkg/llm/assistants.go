package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haivivi/voicebridge/pkg/conversation"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Run statuses reported by the Assistants API.
const (
	runQueued         = "queued"
	runInProgress     = "in_progress"
	runCancelling     = "cancelling"
	runRequiresAction = "requires_action"
	runCompleted      = "completed"
	runCancelled      = "cancelled"
	runFailed         = "failed"
	runExpired        = "expired"
	runIncomplete     = "incomplete"
)

// RunStatus is the part of a run the backend acts on.
type RunStatus struct {
	Status       string
	ErrorCode    string
	ErrorMessage string
}

// AssistantsAPI is the subset of the Assistants API used by
// AssistantsBackend.
type AssistantsAPI interface {
	CreateThread(ctx context.Context, turns []conversation.Turn) (threadID string, err error)
	CreateRun(ctx context.Context, threadID, assistantID, instructions string) (runID string, err error)
	GetRun(ctx context.Context, threadID, runID string) (RunStatus, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	// LatestReply returns the newest assistant text produced by runID.
	LatestReply(ctx context.Context, threadID, runID string) (string, error)
}

var _ Backend = (*AssistantsBackend)(nil)

// AssistantsConfig configures an AssistantsBackend.
type AssistantsConfig struct {
	API          AssistantsAPI
	AssistantID  string
	PollInterval time.Duration
	MaxPollWait  time.Duration
	Logger       *slog.Logger
}

// AssistantsBackend answers through an Assistants run. Each request gets a
// fresh thread seeded with the history window, so server-side threads never
// grow past what the gateway sends.
type AssistantsBackend struct {
	api         AssistantsAPI
	assistantID string
	interval    time.Duration
	maxWait     time.Duration
	log         *slog.Logger
}

// NewAssistants creates an AssistantsBackend.
func NewAssistants(cfg AssistantsConfig) (*AssistantsBackend, error) {
	if cfg.API == nil {
		return nil, errors.New("llm: assistants api is required")
	}
	if cfg.AssistantID == "" {
		return nil, errors.New("llm: assistant id is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &AssistantsBackend{
		api:         cfg.API,
		assistantID: cfg.AssistantID,
		interval:    cfg.PollInterval,
		maxWait:     cfg.MaxPollWait,
		log:         log,
	}, nil
}

// Name implements [Backend].
func (b *AssistantsBackend) Name() string { return "openai/assistants" }

// Complete implements [Backend].
func (b *AssistantsBackend) Complete(ctx context.Context, req Request) (string, error) {
	turns := make([]conversation.Turn, 0, len(req.History)+1)
	turns = append(turns, req.History...)
	turns = append(turns, conversation.Turn{Role: conversation.RoleCaller, Text: req.Utterance})

	threadID, err := b.api.CreateThread(ctx, turns)
	if err != nil {
		return "", Classify(b.Name()+" create thread", err)
	}
	runID, err := b.api.CreateRun(ctx, threadID, b.assistantID, req.System)
	if err != nil {
		return "", Classify(b.Name()+" create run", err)
	}
	log := b.log.With("callID", req.CallID, "thread", threadID, "run", runID)

	job := &Job[string]{
		Name:     b.Name(),
		Interval: b.interval,
		MaxWait:  b.maxWait,
		Poll: func(ctx context.Context) (Progress[string], error) {
			st, err := b.api.GetRun(ctx, threadID, runID)
			if err != nil {
				return Progress[string]{}, err
			}
			return b.progress(ctx, threadID, runID, st)
		},
		Cancel: func(ctx context.Context) error {
			err := b.api.CancelRun(ctx, threadID, runID)
			if err != nil {
				log.Debug("assistants: cancel run failed", "error", err)
			}
			return err
		},
		OnState: func(s JobState) {
			log.Debug("assistants: run state", "state", s)
		},
	}
	return job.Wait(ctx)
}

func (b *AssistantsBackend) progress(ctx context.Context, threadID, runID string, st RunStatus) (Progress[string], error) {
	switch st.Status {
	case runCompleted:
		reply, err := b.api.LatestReply(ctx, threadID, runID)
		if err != nil {
			return Progress[string]{}, err
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return Progress[string]{State: JobFailed, Err: ErrEmptyReply}, nil
		}
		return Progress[string]{State: JobCompleted, Result: reply}, nil
	case runCancelled:
		return Progress[string]{State: JobCancelled}, nil
	case runFailed, runExpired, runIncomplete:
		reason := fmt.Errorf("run %s: %s", st.Status, st.describe())
		if st.ErrorCode == "rate_limit_exceeded" || st.ErrorCode == "server_error" {
			return Progress[string]{State: JobFailed, Err: &TransientError{Op: b.Name(), Err: reason}}, nil
		}
		return Progress[string]{State: JobFailed, Err: reason}, nil
	case runRequiresAction:
		// Tool calls are not supported on a phone line.
		return Progress[string]{State: JobFailed, Err: errors.New("run requires tool outputs")}, nil
	default:
		return Progress[string]{State: JobPolling}, nil
	}
}

func (s RunStatus) describe() string {
	switch {
	case s.ErrorCode != "" && s.ErrorMessage != "":
		return s.ErrorCode + ": " + s.ErrorMessage
	case s.ErrorCode != "":
		return s.ErrorCode
	case s.ErrorMessage != "":
		return s.ErrorMessage
	}
	return "no detail"
}

// OpenAIAssistants implements AssistantsAPI with the openai-go client.
type OpenAIAssistants struct {
	client *openai.Client
	opts   []option.RequestOption
}

var _ AssistantsAPI = (*OpenAIAssistants)(nil)

// NewOpenAIAssistants wraps client for the v2 Assistants API.
func NewOpenAIAssistants(client *openai.Client) *OpenAIAssistants {
	return &OpenAIAssistants{
		client: client,
		opts:   []option.RequestOption{option.WithHeader("OpenAI-Beta", "assistants=v2")},
	}
}

func (a *OpenAIAssistants) CreateThread(ctx context.Context, turns []conversation.Turn) (string, error) {
	var params openai.BetaThreadNewParams
	for _, t := range turns {
		msg := openai.BetaThreadNewParamsMessage{
			Role:    "user",
			Content: openai.BetaThreadNewParamsMessageContentUnion{OfString: openai.String(t.Text)},
		}
		if t.Role == conversation.RoleAssistant {
			msg.Role = "assistant"
		}
		params.Messages = append(params.Messages, msg)
	}
	thread, err := a.client.Beta.Threads.New(ctx, params, a.opts...)
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (a *OpenAIAssistants) CreateRun(ctx context.Context, threadID, assistantID, instructions string) (string, error) {
	params := openai.BetaThreadRunNewParams{AssistantID: assistantID}
	if instructions != "" {
		params.AdditionalInstructions = openai.String(instructions)
	}
	run, err := a.client.Beta.Threads.Runs.New(ctx, threadID, params, a.opts...)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (a *OpenAIAssistants) GetRun(ctx context.Context, threadID, runID string) (RunStatus, error) {
	run, err := a.client.Beta.Threads.Runs.Get(ctx, threadID, runID, a.opts...)
	if err != nil {
		return RunStatus{}, err
	}
	return RunStatus{
		Status:       string(run.Status),
		ErrorCode:    string(run.LastError.Code),
		ErrorMessage: run.LastError.Message,
	}, nil
}

func (a *OpenAIAssistants) CancelRun(ctx context.Context, threadID, runID string) error {
	_, err := a.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID, a.opts...)
	return err
}

func (a *OpenAIAssistants) LatestReply(ctx context.Context, threadID, runID string) (string, error) {
	page, err := a.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: "desc",
		RunID: openai.String(runID),
		Limit: openai.Int(10),
	}, a.opts...)
	if err != nil {
		return "", err
	}
	for _, msg := range page.Data {
		if string(msg.Role) != "assistant" {
			continue
		}
		var parts []string
		for _, c := range msg.Content {
			if c.Type == "text" && c.Text.Value != "" {
				parts = append(parts, c.Text.Value)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " "), nil
		}
	}
	return "", nil
}
