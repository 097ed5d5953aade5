package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/haivivi/voicebridge/pkg/conversation"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

var _ Backend = (*ChatBackend)(nil)

// ChatConfig configures a ChatBackend.
type ChatConfig struct {
	Client *openai.Client
	Model  string

	// MaxTokens caps the completion. Zero leaves it to the server.
	MaxTokens int

	// Temperature is sent when positive.
	Temperature float64
}

// ChatBackend answers with a single Chat Completions request.
type ChatBackend struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewChat creates a ChatBackend.
func NewChat(cfg ChatConfig) *ChatBackend {
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &ChatBackend{
		client:      cfg.Client,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Name implements [Backend].
func (b *ChatBackend) Name() string { return "openai/chat" }

// Complete implements [Backend].
func (b *ChatBackend) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(b.model),
		Messages: chatMessages(req),
	}
	if b.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(b.maxTokens))
	}
	if b.temperature > 0 {
		params.Temperature = param.NewOpt(b.temperature)
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Classify(b.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", &FatalError{Op: b.Name(), Err: ErrEmptyReply}
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", &FatalError{Op: b.Name(), Err: fmt.Errorf("model refused: %s", choice.Message.Refusal)}
	}
	if choice.FinishReason == "content_filter" {
		return "", &FatalError{Op: b.Name(), Err: fmt.Errorf("reply blocked by content filter")}
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", &FatalError{Op: b.Name(), Err: ErrEmptyReply}
	}
	// A "length" finish keeps the partial text; the renderer caps it anyway.
	return text, nil
}

func chatMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, t := range req.History {
		switch t.Role {
		case conversation.RoleCaller:
			msgs = append(msgs, openai.UserMessage(t.Text))
		case conversation.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		}
	}
	return append(msgs, openai.UserMessage(req.Utterance))
}
