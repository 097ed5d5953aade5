package llm

import (
	"context"

	"github.com/haivivi/voicebridge/pkg/conversation"
)

// Request is one completion request. History is chronological and does not
// include Utterance.
type Request struct {
	CallID    string
	System    string
	History   []conversation.Turn
	Utterance string
}

// Backend produces a reply for a request. Implementations return errors
// classified with [Classify] and must return promptly once ctx is done.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to [Backend].
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Name implements [Backend].
func (f BackendFunc) Name() string { return "func" }

// Complete calls f(ctx, req).
func (f BackendFunc) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }
