// Package llm sends caller utterances to a conversational backend and
// commits the replies to call history.
//
// A [Gateway] allows one logical request per call. A new utterance cancels
// the request still in flight for the same call, and a per-call sequence
// number keeps the stale reply out of history even if the backend answers
// anyway.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/voicebridge/pkg/conversation"
)

const (
	DefaultHistoryWindow = 8
	MaxHistoryWindow     = 50
	DefaultTimeout       = 12 * time.Second
	DefaultRetryBackoff  = 250 * time.Millisecond
)

// Config configures a Gateway.
type Config struct {
	// Backend answers requests. Required.
	Backend Backend

	// Store holds call history. Required.
	Store *conversation.Store

	// HistoryWindow is the number of prior turns sent with each request.
	// Zero means DefaultHistoryWindow; values above MaxHistoryWindow are
	// clamped.
	HistoryWindow int

	// Preamble is the system prompt. Empty means DefaultPreamble.
	Preamble string

	// MaxAttempts bounds backend attempts per utterance. Only transient
	// failures are retried. Zero means 2.
	MaxAttempts int

	// RetryBackoff is the pause before a retry.
	RetryBackoff time.Duration

	// Timeout bounds one utterance end to end, retries included.
	Timeout time.Duration

	Logger *slog.Logger
}

// Gateway is safe for concurrent use.
type Gateway struct {
	backend  Backend
	store    *conversation.Store
	window   int
	preamble string
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	log      *slog.Logger

	calls sync.Map // call id -> *callState
}

// callState serializes cancel-then-issue for one call.
type callState struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelCauseFunc
}

// New creates a Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Backend == nil {
		return nil, errors.New("llm: backend is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("llm: store is required")
	}
	g := &Gateway{
		backend:  cfg.Backend,
		store:    cfg.Store,
		window:   cfg.HistoryWindow,
		preamble: cfg.Preamble,
		attempts: cfg.MaxAttempts,
		backoff:  cfg.RetryBackoff,
		timeout:  cfg.Timeout,
		log:      cfg.Logger,
	}
	if g.window <= 0 {
		g.window = DefaultHistoryWindow
	}
	if g.window > MaxHistoryWindow {
		g.window = MaxHistoryWindow
	}
	if g.preamble == "" {
		g.preamble = DefaultPreamble
	}
	if g.attempts <= 0 {
		g.attempts = 2
	}
	if g.backoff <= 0 {
		g.backoff = DefaultRetryBackoff
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g, nil
}

// Respond records utterance as a caller turn, asks the backend for a reply
// and records the reply as an assistant turn.
//
// The call's session must already exist in the store. If another utterance
// for the same call arrives before the backend answers, Respond returns
// ErrSuperseded and nothing further is recorded. Backend failures are
// returned as *TransientError or *FatalError.
func (g *Gateway) Respond(ctx context.Context, callID, utterance string) (string, error) {
	st := g.state(callID)
	log := g.log.With("callID", callID)

	st.mu.Lock()
	st.seq++
	seq := st.seq
	if st.cancel != nil {
		st.cancel(ErrSuperseded)
		log.Info("llm: superseding in-flight request", "seq", seq-1)
	}
	reqCtx, cancel := context.WithCancelCause(ctx)
	st.cancel = cancel

	sess, _ := g.store.Session(callID)
	req := Request{
		CallID:    callID,
		System:    systemPrompt(g.preamble, sess.Context),
		History:   g.store.HistoryWindow(callID, g.window),
		Utterance: utterance,
	}
	g.store.AppendTurn(callID, conversation.RoleCaller, utterance)
	st.mu.Unlock()

	defer cancel(nil)

	start := time.Now()
	reply, err := g.complete(reqCtx, req, log)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.seq != seq {
		log.Info("llm: discarding stale reply", "seq", seq, "current", st.seq, "took", time.Since(start))
		return "", ErrSuperseded
	}
	st.cancel = nil
	if err != nil {
		if errors.Is(context.Cause(reqCtx), ErrSuperseded) {
			return "", ErrSuperseded
		}
		return "", err
	}
	g.store.AppendTurn(callID, conversation.RoleAssistant, reply)
	log.Debug("llm: reply committed", "seq", seq, "took", time.Since(start))
	return reply, nil
}

func (g *Gateway) complete(ctx context.Context, req Request, log *slog.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		reply, err := g.backend.Complete(ctx, req)
		if err == nil {
			return reply, nil
		}
		if cause := context.Cause(ctx); errors.Is(cause, ErrSuperseded) {
			return "", ErrSuperseded
		}
		lastErr = Classify(g.backend.Name(), err)
		if !IsTransient(lastErr) || attempt == g.attempts {
			break
		}
		log.Warn("llm: transient backend error, retrying", "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), ErrSuperseded) {
				return "", ErrSuperseded
			}
			return "", &TransientError{Op: g.backend.Name(), Err: ctx.Err()}
		case <-time.After(g.backoff):
		}
	}
	if errors.Is(lastErr, context.Canceled) {
		lastErr = &TransientError{Op: g.backend.Name(), Err: lastErr}
	}
	return "", lastErr
}

// Forget cancels any request in flight for callID and releases its state.
func (g *Gateway) Forget(callID string) {
	v, ok := g.calls.LoadAndDelete(callID)
	if !ok {
		return
	}
	st := v.(*callState)
	st.mu.Lock()
	if st.cancel != nil {
		st.cancel(context.Canceled)
		st.cancel = nil
	}
	// Bump seq so a reply still in flight is discarded.
	st.seq++
	st.mu.Unlock()
}

// Pending reports whether a request is in flight for callID.
func (g *Gateway) Pending(callID string) bool {
	v, ok := g.calls.Load(callID)
	if !ok {
		return false
	}
	st := v.(*callState)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cancel != nil
}

func (g *Gateway) state(callID string) *callState {
	v, _ := g.calls.LoadOrStore(callID, &callState{})
	return v.(*callState)
}
