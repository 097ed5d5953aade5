// Package turn decides what happens with each caller utterance: re-prompt,
// answer through the language model, or end the call.
package turn

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/voicebridge/pkg/archive"
	"github.com/haivivi/voicebridge/pkg/conversation"
	"github.com/haivivi/voicebridge/pkg/llm"
	"github.com/haivivi/voicebridge/pkg/monitor"
	"github.com/haivivi/voicebridge/pkg/render"
	"github.com/haivivi/voicebridge/pkg/tone"
)

// Action tells the transport what to do after speaking.
type Action string

const (
	GatherMore Action = "gather_more"
	Hangup     Action = "hangup"
)

// Kind classifies a Result for logging and tests.
type Kind string

const (
	KindGreeting   Kind = "greeting"
	KindReply      Kind = "reply"
	KindRepeat     Kind = "repeat"
	KindGoodbye    Kind = "goodbye"
	KindApology    Kind = "apology"
	KindSuperseded Kind = "superseded"
)

// Context key holding the masked caller number.
const contextCaller = "caller"

const (
	DefaultThreshold        = 0.1
	DefaultMaxSilentPrompts = 3
)

// Input is one recognized utterance.
type Input struct {
	CallID     string
	Transcript string
	Confidence float64
	// Interrupted is set when the caller spoke over the previous reply.
	Interrupted bool
}

// Result is what the transport should say and do next.
type Result struct {
	Kind  Kind
	Reply render.Reply
	Next  Action
}

// Gateway is the language-model side of a turn. [*llm.Gateway] satisfies it.
type Gateway interface {
	Respond(ctx context.Context, callID, utterance string) (string, error)
	Pending(callID string) bool
	Forget(callID string)
}

// Config configures a Controller.
type Config struct {
	Store    *conversation.Store
	Gateway  Gateway
	Renderer *render.Renderer

	// Threshold is the minimum transcript confidence that reaches the
	// gateway. It is used as given: zero accepts every non-empty
	// transcript. DefaultThreshold is the usual value.
	Threshold float64

	// Farewells are normalized whole-utterance phrases that end the call.
	// Nil means DefaultFarewells.
	Farewells []string

	// MaxSilentPrompts ends the call after this many consecutive empty
	// transcripts. Zero means DefaultMaxSilentPrompts; negative disables.
	MaxSilentPrompts int

	Phrases    Phrases
	Classifier tone.Classifier

	// Archive and Monitor are optional.
	Archive archive.Archive
	Monitor monitor.Publisher

	Logger *slog.Logger
}

// Controller is safe for concurrent use.
type Controller struct {
	store      *conversation.Store
	gateway    Gateway
	renderer   *render.Renderer
	threshold  float64
	farewells  map[string]struct{}
	maxSilent  int
	phrases    Phrases
	classifier tone.Classifier
	archive    archive.Archive
	monitor    monitor.Publisher
	log        *slog.Logger
	now        func() time.Time

	// ended remembers recently finished calls so late webhooks do not
	// reopen their sessions.
	endedMu sync.Mutex
	ended   map[string]time.Time
}

// endedRetention bounds how long a finished call id is remembered.
const endedRetention = 10 * time.Minute

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil || cfg.Gateway == nil {
		return nil, errors.New("turn: store and gateway are required")
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, errors.New("turn: threshold must be within [0, 1]")
	}
	c := &Controller{
		store:      cfg.Store,
		gateway:    cfg.Gateway,
		renderer:   cfg.Renderer,
		threshold:  cfg.Threshold,
		maxSilent:  cfg.MaxSilentPrompts,
		phrases:    cfg.Phrases.withDefaults(),
		classifier: cfg.Classifier,
		archive:    cfg.Archive,
		monitor:    cfg.Monitor,
		log:        cfg.Logger,
		now:        time.Now,
		ended:      make(map[string]time.Time),
	}
	if c.renderer == nil {
		c.renderer = render.New(render.Config{Logger: cfg.Logger})
	}
	if c.maxSilent == 0 {
		c.maxSilent = DefaultMaxSilentPrompts
	}
	if c.classifier == nil {
		c.classifier = tone.NewKeywordClassifier()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	farewells := cfg.Farewells
	if farewells == nil {
		farewells = DefaultFarewells
	}
	c.farewells = make(map[string]struct{}, len(farewells))
	for _, f := range farewells {
		if n := normalizeUtterance(f); n != "" {
			c.farewells[n] = struct{}{}
		}
	}
	return c, nil
}

// Threshold returns the confidence threshold.
func (c *Controller) Threshold() float64 { return c.threshold }

// Greet opens a session and returns the greeting. caller is stored for the
// archive and should already be masked.
func (c *Controller) Greet(_ context.Context, callID, caller string) Result {
	c.endedMu.Lock()
	delete(c.ended, callID)
	c.endedMu.Unlock()
	c.store.GetOrCreate(callID)
	if caller != "" {
		c.store.SetContext(callID, contextCaller, caller)
	}
	c.publish(monitor.Event{Type: monitor.CallStarted, CallID: callID, Detail: caller})
	c.log.Info("turn: call started", "callID", callID)
	return Result{Kind: KindGreeting, Reply: render.Reply{Text: c.phrases.Greeting}, Next: GatherMore}
}

// Handle processes one utterance.
func (c *Controller) Handle(ctx context.Context, in Input) Result {
	log := c.log.With("callID", in.CallID)
	if c.isEnded(in.CallID) {
		log.Info("turn: speech for a finished call")
		return Result{Kind: KindGoodbye, Next: Hangup}
	}
	c.store.GetOrCreate(in.CallID)

	text := strings.TrimSpace(in.Transcript)
	if text == "" {
		return c.silence(ctx, in.CallID, log)
	}
	c.store.SetContext(in.CallID, conversation.ContextSilence, "0")

	confidence := clamp01(in.Confidence)
	if confidence < c.threshold {
		log.Info("turn: low confidence, asking to repeat", "confidence", confidence, "threshold", c.threshold)
		c.publish(monitor.Event{Type: monitor.TurnRepeat, CallID: in.CallID, Text: text, Detail: "low_confidence", Confidence: confidence})
		return c.repeat()
	}

	if c.isFarewell(text) {
		log.Info("turn: farewell detected")
		c.publish(monitor.Event{Type: monitor.TurnCaller, CallID: in.CallID, Text: text, Confidence: confidence, Detail: "farewell"})
		c.hangup(ctx, in.CallID, "farewell")
		return Result{Kind: KindGoodbye, Reply: render.Reply{Text: c.phrases.Goodbye}, Next: Hangup}
	}

	c.tag(in.CallID, text)
	detail := ""
	if in.Interrupted {
		detail = "interrupted"
	}
	c.publish(monitor.Event{Type: monitor.TurnCaller, CallID: in.CallID, Text: text, Confidence: confidence, Detail: detail})
	if c.gateway.Pending(in.CallID) {
		log.Info("turn: superseding pending reply", "interrupted", in.Interrupted)
	}

	raw, err := c.gateway.Respond(ctx, in.CallID, text)
	switch {
	case errors.Is(err, llm.ErrSuperseded):
		log.Info("turn: utterance superseded by a newer one")
		c.publish(monitor.Event{Type: monitor.TurnSuperseded, CallID: in.CallID, Text: text})
		return Result{Kind: KindSuperseded, Next: GatherMore}
	case llm.IsTransient(err):
		log.Warn("turn: transient backend failure", "error", err)
		c.publish(monitor.Event{Type: monitor.TurnError, CallID: in.CallID, Detail: "transient"})
		return c.apology(c.phrases.Transient)
	case err != nil:
		log.Error("turn: backend failure", "error", err)
		c.publish(monitor.Event{Type: monitor.TurnError, CallID: in.CallID, Detail: "fatal"})
		return c.apology(c.phrases.Fatal)
	}

	reply := c.renderer.Render(ctx, raw)
	if reply.Text == "" {
		log.Error("turn: reply had nothing speakable", "raw", raw)
		c.publish(monitor.Event{Type: monitor.TurnError, CallID: in.CallID, Detail: "unspeakable"})
		return c.apology(c.phrases.Fatal)
	}
	c.publish(monitor.Event{Type: monitor.TurnAssistant, CallID: in.CallID, Text: reply.Text})
	return Result{Kind: KindReply, Reply: reply, Next: GatherMore}
}

// EndCall drops the session when the transport reports the call is over.
// It reports whether a session existed.
func (c *Controller) EndCall(ctx context.Context, callID, reason string) bool {
	return c.hangup(ctx, callID, reason)
}

func (c *Controller) silence(ctx context.Context, callID string, log *slog.Logger) Result {
	sess, _ := c.store.Session(callID)
	n, _ := strconv.Atoi(sess.Context[conversation.ContextSilence])
	n++
	c.store.SetContext(callID, conversation.ContextSilence, strconv.Itoa(n))

	if c.maxSilent > 0 && n >= c.maxSilent {
		log.Info("turn: caller silent, ending call", "prompts", n)
		c.hangup(ctx, callID, "silence")
		return Result{Kind: KindGoodbye, Reply: render.Reply{Text: c.phrases.Silence}, Next: Hangup}
	}
	log.Debug("turn: empty transcript, asking to repeat", "prompts", n)
	c.publish(monitor.Event{Type: monitor.TurnRepeat, CallID: callID, Detail: "empty"})
	return c.repeat()
}

func (c *Controller) repeat() Result {
	return Result{Kind: KindRepeat, Reply: render.Reply{Text: c.phrases.Repeat}, Next: GatherMore}
}

func (c *Controller) apology(phrase string) Result {
	return Result{Kind: KindApology, Reply: render.Reply{Text: phrase}, Next: GatherMore}
}

func (c *Controller) isFarewell(text string) bool {
	_, ok := c.farewells[normalizeUtterance(text)]
	return ok
}

// tag records phrasing hints for the gateway.
func (c *Controller) tag(callID, text string) {
	c.store.SetContext(callID, conversation.ContextTone, string(c.classifier.Classify(text)))
	c.store.SetContext(callID, conversation.ContextEnergy, string(tone.Energy(text)))
}

func (c *Controller) isEnded(callID string) bool {
	c.endedMu.Lock()
	defer c.endedMu.Unlock()
	_, ok := c.ended[callID]
	return ok
}

func (c *Controller) markEnded(callID string) {
	now := c.now()
	c.endedMu.Lock()
	defer c.endedMu.Unlock()
	for id, at := range c.ended {
		if now.Sub(at) > endedRetention {
			delete(c.ended, id)
		}
	}
	c.ended[callID] = now
}

func (c *Controller) hangup(ctx context.Context, callID, reason string) bool {
	c.gateway.Forget(callID)
	c.markEnded(callID)
	sess, ok := c.store.Drop(callID)
	if !ok {
		return false
	}
	c.publish(monitor.Event{Type: monitor.CallEnded, CallID: callID, Detail: reason})
	c.log.Info("turn: call ended", "callID", callID, "reason", reason, "turns", len(sess.Turns))

	if c.archive == nil {
		return true
	}
	rec := archive.FromSession(sess, reason, c.now())
	rec.Caller = sess.Context[contextCaller]
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.archive.Save(actx, rec); err != nil {
		c.log.Warn("turn: archive save failed", "callID", callID, "error", err)
	}
	return true
}

func (c *Controller) publish(e monitor.Event) {
	if c.monitor != nil {
		c.monitor.Publish(e)
	}
}
