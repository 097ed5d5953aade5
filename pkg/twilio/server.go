// Package twilio serves the Twilio voice webhooks: it turns form posts into
// turns for the controller and the controller's results into TwiML.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go/twiml"

	"github.com/haivivi/voicebridge/pkg/audiostore"
	"github.com/haivivi/voicebridge/pkg/render"
	"github.com/haivivi/voicebridge/pkg/turn"
)

// Route paths.
const (
	PathVoice   = "/twilio/voice"
	PathSpeech  = "/twilio/speech"
	PathStatus  = "/twilio/status"
	PathMonitor = "/monitor/ws"
)

// DefaultTurnTimeout stays below Twilio's fifteen second webhook limit.
const DefaultTurnTimeout = 14 * time.Second

// errorPhrase is spoken when a webhook cannot be processed at all.
const errorPhrase = "I'm sorry, there was an error. Please try again."

// terminalStatuses are CallStatus values that end a call.
var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// Conversation handles call events. [*turn.Controller] satisfies it.
type Conversation interface {
	Greet(ctx context.Context, callID, caller string) turn.Result
	Handle(ctx context.Context, in turn.Input) turn.Result
	EndCall(ctx context.Context, callID, reason string) bool
}

// Config configures a Server.
type Config struct {
	Conversation Conversation
	Voice        Voice

	// Audio serves locally stored clips. It is mounted under
	// audiostore.MountPath with the prefix stripped. Optional.
	Audio http.Handler
	// Monitor serves the live event feed at PathMonitor. Optional.
	Monitor http.Handler

	// AuthToken enables X-Twilio-Signature validation when non-empty.
	AuthToken string
	// PublicBaseURL is the externally visible origin used to rebuild the
	// signed URL behind proxies, e.g. "https://voice.example.com".
	PublicBaseURL string

	TurnTimeout time.Duration
	Logger      *slog.Logger
}

// Server is an http.Handler for the Twilio webhooks.
type Server struct {
	conv     Conversation
	voice    Voice
	verifier *Verifier
	baseURL  string
	timeout   time.Duration
	log       *slog.Logger
	mux       *http.ServeMux
	handler   http.Handler
}

// NewServer creates a Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Conversation == nil {
		return nil, errors.New("twilio: conversation is required")
	}
	s := &Server{
		conv:    cfg.Conversation,
		voice:   cfg.Voice.withDefaults(),
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		timeout: cfg.TurnTimeout,
		log:     cfg.Logger,
		mux:     http.NewServeMux(),
	}
	if cfg.AuthToken != "" {
		s.verifier = NewVerifier(cfg.AuthToken)
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTurnTimeout
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.setupRoutes(cfg.Audio, cfg.Monitor)
	return s, nil
}

func (s *Server) setupRoutes(audio, monitor http.Handler) {
	s.mux.Handle("POST "+PathVoice, s.webhook(s.handleVoice))
	s.mux.Handle("POST "+PathSpeech, s.webhook(s.handleSpeech))
	s.mux.Handle("POST "+PathStatus, s.webhook(s.handleStatus))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	if audio != nil {
		s.mux.Handle("GET "+audiostore.MountPath, http.StripPrefix(audiostore.MountPath, audio))
	}
	if monitor != nil {
		s.mux.Handle("GET "+PathMonitor, monitor)
	}
	s.handler = s.logRequests(s.mux)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// webhook parses the form, checks the signature and recovers panics into
// apology TwiML.
func (s *Server) webhook(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Error("twilio: handler panic", "path", r.URL.Path, "panic", v)
				s.writeTwiML(w, s.apology(r.URL.Path == PathSpeech)...)
			}
		}()
		if err := r.ParseForm(); err != nil {
			s.log.Warn("twilio: bad form", "path", r.URL.Path, "error", err)
			s.writeTwiML(w, s.apology(r.URL.Path == PathSpeech)...)
			return
		}
		if s.verifier != nil {
			sig := r.Header.Get(SignatureHeader)
			if err := s.verifier.Verify(sig, s.requestURL(r), r.PostForm); err != nil {
				s.log.Warn("twilio: rejected request", "path", r.URL.Path, "error", err)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	})
}

// requestURL rebuilds the URL Twilio signed.
func (s *Server) requestURL(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	callID := r.PostForm.Get("CallSid")
	s.log.Info("twilio: incoming call", maskedAttrs(r.PostForm)...)
	if callID == "" {
		s.writeTwiML(w, s.voice.say(errorPhrase))
		return
	}
	res := s.conv.Greet(r.Context(), callID, Mask(r.PostForm.Get("From")))
	s.writeTwiML(w, s.respond(res)...)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	form := r.PostForm
	callID := form.Get("CallSid")
	in := turn.Input{
		CallID:      callID,
		Transcript:  form.Get("SpeechResult"),
		Confidence:  turn.ParseConfidence(form.Get("Confidence")),
		Interrupted: strings.EqualFold(form.Get("Interrupted"), "true"),
	}
	s.log.Info("twilio: speech received",
		append(maskedAttrs(form), "confidence", in.Confidence, "interrupted", in.Interrupted, "chars", len(in.Transcript))...)
	if callID == "" {
		s.writeTwiML(w, s.apology(true)...)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res := s.conv.Handle(ctx, in)
	s.writeTwiML(w, s.respond(res)...)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	callID := r.PostForm.Get("CallSid")
	status := r.PostForm.Get("CallStatus")
	s.log.Info("twilio: call status", append(maskedAttrs(r.PostForm), "status", status)...)
	if callID != "" && terminalStatuses[status] {
		s.conv.EndCall(r.Context(), callID, status)
	}
	s.writeTwiML(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("voicebridge is running\n"))
}

// respond turns a controller result into TwiML. Speech is nested inside
// Gather so the caller can interrupt it.
func (s *Server) respond(res turn.Result) []twiml.Element {
	speech := s.speak(res.Reply)
	if res.Next == turn.Hangup {
		return append(speech, &twiml.VoiceHangup{})
	}
	return []twiml.Element{s.voice.gather(PathSpeech, speech...)}
}

func (s *Server) speak(reply render.Reply) []twiml.Element {
	switch {
	case reply.Audio != nil && reply.Audio.URL != "":
		return []twiml.Element{play(reply.Audio.URL)}
	case reply.Text != "":
		return []twiml.Element{s.voice.say(reply.Text)}
	}
	return nil
}

// apology is the fallback document; gather keeps the call listening.
func (s *Server) apology(gather bool) []twiml.Element {
	say := s.voice.say(turn.DefaultPhrases.Transient)
	if !gather {
		return []twiml.Element{say}
	}
	return []twiml.Element{s.voice.gather(PathSpeech, say)}
}

func (s *Server) writeTwiML(w http.ResponseWriter, verbs ...twiml.Element) {
	body, err := document(verbs...)
	if err != nil {
		s.log.Error("twilio: marshal twiml", "error", err)
		body = []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<Response><Say>" + errorPhrase + "</Say></Response>")
	}
	w.Header().Set("Content-Type", ContentType)
	_, _ = w.Write(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == PathMonitor {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("twilio: request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "took", time.Since(start))
	})
}
