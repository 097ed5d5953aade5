// Package app assembles a running voicebridge from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/haivivi/voicebridge/pkg/archive"
	"github.com/haivivi/voicebridge/pkg/audiostore"
	"github.com/haivivi/voicebridge/pkg/config"
	"github.com/haivivi/voicebridge/pkg/conversation"
	"github.com/haivivi/voicebridge/pkg/llm"
	"github.com/haivivi/voicebridge/pkg/monitor"
	"github.com/haivivi/voicebridge/pkg/render"
	"github.com/haivivi/voicebridge/pkg/tts"
	"github.com/haivivi/voicebridge/pkg/turn"
	"github.com/haivivi/voicebridge/pkg/twilio"
)

// App is a wired server.
type App struct {
	Handler http.Handler
	Store   *conversation.Store
	Archive archive.Archive
	Hub     *monitor.Hub

	// local is set when clips are served from disk and need sweeping.
	local *audiostore.Local
	log   *slog.Logger
}

// New builds every component named by cfg. cfg must already be valid.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Store: conversation.NewStore(), log: log}

	client := openai.NewClient(openAIOptions(cfg)...)
	backend, err := newBackend(cfg, &client, log)
	if err != nil {
		return nil, err
	}
	gw, err := llm.New(llm.Config{
		Backend:       backend,
		Store:         a.Store,
		HistoryWindow: cfg.LLM.HistoryWindow,
		Preamble:      cfg.LLM.Preamble,
		MaxAttempts:   cfg.LLM.MaxAttempts,
		Timeout:       cfg.LLM.Timeout.Std(),
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	synth, err := newSynthesizer(ctx, cfg, &client)
	if err != nil {
		return nil, err
	}
	store, err := a.newAudioStore(cfg)
	if err != nil {
		return nil, err
	}
	renderer := render.New(render.Config{
		MaxWords:    cfg.Turn.MaxReplyWords,
		Synthesizer: synth,
		Store:       store,
		TTSTimeout:  cfg.TTS.Timeout.Std(),
		Logger:      log,
	})

	if cfg.Archive.Dir != "" {
		a.Archive, err = archive.OpenBadger(archive.BadgerOptions{Dir: cfg.Archive.Dir, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
	} else {
		a.Archive = archive.NewMemory()
	}

	var monitorHandler http.Handler
	tc := turn.Config{
		Store:            a.Store,
		Gateway:          gw,
		Renderer:         renderer,
		Threshold:        cfg.Turn.Threshold,
		Farewells:        cfg.Turn.Farewells,
		MaxSilentPrompts: cfg.Turn.MaxSilentPrompts,
		Archive:          a.Archive,
		Logger:           log,
	}
	if cfg.Monitor.Enabled {
		a.Hub = monitor.NewHub(0)
		tc.Monitor = a.Hub
		monitorHandler = monitor.NewHandler(a.Hub, cfg.Monitor.Token, log)
	}
	ctrl, err := turn.New(tc)
	if err != nil {
		a.Archive.Close()
		return nil, err
	}

	sc := twilio.Config{
		Conversation: ctrl,
		Voice: twilio.Voice{
			Voice:          cfg.Twilio.Voice,
			Language:       cfg.Twilio.Language,
			SpeechLanguage: cfg.Twilio.SpeechLanguage,
			Timeout:        cfg.Twilio.GatherTimeout,
			Hints:          cfg.Twilio.Hints,
		},
		Monitor:       monitorHandler,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        log,
	}
	if cfg.Twilio.ValidateSignature {
		sc.AuthToken = cfg.Twilio.AuthToken
	}
	if a.local != nil {
		sc.Audio = a.local.Handler()
	}
	srv, err := twilio.NewServer(sc)
	if err != nil {
		a.Archive.Close()
		return nil, err
	}
	a.Handler = srv

	log.Info("app: ready",
		"backend", backend.Name(),
		"tts", cfg.TTS.Provider,
		"audio", cfg.Audio.Store,
		"threshold", ctrl.Threshold(),
		"monitor", cfg.Monitor.Enabled)
	return a, nil
}

func openAIOptions(cfg *config.Config) []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(cfg.LLM.APIKey)}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.LLM.BaseURL))
	}
	return opts
}

func newBackend(cfg *config.Config, client *openai.Client, log *slog.Logger) (llm.Backend, error) {
	switch cfg.LLM.Backend {
	case "assistants":
		return llm.NewAssistants(llm.AssistantsConfig{
			API:          llm.NewOpenAIAssistants(client),
			AssistantID:  cfg.LLM.AssistantID,
			PollInterval: cfg.LLM.PollInterval.Std(),
			MaxPollWait:  cfg.LLM.MaxPollWait.Std(),
			Logger:       log,
		})
	case "chat", "":
		return llm.NewChat(llm.ChatConfig{
			Client:      client,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}), nil
	}
	return nil, fmt.Errorf("app: unknown llm backend %q", cfg.LLM.Backend)
}

func newSynthesizer(ctx context.Context, cfg *config.Config, client *openai.Client) (tts.Synthesizer, error) {
	switch cfg.TTS.Provider {
	case "none", "":
		return nil, nil
	case "openai":
		return &tts.OpenAI{
			Client:       client,
			Model:        cfg.TTS.Model,
			Voice:        cfg.TTS.Voice,
			Instructions: cfg.TTS.Instructions,
		}, nil
	case "gemini":
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.TTS.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return tts.NewGemini(gc, cfg.TTS.Model, cfg.TTS.Voice), nil
	}
	return nil, fmt.Errorf("app: unknown tts provider %q", cfg.TTS.Provider)
}

func (a *App) newAudioStore(cfg *config.Config) (audiostore.Store, error) {
	switch cfg.Audio.Store {
	case "none", "":
		return nil, nil
	case "s3":
		o := cfg.Audio.S3
		client := audiostore.NewS3Client(audiostore.S3ClientOptions{
			Region:          o.Region,
			Endpoint:        o.Endpoint,
			AccessKeyID:     o.AccessKeyID,
			SecretAccessKey: o.SecretAccessKey,
			PathStyle:       o.UsePathStyle,
		})
		return audiostore.NewS3(client, s3.NewPresignClient(client), audiostore.S3Options{
			Bucket:        o.Bucket,
			Prefix:        o.Prefix,
			TTL:           cfg.Audio.TTL.Std(),
			PublicBaseURL: o.PublicBaseURL,
		})
	case "local":
		local, err := audiostore.NewLocal(cfg.Audio.Dir, cfg.PublicBaseURL, cfg.Audio.TTL.Std())
		if err != nil {
			return nil, err
		}
		a.local = local
		return local, nil
	}
	return nil, fmt.Errorf("app: unknown audio store %q", cfg.Audio.Store)
}

// Sweep deletes expired local clips every interval until ctx is done. It
// returns immediately when clips are not stored locally.
func (a *App) Sweep(ctx context.Context, interval time.Duration) {
	if a.local == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := a.local.Sweep(now)
			if err != nil {
				a.log.Warn("app: audio sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.log.Debug("app: swept audio clips", "removed", n)
			}
		}
	}
}

// Close releases the archive.
func (a *App) Close() error {
	if a.Archive == nil {
		return nil
	}
	return a.Archive.Close()
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info("app: listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
