package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Error lists every problem found in a configuration.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration and returns an *Error listing every
// problem, or nil.
func (c *Config) Validate() error {
	var p []string
	bad := func(format string, args ...any) {
		p = append(p, fmt.Sprintf(format, args...))
	}

	if c.Addr == "" {
		bad("addr is required")
	}
	if c.PublicBaseURL != "" {
		if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			bad("public_base_url %q is not an absolute url", c.PublicBaseURL)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		bad("log_level must be debug, info, warn or error")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		bad("log_format must be text or json")
	}

	switch c.LLM.Backend {
	case "chat":
	case "assistants":
		if c.LLM.AssistantID == "" {
			bad("OPENAI_ASSISTANT_ID is required for the assistants backend")
		}
	default:
		bad("llm backend %q must be chat or assistants", c.LLM.Backend)
	}
	if c.LLM.APIKey == "" {
		bad("OPENAI_API_KEY is required")
	}
	if c.LLM.HistoryWindow < 1 || c.LLM.HistoryWindow > 50 {
		bad("history_window must be between 1 and 50")
	}
	if c.LLM.Timeout.Std() <= 0 {
		bad("llm timeout must be positive")
	}
	if c.LLM.PollInterval.Std() <= 0 || c.LLM.MaxPollWait.Std() < c.LLM.PollInterval.Std() {
		bad("poll_interval must be positive and no longer than max_poll_wait")
	}

	if c.Turn.Threshold < 0 || c.Turn.Threshold > 1 {
		bad("confidence_threshold must be within [0, 1]")
	}
	if c.Turn.MaxReplyWords < 1 {
		bad("max_reply_words must be positive")
	}

	switch c.TTS.Provider {
	case "none", "openai":
	case "gemini":
		if c.TTS.GeminiAPIKey == "" {
			bad("GEMINI_API_KEY is required for the gemini synthesizer")
		}
	default:
		bad("tts provider %q must be none, openai or gemini", c.TTS.Provider)
	}

	switch c.Audio.Store {
	case "none":
		if c.TTS.Provider != "none" {
			bad("tts provider %q needs an audio store", c.TTS.Provider)
		}
	case "s3":
		s3 := c.Audio.S3
		if s3.Bucket == "" || s3.Region == "" {
			bad("S3_BUCKET and S3_REGION are required for the s3 audio store")
		}
		if s3.AccessKeyID == "" || s3.SecretAccessKey == "" {
			bad("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 audio store")
		}
	case "local":
		if c.PublicBaseURL == "" {
			bad("PUBLIC_BASE_URL is required for the local audio store")
		}
		if c.Audio.Dir == "" {
			bad("audio dir is required for the local audio store")
		}
	default:
		bad("audio store %q must be none, s3 or local", c.Audio.Store)
	}

	if c.Twilio.ValidateSignature && c.Twilio.AuthToken == "" {
		bad("TWILIO_AUTH_TOKEN is required when signature validation is on")
	}

	if len(p) > 0 {
		return &Error{Problems: p}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	r := *c
	r.Turn.Farewells = append([]string(nil), c.Turn.Farewells...)
	hide := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	hide(&r.LLM.APIKey)
	hide(&r.TTS.GeminiAPIKey)
	hide(&r.Audio.S3.SecretAccessKey)
	hide(&r.Twilio.AuthToken)
	hide(&r.Monitor.Token)
	return &r
}
