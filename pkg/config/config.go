// Package config loads voicebridge settings.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file, an optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// EnvConfigFile names the environment variable holding the YAML file path.
const EnvConfigFile = "VOICEBRIDGE_CONFIG"

// Duration is a time.Duration that reads and writes as "12s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Addr          string `yaml:"addr" json:"addr"`
	PublicBaseURL string `yaml:"public_base_url" json:"public_base_url"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	LogFormat     string `yaml:"log_format" json:"log_format"`

	LLM     LLM     `yaml:"llm" json:"llm"`
	Turn    Turn    `yaml:"turn" json:"turn"`
	TTS     TTS     `yaml:"tts" json:"tts"`
	Audio   Audio   `yaml:"audio" json:"audio"`
	Archive Archive `yaml:"archive" json:"archive"`
	Twilio  Twilio  `yaml:"twilio" json:"twilio"`
	Monitor Monitor `yaml:"monitor" json:"monitor"`
}

// LLM selects and tunes the language-model backend.
type LLM struct {
	// Backend is "chat" or "assistants".
	Backend       string   `yaml:"backend" json:"backend"`
	APIKey        string   `yaml:"api_key" json:"api_key"`
	BaseURL       string   `yaml:"base_url" json:"base_url"`
	Model         string   `yaml:"model" json:"model"`
	AssistantID   string   `yaml:"assistant_id" json:"assistant_id"`
	Preamble      string   `yaml:"preamble" json:"preamble"`
	HistoryWindow int      `yaml:"history_window" json:"history_window"`
	MaxTokens     int      `yaml:"max_tokens" json:"max_tokens"`
	Temperature   float64  `yaml:"temperature" json:"temperature"`
	MaxAttempts   int      `yaml:"max_attempts" json:"max_attempts"`
	Timeout       Duration `yaml:"timeout" json:"timeout"`
	PollInterval  Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxPollWait   Duration `yaml:"max_poll_wait" json:"max_poll_wait"`
}

type Turn struct {
	Threshold        float64  `yaml:"confidence_threshold" json:"confidence_threshold"`
	MaxSilentPrompts int      `yaml:"max_silent_prompts" json:"max_silent_prompts"`
	MaxReplyWords    int      `yaml:"max_reply_words" json:"max_reply_words"`
	Farewells        []string `yaml:"farewells" json:"farewells"`
}

// TTS selects the synthesizer. Provider is "none", "openai" or "gemini".
type TTS struct {
	Provider     string   `yaml:"provider" json:"provider"`
	Model        string   `yaml:"model" json:"model"`
	Voice        string   `yaml:"voice" json:"voice"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	GeminiAPIKey string   `yaml:"gemini_api_key" json:"gemini_api_key"`
	Timeout      Duration `yaml:"timeout" json:"timeout"`
}

// Audio selects where clips are published. Store is "none", "s3" or "local".
type Audio struct {
	Store string   `yaml:"store" json:"store"`
	TTL   Duration `yaml:"ttl" json:"ttl"`
	Dir   string   `yaml:"dir" json:"dir"`
	S3    S3       `yaml:"s3" json:"s3"`
}

type S3 struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style" json:"use_path_style"`
	// PublicBaseURL serves objects from a public bucket or CDN instead of
	// presigned URLs.
	PublicBaseURL string `yaml:"public_base_url" json:"public_base_url"`
}

// Archive stores finished transcripts in Dir. Empty keeps them in memory.
type Archive struct {
	Dir string `yaml:"dir" json:"dir"`
}

type Twilio struct {
	AccountSID        string `yaml:"account_sid" json:"account_sid"`
	AuthToken         string `yaml:"auth_token" json:"auth_token"`
	ValidateSignature bool   `yaml:"validate_signature" json:"validate_signature"`
	Voice             string `yaml:"voice" json:"voice"`
	Language          string `yaml:"language" json:"language"`
	SpeechLanguage    string `yaml:"speech_language" json:"speech_language"`
	GatherTimeout     int    `yaml:"gather_timeout" json:"gather_timeout"`
	Hints             string `yaml:"hints" json:"hints"`
}

type Monitor struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Token   string `yaml:"token" json:"token"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:      ":9000",
		LogLevel:  "info",
		LogFormat: "text",
		LLM: LLM{
			Backend:       "chat",
			Model:         "gpt-4o-mini",
			HistoryWindow: 8,
			MaxTokens:     150,
			Temperature:   0.7,
			MaxAttempts:   2,
			Timeout:       Duration(12 * time.Second),
			PollInterval:  Duration(time.Second),
			MaxPollWait:   Duration(10 * time.Second),
		},
		Turn: Turn{
			Threshold:        0.1,
			MaxSilentPrompts: 3,
			MaxReplyWords:    50,
		},
		TTS:   TTS{Provider: "none", Timeout: Duration(8 * time.Second)},
		Audio: Audio{Store: "none", TTL: Duration(time.Hour), Dir: "audio"},
		Twilio: Twilio{
			Voice:          "Polly.Amy",
			Language:       "en-GB",
			SpeechLanguage: "en-US",
			GatherTimeout:  2,
			Hints:          "interrupt,stop,wait",
		},
	}
}

// Options controls where Load reads from.
type Options struct {
	// File is a YAML file. Empty means the EnvConfigFile variable.
	File string
	// EnvFile is a dotenv file; it is skipped when missing.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load reads ".env", the file named by VOICEBRIDGE_CONFIG and the
// environment.
func Load() (*Config, error) {
	return LoadWith(Options{EnvFile: ".env"})
}

// LoadWith reads configuration from the given sources. The result is not
// validated; call [Config.Validate].
func LoadWith(opts Options) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", opts.EnvFile, err)
		}
		if len(dotenv) > 0 {
			process := lookup
			lookup = func(key string) (string, bool) {
				if v, ok := process(key); ok {
					return v, true
				}
				v, ok := dotenv[key]
				return v, ok
			}
		}
	}

	cfg := Default()
	file := opts.File
	if file == "" {
		file, _ = lookup(EnvConfigFile)
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
	}

	e := &env{lookup: lookup}
	e.apply(cfg)
	if len(e.problems) > 0 {
		return nil, &Error{Problems: e.problems}
	}
	return cfg, nil
}

// env applies environment overrides and collects parse failures.
type env struct {
	lookup   func(string) (string, bool)
	problems []string
}

func (e *env) apply(c *Config) {
	e.str("ADDR", &c.Addr)
	if port, ok := e.lookup("PORT"); ok && port != "" {
		if _, set := e.lookup("ADDR"); !set {
			c.Addr = ":" + port
		}
	}
	e.str("PUBLIC_BASE_URL", &c.PublicBaseURL)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("LOG_FORMAT", &c.LogFormat)

	e.str("LLM_BACKEND", &c.LLM.Backend)
	e.str("OPENAI_API_KEY", &c.LLM.APIKey)
	e.str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	e.str("OPENAI_MODEL", &c.LLM.Model)
	e.str("OPENAI_ASSISTANT_ID", &c.LLM.AssistantID)
	e.integer("HISTORY_WINDOW", &c.LLM.HistoryWindow)
	e.integer("OPENAI_MAX_TOKENS", &c.LLM.MaxTokens)
	e.float("OPENAI_TEMPERATURE", &c.LLM.Temperature)
	e.integer("LLM_MAX_ATTEMPTS", &c.LLM.MaxAttempts)
	e.duration("LLM_TIMEOUT", &c.LLM.Timeout)
	e.duration("POLL_INTERVAL", &c.LLM.PollInterval)
	e.duration("MAX_POLL_WAIT", &c.LLM.MaxPollWait)

	e.float("CONFIDENCE_THRESHOLD", &c.Turn.Threshold)
	e.integer("MAX_SILENT_PROMPTS", &c.Turn.MaxSilentPrompts)
	e.integer("MAX_REPLY_WORDS", &c.Turn.MaxReplyWords)
	e.list("FAREWELLS", &c.Turn.Farewells)

	e.str("TTS_PROVIDER", &c.TTS.Provider)
	e.str("TTS_MODEL", &c.TTS.Model)
	e.str("TTS_VOICE", &c.TTS.Voice)
	e.str("TTS_INSTRUCTIONS", &c.TTS.Instructions)
	e.str("GEMINI_API_KEY", &c.TTS.GeminiAPIKey)
	e.duration("TTS_TIMEOUT", &c.TTS.Timeout)

	e.str("AUDIO_STORE", &c.Audio.Store)
	e.duration("AUDIO_TTL", &c.Audio.TTL)
	e.str("AUDIO_DIR", &c.Audio.Dir)
	e.str("S3_BUCKET", &c.Audio.S3.Bucket)
	e.str("S3_REGION", &c.Audio.S3.Region)
	e.str("S3_PREFIX", &c.Audio.S3.Prefix)
	e.str("S3_ENDPOINT", &c.Audio.S3.Endpoint)
	e.str("S3_ACCESS_KEY_ID", &c.Audio.S3.AccessKeyID)
	e.str("S3_SECRET_ACCESS_KEY", &c.Audio.S3.SecretAccessKey)
	e.boolean("S3_USE_PATH_STYLE", &c.Audio.S3.UsePathStyle)
	e.str("S3_PUBLIC_BASE_URL", &c.Audio.S3.PublicBaseURL)

	e.str("ARCHIVE_DIR", &c.Archive.Dir)

	e.str("TWILIO_ACCOUNT_SID", &c.Twilio.AccountSID)
	e.str("TWILIO_AUTH_TOKEN", &c.Twilio.AuthToken)
	e.boolean("TWILIO_VALIDATE_SIGNATURE", &c.Twilio.ValidateSignature)
	e.str("TWILIO_VOICE", &c.Twilio.Voice)
	e.str("TWILIO_LANGUAGE", &c.Twilio.Language)
	e.str("TWILIO_SPEECH_LANGUAGE", &c.Twilio.SpeechLanguage)
	e.integer("TWILIO_GATHER_TIMEOUT", &c.Twilio.GatherTimeout)
	e.str("TWILIO_HINTS", &c.Twilio.Hints)

	e.boolean("MONITOR_ENABLED", &c.Monitor.Enabled)
	e.str("MONITOR_TOKEN", &c.Monitor.Token)
}

func (e *env) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *env) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *env) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *env) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: %q is not a number", key, v))
		return
	}
	*dst = f
}

func (e *env) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (e *env) duration(key string, dst *Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if err := dst.UnmarshalText([]byte(v)); err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s: %q is not a duration", key, v))
	}
}

// list splits a comma separated value.
func (e *env) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
