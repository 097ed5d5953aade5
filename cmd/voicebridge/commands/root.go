package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicebridge/pkg/config"
)

var (
	// Global flags
	verbose    bool
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Phone voice assistant bridging Twilio calls to OpenAI",
	Long: `voicebridge - answers phone calls with a language model.

Twilio posts call events to the webhook server; each caller utterance is
answered by OpenAI (chat completions or an Assistants run) and spoken back
with a Twilio voice or a synthesized clip.

Configuration is read from, in increasing priority:
  a YAML file (--config or VOICEBRIDGE_CONFIG)
  a dotenv file (--env-file, default .env)
  the process environment

Examples:
  # Check the configuration without starting
  voicebridge config check

  # Run the server
  OPENAI_API_KEY=sk-... voicebridge serve --addr :9000

  # Show the latest archived calls
  voicebridge transcripts list -n 20`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file, ignored when missing")
}

// loadConfig loads configuration from the global flag sources.
func loadConfig() (*config.Config, error) {
	return config.LoadWith(config.Options{File: configFile, EnvFile: envFile})
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// newLogger installs the default slog handler described by cfg.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
