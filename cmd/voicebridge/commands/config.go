package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicebridge/pkg/cli"
	"github.com/haivivi/voicebridge/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var flagConfigOutput string

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print it with secrets hidden",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		format, err := cli.ParseFormat(flagConfigOutput)
		if err != nil {
			return err
		}
		if IsVerbose() {
			if err := cli.Output(cfg.Redacted(), cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()}); err != nil {
				return err
			}
		}

		var cerr *config.Error
		if err := cfg.Validate(); errors.As(err, &cerr) {
			for _, p := range cerr.Problems {
				cli.PrintError(cmd.ErrOrStderr(), "%s", p)
			}
			return errors.New("configuration is invalid")
		} else if err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "configuration is valid (backend %s, tts %s, audio %s)",
			cfg.LLM.Backend, cfg.TTS.Provider, cfg.Audio.Store)
		return nil
	},
}

func init() {
	configCheckCmd.Flags().StringVarP(&flagConfigOutput, "output", "o", "yaml", "format for --verbose output (yaml, json)")
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
