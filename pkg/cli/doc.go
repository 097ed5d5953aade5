// Package cli holds output helpers shared by the voicebridge commands:
// YAML, JSON and styled table rendering, plus short status lines.
//
//	cli.Output(records, cli.OutputOptions{
//	    Format: cli.FormatTable,
//	    Writer: cmd.OutOrStdout(),
//	})
package cli
