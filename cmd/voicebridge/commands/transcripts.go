package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicebridge/pkg/archive"
	"github.com/haivivi/voicebridge/pkg/cli"
)

var (
	flagTranscriptsOutput string
	flagTranscriptsLimit  int
)

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts",
	Short: "Inspect archived call transcripts",
	Long: `Inspect archived call transcripts.

Transcripts are read from ARCHIVE_DIR. The archive is locked while the
server runs; stop the server or copy the directory first.`,
}

var transcriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived calls, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(flagTranscriptsOutput)
		if err != nil {
			return err
		}
		a, err := openArchive()
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.List(cmd.Context(), flagTranscriptsLimit)
		if err != nil {
			return err
		}
		if format == cli.FormatTable && len(records) == 0 {
			cli.PrintWarning(cmd.OutOrStdout(), "no archived calls")
			return nil
		}
		var out any = recordTable(records)
		if format != cli.FormatTable {
			out = records
		}
		return cli.Output(out, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
	},
}

var transcriptsShowCmd = &cobra.Command{
	Use:   "show <call-id>",
	Short: "Show one call transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(flagTranscriptsOutput)
		if err != nil {
			return err
		}
		a, err := openArchive()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Get(cmd.Context(), args[0])
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("no transcript for call %s", args[0])
		}
		if err != nil {
			return err
		}
		if format != cli.FormatTable {
			return cli.Output(rec, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "call %s  caller %s  %s  %s  ended: %s\n",
			rec.CallID, orDash(rec.Caller), cli.FormatTime(rec.StartedAt), cli.FormatDuration(rec.Duration()), rec.Reason)
		return cli.Output(turnTable(rec), cli.OutputOptions{Format: format, Writer: w})
	},
}

func init() {
	transcriptsCmd.PersistentFlags().StringVarP(&flagTranscriptsOutput, "output", "o", "table", "output format (table, yaml, json)")
	transcriptsListCmd.Flags().IntVarP(&flagTranscriptsLimit, "limit", "n", 20, "maximum calls to list (0 for all)")
	transcriptsCmd.AddCommand(transcriptsListCmd)
	transcriptsCmd.AddCommand(transcriptsShowCmd)
	rootCmd.AddCommand(transcriptsCmd)
}

func openArchive() (archive.Archive, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Archive.Dir == "" {
		return nil, errors.New("ARCHIVE_DIR is not set; transcripts were only kept in memory")
	}
	return archive.OpenBadger(archive.BadgerOptions{Dir: cfg.Archive.Dir})
}

// recordTable lists calls.
type recordTable []archive.Record

func (t recordTable) Header() []string {
	return []string{"CALL", "CALLER", "STARTED", "DURATION", "TURNS", "ENDED"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.CallID,
			orDash(r.Caller),
			cli.FormatTime(r.StartedAt),
			cli.FormatDuration(r.Duration()),
			strconv.Itoa(len(r.Turns)),
			r.Reason,
		})
	}
	return rows
}

// turnTable lists the turns of one call.
type turnTable archive.Record

func (t turnTable) Header() []string { return []string{"TIME", "ROLE", "TEXT"} }

func (t turnTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Turns))
	for _, turn := range t.Turns {
		rows = append(rows, []string{turn.CreatedAt.Local().Format("15:04:05"), string(turn.Role), turn.Text})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
