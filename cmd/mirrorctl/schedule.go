package main

import (
	"fmt"
	"time"

	"github.com/cuemby/mirrorctl/pkg/config"
	"github.com/cuemby/mirrorctl/pkg/output"
	"github.com/cuemby/mirrorctl/pkg/schedule"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Preview the configured sync schedule",
	Long: `Show how the declared cron-jobs value is interpreted: the commands a
bootstrap sync would run, the lines it skips and when each entry next fires.

Time fields are checked against standard cron syntax for information only.
The crontab is always installed as written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		cfg, err := config.NewFileSource(settings.CharmConfig).Load()
		if err != nil {
			return err
		}

		view := newScheduleView(schedule.Parse(cfg.CronJobs), time.Now())
		if err := output.NewPrinter(cmd.OutOrStdout(), format).Print(view); err != nil {
			return err
		}

		if format == output.FormatTable {
			for _, s := range view.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped line %d: %q\n", s.Line, s.Content)
			}
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	rootCmd.AddCommand(scheduleCmd)
}

type scheduleEntry struct {
	Line    int        `json:"line" yaml:"line"`
	Spec    string     `json:"spec" yaml:"spec"`
	Command string     `json:"command" yaml:"command"`
	NextRun *time.Time `json:"next_run,omitempty" yaml:"next_run,omitempty"`
	Warning string     `json:"warning,omitempty" yaml:"warning,omitempty"`
}

type scheduleView struct {
	Entries []scheduleEntry        `json:"entries" yaml:"entries"`
	Skipped []schedule.SkippedLine `json:"skipped" yaml:"skipped"`
}

func newScheduleView(result schedule.Result, now time.Time) scheduleView {
	view := scheduleView{
		Entries: make([]scheduleEntry, 0, len(result.Entries)),
		Skipped: result.Skipped,
	}
	for _, e := range result.Entries {
		entry := scheduleEntry{Line: e.Line, Spec: e.Spec, Command: e.Command}
		if err := schedule.Lint(e); err != nil {
			entry.Warning = err.Error()
		} else if next, err := schedule.NextRun(e, now); err == nil {
			entry.NextRun = &next
		}
		view.Entries = append(view.Entries, entry)
	}
	return view
}

func (v scheduleView) Headers() []string {
	return []string{"LINE", "SCHEDULE", "COMMAND", "NEXT RUN"}
}

func (v scheduleView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		next := e.Warning
		if e.NextRun != nil {
			next = e.NextRun.Local().Format(time.RFC3339)
		}
		rows = append(rows, []string{fmt.Sprint(e.Line), e.Spec, e.Command, next})
	}
	return rows
}
