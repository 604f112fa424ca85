package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/mirrorctl/pkg/output"
	"github.com/cuemby/mirrorctl/pkg/storage"
	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the workload status and recent transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("history")
		wait, _ := cmd.Flags().GetDuration("wait")

		current, history, err := readStatus(wait, limit)
		switch {
		case errors.Is(err, storage.ErrNoStatus):
			fmt.Fprintln(cmd.OutOrStdout(), "No status recorded yet")
			return nil
		case errors.Is(err, storage.ErrLocked):
			fmt.Fprintln(cmd.OutOrStdout(), "Status locked by a running event, try again shortly")
			return nil
		case err != nil:
			return err
		}

		return output.NewPrinter(cmd.OutOrStdout(), format).Print(statusView{
			Current: current,
			History: history,
		})
	},
}

func init() {
	statusCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	statusCmd.Flags().Int("history", 10, "Number of transitions to show (0 for all)")
	statusCmd.Flags().Duration("wait", 5*time.Second, "How long to wait for a running event to release the status database")
	rootCmd.AddCommand(statusCmd)
}

// readStatus waits at most wait for a writer to let go of the database
func readStatus(wait time.Duration, limit int) (*types.StatusRecord, []*types.StatusRecord, error) {
	store, err := storage.NewBoltStore(settings.StateDir, storage.Options{
		ReadOnly: true,
		Timeout:  wait,
	})
	if err != nil {
		return nil, nil, err
	}
	current, err := store.Current()
	if err != nil {
		return nil, nil, err
	}
	history, err := store.History(limit)
	if err != nil {
		return nil, nil, err
	}
	return current, history, nil
}

func outputFormat(cmd *cobra.Command) (output.Format, error) {
	value, _ := cmd.Flags().GetString("output")
	return output.ParseFormat(value)
}

// statusView is the `mirrorctl status` document
type statusView struct {
	Current *types.StatusRecord   `json:"current" yaml:"current"`
	History []*types.StatusRecord `json:"history" yaml:"history"`
}

func (v statusView) Headers() []string {
	return []string{"TIME", "EVENT", "STATUS", "MESSAGE", "EVENT ID"}
}

// Rows lists the history newest first; the first row is the current status
func (v statusView) Rows() [][]string {
	rows := make([][]string, 0, len(v.History))
	for _, r := range v.History {
		rows = append(rows, []string{
			r.Timestamp.Local().Format(time.RFC3339),
			string(r.Event),
			output.StatusKind(r.Status.Kind),
			r.Status.Message,
			r.EventID,
		})
	}
	return rows
}
