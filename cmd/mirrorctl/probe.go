package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/mirrorctl/pkg/health"
	"github.com/cuemby/mirrorctl/pkg/host"
	"github.com/cuemby/mirrorctl/pkg/metrics"
	"github.com/cuemby/mirrorctl/pkg/output"
	"github.com/spf13/cobra"
)

var errProbeFailed = errors.New("probe failed")

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the mirror is being served",
	Long: `Run diagnostic checks against the local web server: the nginx
configuration test, a TCP connect to the mirror port and an HTTP request for
the directory listing. The workload status is not changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		address, _ := cmd.Flags().GetString("address")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if address == "" {
			port := 80
			if len(settings.Ports) > 0 {
				port = settings.Ports[0].Port
			}
			address = fmt.Sprintf("127.0.0.1:%d", port)
		}

		tcp := health.NewTCPChecker(address)
		tcp.Timeout = timeout

		probe := health.NewProbe(
			health.NamedCheck{Name: "config", Checker: health.NewExecChecker(host.ExecExecutor{}, "nginx", "-t")},
			health.NamedCheck{Name: "listen", Checker: tcp},
			health.NamedCheck{Name: "index", Checker: health.NewHTTPChecker("http://" + address + "/").
				WithHeader("User-Agent", "mirrorctl-probe").
				WithBody("Index of").
				WithTimeout(timeout)},
		)

		reports := probe.Run(cmd.Context())

		if err := metrics.WriteTextfile(settings.Metrics.TextfilePath); err != nil {
			return err
		}
		if err := output.NewPrinter(cmd.OutOrStdout(), format).Print(probeView(reports)); err != nil {
			return err
		}

		if !health.Healthy(reports) {
			return errProbeFailed
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	probeCmd.Flags().String("address", "", "Address to probe (default 127.0.0.1:<first declared port>)")
	probeCmd.Flags().Duration("timeout", 5*time.Second, "Timeout per network check")
	rootCmd.AddCommand(probeCmd)
}

type probeView []health.Report

func (v probeView) Headers() []string {
	return []string{"CHECK", "TYPE", "RESULT", "DURATION", "MESSAGE"}
}

func (v probeView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		result := "ok"
		if !r.Result.Healthy {
			result = "fail"
		}
		rows = append(rows, []string{
			r.Name,
			string(r.Type),
			result,
			r.Result.Duration.Round(time.Millisecond).String(),
			r.Result.Message,
		})
	}
	return rows
}
