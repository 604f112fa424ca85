package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/mirrorctl/pkg/config"
	"github.com/cuemby/mirrorctl/pkg/output"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or edit the declared configuration snapshot",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the declared configuration and the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewFileSource(settings.CharmConfig).Load()
		if err != nil {
			return err
		}
		return output.PrintYAML(cmd.OutOrStdout(), map[string]any{
			"charm":    cfg,
			"settings": settings,
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY=VALUE...",
	Short: "Set declared configuration keys",
	Long: `Update the declared configuration snapshot when running without an
orchestration runtime. Run 'mirrorctl config-changed' afterwards to apply.

Keys:
  cron-jobs        multi-line schedule, one crontab line per line
  bootstrap-sync   run the schedule's commands once during install (true/false)

Examples:
  mirrorctl config set cron-jobs="$(cat sync.cron)"
  mirrorctl config set bootstrap-sync=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Start from the file alone so environment overrides are not persisted
		cfg, err := config.LoadCharmConfigFile(settings.CharmConfig)
		if err != nil {
			return err
		}

		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid assignment %q, expected KEY=VALUE", arg)
			}
			switch key {
			case "cron-jobs":
				cfg.CronJobs = value
			case "bootstrap-sync":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("invalid bootstrap-sync value %q: %w", value, err)
				}
				cfg.BootstrapSync = b
			default:
				return fmt.Errorf("unknown configuration key %q", key)
			}
		}

		if err := config.SaveCharmConfig(cfg, settings.CharmConfig); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", settings.CharmConfig)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
