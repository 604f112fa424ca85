package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/mirrorctl/pkg/config"
	"github.com/cuemby/mirrorctl/pkg/log"
	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// settings is loaded once per invocation in PersistentPreRunE
var settings *config.Settings

func main() {
	if args, ok := hookArgs(os.Args); ok {
		rootCmd.SetArgs(args)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// hookArgs maps an invocation through a hook file onto the hook command.
// Hook files may be symlinks to the binary named after the event, e.g.
// hooks/install -> /usr/bin/mirrorctl.
func hookArgs(argv []string) ([]string, bool) {
	if len(argv) == 0 {
		return nil, false
	}
	kind, err := types.ParseEventKind(filepath.Base(argv[0]))
	if err != nil {
		return nil, false
	}
	return append([]string{"hook", string(kind)}, argv[1:]...), true
}

var rootCmd = &cobra.Command{
	Use:   "mirrorctl",
	Short: "mirrorctl - lifecycle controller for a cloud image mirror",
	Long: `mirrorctl drives a host that mirrors cloud images and serves them
over HTTP with nginx.

The orchestration runtime invokes it once per lifecycle event (install,
config-changed, start). Each invocation reconciles the host, installs the
sync schedule as the root crontab and reports a workload status.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		charmConfig, _ := cmd.Flags().GetString("charm-config")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if charmConfig != "" {
			loaded.CharmConfig = charmConfig
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		if logJSON {
			loaded.Logging.Format = "json"
		}
		settings = loaded

		log.Init(log.Config{
			Level:      log.Level(settings.Logging.Level),
			JSONOutput: settings.Logging.Format == "json",
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"mirrorctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Settings file (default "+config.DefaultSettingsPath+")")
	rootCmd.PersistentFlags().String("charm-config", "", "Declared configuration snapshot (overrides settings)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
}
