package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/mirrorctl/pkg/config"
	"github.com/cuemby/mirrorctl/pkg/controller"
	"github.com/cuemby/mirrorctl/pkg/events"
	"github.com/cuemby/mirrorctl/pkg/host"
	"github.com/cuemby/mirrorctl/pkg/log"
	"github.com/cuemby/mirrorctl/pkg/metrics"
	"github.com/cuemby/mirrorctl/pkg/runner"
	"github.com/cuemby/mirrorctl/pkg/storage"
	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/spf13/cobra"
)

// errBlocked makes the process exit non-zero when an event ends blocked
var errBlocked = errors.New("workload blocked")

var hookCmd = &cobra.Command{
	Use:   "hook EVENT",
	Short: "Handle a lifecycle event",
	Long: `Handle one lifecycle event delivered by the orchestration runtime.

Events:
  install          install packages, configure the site, bootstrap sync, install schedule
  config-changed   reinstall the schedule and declare ports
  start            start and enable the web server

The command exits non-zero when the event leaves the workload blocked.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: eventNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		evt, err := events.Parse(args[0])
		if err != nil {
			return err
		}
		return runHook(cmd, evt)
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)

	// install, config-changed and start are also top-level commands
	for _, kind := range types.EventKinds {
		kind := kind
		rootCmd.AddCommand(&cobra.Command{
			Use:   string(kind),
			Short: fmt.Sprintf("Handle the %s event", kind),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHook(cmd, events.New(kind))
			},
		})
	}
}

func eventNames() []string {
	names := make([]string, 0, len(types.EventKinds))
	for _, kind := range types.EventKinds {
		names = append(names, string(kind))
	}
	return names
}

func runHook(cmd *cobra.Command, evt *events.Event) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.WithEvent(string(evt.Kind), evt.ID)

	// One event at a time per host. Only an expired lock_timeout stops the
	// event: another hook is mid-flight and its host actions must not interleave.
	lock, err := storage.AcquireHookLock(ctx, settings.StateDir, settings.LockTimeout)
	switch {
	case errors.Is(err, storage.ErrLocked):
		return fmt.Errorf("another event is being handled: %w", err)
	case err != nil:
		logger.Warn().Err(err).Msg("failed to lock state directory, continuing without serialization")
	default:
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn().Err(err).Msg("failed to release hook lock")
			}
		}()
	}

	executor := host.ExecExecutor{Env: []string{"DEBIAN_FRONTEND=noninteractive"}}

	reconciler := host.NewReconciler(host.Config{
		SitesAvailableDir: settings.Nginx.SitesAvailableDir,
		SitesEnabledDir:   settings.Nginx.SitesEnabledDir,
		SiteName:          settings.Nginx.SiteName,
		DefaultSiteName:   settings.Nginx.DefaultSiteName,
		WebService:        settings.Service,
		CrontabUser:       settings.CrontabUser,
		ScratchDir:        settings.ScratchDir,
	}, executor)

	var reporters controller.MultiReporter
	store, err := storage.NewBoltStore(settings.StateDir, storage.Options{Timeout: settings.LockTimeout})
	if err != nil {
		logger.Warn().Err(err).Str("state_dir", settings.StateDir).Msg("status store unavailable, status is not recorded locally")
	} else {
		reporters = append(reporters, store)
	}
	if rr := controller.NewRuntimeReporter(executor, settings.StatusTool); rr != nil {
		reporters = append(reporters, rr)
	} else {
		logger.Debug().Str("tool", settings.StatusTool).Msg("status tool not found, not forwarding status")
	}

	ctrl := controller.NewController(
		reconciler,
		runner.NewRunner(runner.ExecShell{}),
		config.NewFileSource(settings.CharmConfig),
		reporters,
		controller.Options{
			Packages:   settings.Packages,
			WebService: settings.Service,
			Ports:      settings.Ports,
		},
	)

	outcome := ctrl.Handle(ctx, evt)

	if err := metrics.WriteTextfile(settings.Metrics.TextfilePath); err != nil {
		logger.Warn().Err(err).Msg("failed to write metrics")
	}

	if errors.Is(outcome.Err, types.ErrUnknownEvent) {
		return outcome.Err
	}
	if outcome.Blocked() {
		return fmt.Errorf("%w: %s", errBlocked, outcome.Status.Message)
	}

	fmt.Fprintln(cmd.OutOrStdout(), outcome.Status.String())
	return nil
}
