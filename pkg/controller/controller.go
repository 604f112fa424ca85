package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/mirrorctl/pkg/events"
	"github.com/cuemby/mirrorctl/pkg/log"
	"github.com/cuemby/mirrorctl/pkg/metrics"
	"github.com/cuemby/mirrorctl/pkg/runner"
	"github.com/cuemby/mirrorctl/pkg/schedule"
	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/rs/zerolog"
)

// Host is the set of idempotent host actions the controller sequences
type Host interface {
	EnsurePackages(ctx context.Context, names []string) error
	ConfigureSite(ctx context.Context) error
	InstallSchedule(ctx context.Context, spec string) error
	EnsureServiceRunning(ctx context.Context, name string) error
	DeclarePorts(ctx context.Context, ports []types.PortMapping) error
}

// CommandRunner executes bootstrap commands with continue-on-failure semantics
type CommandRunner interface {
	Run(ctx context.Context, commands []string) runner.Summary
}

// ConfigSource yields the current declared configuration
type ConfigSource interface {
	Load() (types.CharmConfig, error)
}

// StatusReporter receives every status transition. Reporters are sinks: the
// controller never reads status back.
type StatusReporter interface {
	ReportStatus(ctx context.Context, evt *events.Event, status types.Status) error
}

// Options are the fixed workload parameters
type Options struct {
	// Packages installed on install (web server first, mirroring tool second)
	Packages []string

	// WebService is the systemd unit started on start
	WebService string

	// Ports declared on config-changed
	Ports []types.PortMapping
}

// DefaultOptions returns the nginx + simplestreams workload
func DefaultOptions() Options {
	return Options{
		Packages:   []string{"nginx", "simplestreams"},
		WebService: "nginx",
		Ports:      []types.PortMapping{{Port: 80, Protocol: "tcp"}},
	}
}

// Outcome is the result of handling one event
type Outcome struct {
	Event *events.Event

	// Transitions lists every status set while handling, in order
	Transitions []types.Status

	// Status is the last transition, or unknown if none happened
	Status types.Status

	// Err is the failure that blocked the event, if any
	Err error

	// Bootstrap is set when bootstrap commands ran during install
	Bootstrap *runner.Summary
}

// Blocked reports whether the event ended blocked
func (o *Outcome) Blocked() bool {
	return o.Status.Kind == types.StatusBlocked
}

// Controller maps lifecycle events onto host actions and derives status
type Controller struct {
	host     Host
	runner   CommandRunner
	config   ConfigSource
	reporter StatusReporter
	opts     Options
}

// NewController creates a lifecycle controller
func NewController(host Host, runner CommandRunner, config ConfigSource, reporter StatusReporter, opts Options) *Controller {
	return &Controller{
		host:     host,
		runner:   runner,
		config:   config,
		reporter: reporter,
		opts:     opts,
	}
}

// Handle processes one event to completion. Failures are reflected in the
// outcome's status; Handle itself does not return an error.
func (c *Controller) Handle(ctx context.Context, evt *events.Event) *Outcome {
	timer := metrics.NewTimer()

	h := &handling{
		controller: c,
		outcome: &Outcome{
			Event:  evt,
			Status: types.UnknownStatus(),
		},
		logger: log.WithEvent(string(evt.Kind), evt.ID),
	}
	h.logger.Info().Msg("handling event")

	switch evt.Kind {
	case types.EventInstall:
		h.install(ctx)
	case types.EventConfigChanged:
		h.configChanged(ctx)
	case types.EventStart:
		h.start(ctx)
	default:
		h.outcome.Err = fmt.Errorf("%w: %q", types.ErrUnknownEvent, evt.Kind)
		h.logger.Error().Err(h.outcome.Err).Msg("event not handled")
		return h.outcome
	}

	timer.ObserveDurationVec(metrics.EventDuration, string(evt.Kind))
	metrics.EventsTotal.WithLabelValues(string(evt.Kind), string(h.outcome.Status.Kind)).Inc()
	metrics.SetStatus(h.outcome.Status.Kind)

	h.logger.Info().
		Str("status", h.outcome.Status.String()).
		Dur("duration", timer.Duration()).
		Msg("event handled")

	return h.outcome
}

// handling is the state of one Handle call
type handling struct {
	controller *Controller
	outcome    *Outcome
	logger     zerolog.Logger
}

func (h *handling) set(ctx context.Context, status types.Status) {
	h.outcome.Transitions = append(h.outcome.Transitions, status)
	h.outcome.Status = status

	if h.controller.reporter == nil {
		return
	}
	if err := h.controller.reporter.ReportStatus(ctx, h.outcome.Event, status); err != nil {
		h.logger.Warn().Err(err).Str("status", status.String()).Msg("failed to report status")
	}
}

func (h *handling) block(ctx context.Context, prefix string, err error) {
	h.outcome.Err = err
	h.logger.Error().Err(err).Msg(prefix)
	h.set(ctx, types.Blocked(fmt.Sprintf("%s: %v", prefix, err)))
}

func (h *handling) install(ctx context.Context) {
	c := h.controller
	h.set(ctx, types.Maintenance("installing"))

	cfg, err := c.config.Load()
	if err != nil {
		h.block(ctx, "installation failed", fmt.Errorf("failed to read configuration: %w", err))
		return
	}

	if err := c.host.EnsurePackages(ctx, c.opts.Packages); err != nil {
		h.block(ctx, "installation failed", err)
		return
	}

	if err := c.host.ConfigureSite(ctx); err != nil {
		h.block(ctx, "installation failed", err)
		return
	}

	spec := strings.TrimSpace(cfg.CronJobs)
	switch {
	case !cfg.BootstrapSync:
		h.logger.Info().Msg("bootstrap sync disabled, skipping")
	case spec == "":
		h.logger.Info().Msg("no cron jobs configured, skipping bootstrap sync")
	default:
		h.set(ctx, types.Maintenance("bootstrap"))
		commands := schedule.ParseCommands(spec)
		summary := c.runner.Run(ctx, commands)
		h.outcome.Bootstrap = &summary
		if summary.Failed() > 0 {
			h.logger.Warn().
				Int("failed", summary.Failed()).
				Int("attempted", summary.Attempted()).
				Msg("bootstrap sync finished with failures")
		}
	}

	if err := c.host.InstallSchedule(ctx, cfg.CronJobs); err != nil {
		h.block(ctx, "installation failed", err)
		return
	}

	h.set(ctx, types.Maintenance("install complete"))
}

func (h *handling) configChanged(ctx context.Context) {
	c := h.controller
	h.set(ctx, types.Maintenance("updating configuration"))

	cfg, err := c.config.Load()
	if err != nil {
		h.block(ctx, "configuration failed", fmt.Errorf("failed to read configuration: %w", err))
		return
	}

	if err := c.host.InstallSchedule(ctx, cfg.CronJobs); err != nil {
		h.block(ctx, "configuration failed", err)
		return
	}

	if err := c.host.DeclarePorts(ctx, c.opts.Ports); err != nil {
		h.block(ctx, "configuration failed", err)
		return
	}

	h.set(ctx, types.Active("ready"))
}

func (h *handling) start(ctx context.Context) {
	c := h.controller

	if err := c.host.EnsureServiceRunning(ctx, c.opts.WebService); err != nil {
		h.block(ctx, fmt.Sprintf("failed to start %s", c.opts.WebService), err)
		return
	}

	h.set(ctx, types.Active("ready"))
}
