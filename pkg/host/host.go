package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/mirrorctl/pkg/log"
	"github.com/cuemby/mirrorctl/pkg/metrics"
	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/rs/zerolog"
)

// SiteConfig is the nginx site serving the mirror tree with directory listing
const SiteConfig = `server {
    listen 80;
    root /var/www/html;
    location / {
        autoindex on;
    }
}
`

// Config locates the host artifacts the reconciler owns
type Config struct {
	// SitesAvailableDir holds nginx site definitions
	SitesAvailableDir string

	// SitesEnabledDir holds references to enabled site definitions
	SitesEnabledDir string

	// SiteName is the mirror's site definition file name
	SiteName string

	// DefaultSiteName is the distribution site that conflicts with ours
	DefaultSiteName string

	// WebService is the systemd unit reloaded after site changes
	WebService string

	// CrontabUser is the principal whose crontab is replaced
	CrontabUser string

	// ScratchDir receives the temporary crontab file (default: os.TempDir())
	ScratchDir string
}

// DefaultConfig returns the Debian/Ubuntu nginx layout
func DefaultConfig() Config {
	return Config{
		SitesAvailableDir: "/etc/nginx/sites-available",
		SitesEnabledDir:   "/etc/nginx/sites-enabled",
		SiteName:          "image-mirror",
		DefaultSiteName:   "default",
		WebService:        "nginx",
		CrontabUser:       "root",
	}
}

// Reconciler applies idempotent host actions. Every action is safe to repeat
// on each lifecycle event.
type Reconciler struct {
	config Config
	exec   Executor
	logger zerolog.Logger
}

// NewReconciler creates a host reconciler
func NewReconciler(config Config, executor Executor) *Reconciler {
	if executor == nil {
		executor = ExecExecutor{}
	}
	return &Reconciler{
		config: config,
		exec:   executor,
		logger: log.WithComponent("host"),
	}
}

// SitePath is where the mirror's site definition is written
func (r *Reconciler) SitePath() string {
	return filepath.Join(r.config.SitesAvailableDir, r.config.SiteName)
}

// EnsurePackages refreshes the package index and installs names
func (r *Reconciler) EnsurePackages(ctx context.Context, names []string) error {
	r.logger.Info().Msg("updating apt cache")
	if err := r.exec.Run(ctx, "apt-get", "update"); err != nil {
		return r.fail("ensure_packages", fmt.Errorf("failed to update package index: %w", err))
	}

	r.logger.Info().Strs("packages", names).Msg("installing packages")
	args := append([]string{"install", "-y"}, names...)
	if err := r.exec.Run(ctx, "apt-get", args...); err != nil {
		return r.fail("ensure_packages", fmt.Errorf("failed to install packages: %w", err))
	}

	return nil
}

// ConfigureSite writes the mirror site, swaps it in for the default site and
// reloads the web server
func (r *Reconciler) ConfigureSite(ctx context.Context) error {
	sitePath := r.SitePath()
	r.logger.Info().Str("path", sitePath).Msg("writing site definition")

	if err := os.MkdirAll(r.config.SitesAvailableDir, 0755); err != nil {
		return r.fail("configure_site", fmt.Errorf("failed to create sites directory: %w", err))
	}
	if err := os.WriteFile(sitePath, []byte(SiteConfig), 0644); err != nil {
		return r.fail("configure_site", fmt.Errorf("failed to write site definition: %w", err))
	}

	// Lstat so a dangling default link is removed too
	defaultEnabled := filepath.Join(r.config.SitesEnabledDir, r.config.DefaultSiteName)
	if _, err := os.Lstat(defaultEnabled); err == nil {
		r.logger.Info().Str("path", defaultEnabled).Msg("disabling default site")
		if err := os.Remove(defaultEnabled); err != nil && !errors.Is(err, os.ErrNotExist) {
			return r.fail("configure_site", fmt.Errorf("failed to disable default site: %w", err))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return r.fail("configure_site", fmt.Errorf("failed to inspect default site: %w", err))
	}

	if err := os.MkdirAll(r.config.SitesEnabledDir, 0755); err != nil {
		return r.fail("configure_site", fmt.Errorf("failed to create enabled sites directory: %w", err))
	}
	siteEnabled := filepath.Join(r.config.SitesEnabledDir, r.config.SiteName)
	if _, err := os.Lstat(siteEnabled); errors.Is(err, os.ErrNotExist) {
		r.logger.Info().Str("path", siteEnabled).Msg("enabling mirror site")
		if err := os.Symlink(sitePath, siteEnabled); err != nil && !errors.Is(err, os.ErrExist) {
			return r.fail("configure_site", fmt.Errorf("failed to enable site: %w", err))
		}
	} else if err != nil {
		return r.fail("configure_site", fmt.Errorf("failed to inspect enabled site: %w", err))
	}

	r.logger.Info().Str("service", r.config.WebService).Msg("reloading web server")
	if err := r.exec.Run(ctx, "systemctl", "reload", r.config.WebService); err != nil {
		return r.fail("configure_site", fmt.Errorf("failed to reload %s: %w", r.config.WebService, err))
	}

	return nil
}

// InstallSchedule replaces the crontab of the configured user with spec. An
// empty spec leaves any existing crontab untouched.
func (r *Reconciler) InstallSchedule(ctx context.Context, spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		r.logger.Info().Msg("no cron jobs configured")
		return nil
	}

	r.logger.Info().Str("user", r.config.CrontabUser).Msg("configuring cron jobs")

	scratch, err := os.CreateTemp(r.config.ScratchDir, "mirrorctl-*.cron")
	if err != nil {
		return r.fail("install_schedule", fmt.Errorf("failed to create scratch crontab: %w", err))
	}
	scratchPath := scratch.Name()
	defer func() {
		if err := os.Remove(scratchPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn().Err(err).Str("path", scratchPath).Msg("failed to remove scratch crontab")
		}
	}()

	if _, err := scratch.WriteString(spec + "\n"); err != nil {
		scratch.Close()
		return r.fail("install_schedule", fmt.Errorf("failed to write scratch crontab: %w", err))
	}
	if err := scratch.Close(); err != nil {
		return r.fail("install_schedule", fmt.Errorf("failed to close scratch crontab: %w", err))
	}

	if err := r.exec.Run(ctx, "crontab", "-u", r.config.CrontabUser, scratchPath); err != nil {
		return r.fail("install_schedule", fmt.Errorf("failed to install crontab: %w", err))
	}

	metrics.ScheduleInstalls.Inc()
	r.logger.Info().Msg("cron jobs installed successfully")
	return nil
}

// EnsureServiceRunning starts name now and enables it at boot
func (r *Reconciler) EnsureServiceRunning(ctx context.Context, name string) error {
	r.logger.Info().Str("service", name).Msg("starting service")
	if err := r.exec.Run(ctx, "systemctl", "start", name); err != nil {
		return r.fail("ensure_service", fmt.Errorf("failed to start %s: %w", name, err))
	}
	if err := r.exec.Run(ctx, "systemctl", "enable", name); err != nil {
		return r.fail("ensure_service", fmt.Errorf("failed to enable %s: %w", name, err))
	}
	return nil
}

// DeclarePorts tells the runtime which ports the workload exposes
func (r *Reconciler) DeclarePorts(ctx context.Context, ports []types.PortMapping) error {
	for _, port := range ports {
		r.logger.Info().Str("port", port.String()).Msg("declaring port")
		if err := r.exec.Run(ctx, "open-port", port.String()); err != nil {
			return r.fail("declare_ports", fmt.Errorf("failed to open port %s: %w", port, err))
		}
	}
	return nil
}

func (r *Reconciler) fail(action string, err error) error {
	metrics.HostActionFailures.WithLabelValues(action).Inc()
	return err
}
