package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsPath is read when --config is not given. A missing file is
// not an error.
const DefaultSettingsPath = "/etc/mirrorctl/mirrorctl.yaml"

// EnvPrefix prefixes every environment override, e.g.
// MIRRORCTL_NGINX_SITES_ENABLED_DIR or MIRRORCTL_CRON_JOBS
const EnvPrefix = "MIRRORCTL"

// Settings are the controller's own parameters. They describe the host, not
// the declared workload configuration (see types.CharmConfig).
type Settings struct {
	// StateDir holds the status database
	StateDir string `mapstructure:"state_dir" validate:"required" yaml:"state_dir"`

	// ScratchDir receives the temporary crontab file (empty: os.TempDir())
	ScratchDir string `mapstructure:"scratch_dir" yaml:"scratch_dir,omitempty"`

	// CharmConfig is the declared configuration snapshot
	CharmConfig string `mapstructure:"charm_config" validate:"required" yaml:"charm_config"`

	Nginx NginxSettings `mapstructure:"nginx" yaml:"nginx"`

	// Packages are installed on install, web server first
	Packages []string `mapstructure:"packages" validate:"required,min=1,dive,required" yaml:"packages"`

	// Service is the systemd unit started on start
	Service string `mapstructure:"service" validate:"required" yaml:"service"`

	// CrontabUser owns the installed schedule
	CrontabUser string `mapstructure:"crontab_user" validate:"required" yaml:"crontab_user"`

	Ports []types.PortMapping `mapstructure:"ports" validate:"required,min=1,dive" yaml:"ports"`

	// StatusTool forwards transitions to the runtime when found on PATH
	StatusTool string `mapstructure:"status_tool" yaml:"status_tool"`

	// LockTimeout bounds the wait for another hook holding the state lock.
	// Zero waits indefinitely.
	LockTimeout time.Duration `mapstructure:"lock_timeout" validate:"gte=0" yaml:"lock_timeout"`

	Metrics MetricsSettings `mapstructure:"metrics" yaml:"metrics"`

	Logging LoggingSettings `mapstructure:"logging" yaml:"logging"`
}

// NginxSettings locate the web server's site definitions
type NginxSettings struct {
	SitesAvailableDir string `mapstructure:"sites_available_dir" validate:"required" yaml:"sites_available_dir"`
	SitesEnabledDir   string `mapstructure:"sites_enabled_dir" validate:"required" yaml:"sites_enabled_dir"`
	SiteName          string `mapstructure:"site_name" validate:"required" yaml:"site_name"`
	DefaultSiteName   string `mapstructure:"default_site_name" validate:"required" yaml:"default_site_name"`
}

// MetricsSettings configure the node_exporter textfile output
type MetricsSettings struct {
	// TextfilePath is rewritten after every event. Empty disables it.
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path,omitempty"`
}

// LoggingSettings configure pkg/log
type LoggingSettings struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
}

// DefaultSettings returns the Debian/Ubuntu layout
func DefaultSettings() *Settings {
	return &Settings{
		StateDir:    "/var/lib/mirrorctl",
		CharmConfig: "/var/lib/mirrorctl/config.yaml",
		Nginx: NginxSettings{
			SitesAvailableDir: "/etc/nginx/sites-available",
			SitesEnabledDir:   "/etc/nginx/sites-enabled",
			SiteName:          "image-mirror",
			DefaultSiteName:   "default",
		},
		Packages:    []string{"nginx", "simplestreams"},
		Service:     "nginx",
		CrontabUser: "root",
		Ports:       []types.PortMapping{{Port: 80, Protocol: "tcp"}},
		StatusTool:  "status-set",
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads settings from path, the environment and defaults, in that order
// of precedence (environment highest). An empty path means
// DefaultSettingsPath.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setupViper(v, path)
	setDefaults(v, DefaultSettings())

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	ApplyDefaults(&settings)

	if err := Validate(&settings); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	return &settings, nil
}

// ApplyDefaults fills values viper cannot default, such as list entries
func ApplyDefaults(s *Settings) {
	defaults := DefaultSettings()

	if len(s.Packages) == 0 {
		s.Packages = defaults.Packages
	}
	if len(s.Ports) == 0 {
		s.Ports = defaults.Ports
	}
	for i := range s.Ports {
		s.Ports[i].Protocol = strings.ToLower(s.Ports[i].Protocol)
		if s.Ports[i].Protocol == "" {
			s.Ports[i].Protocol = "tcp"
		}
	}
	s.Logging.Level = strings.ToLower(s.Logging.Level)
	s.Logging.Format = strings.ToLower(s.Logging.Format)
}

var validate = validator.New()

// Validate checks struct constraints
func Validate(s *Settings) error {
	return validate.Struct(s)
}

// Save writes settings as YAML
func Save(s *Settings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return writeFile(path, data, 0644)
}

func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultSettingsPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
}

// setDefaults registers every scalar key so AutomaticEnv can override it
// without a settings file
func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("scratch_dir", d.ScratchDir)
	v.SetDefault("charm_config", d.CharmConfig)
	v.SetDefault("nginx.sites_available_dir", d.Nginx.SitesAvailableDir)
	v.SetDefault("nginx.sites_enabled_dir", d.Nginx.SitesEnabledDir)
	v.SetDefault("nginx.site_name", d.Nginx.SiteName)
	v.SetDefault("nginx.default_site_name", d.Nginx.DefaultSiteName)
	v.SetDefault("packages", d.Packages)
	v.SetDefault("service", d.Service)
	v.SetDefault("crontab_user", d.CrontabUser)
	v.SetDefault("status_tool", d.StatusTool)
	v.SetDefault("lock_timeout", d.LockTimeout)
	v.SetDefault("metrics.textfile_path", d.Metrics.TextfilePath)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// readConfigFile reports whether a file was read. A missing file is fine.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		durationDecodeHook(),
	)
}

// durationDecodeHook accepts "30s" style strings and raw nanoseconds
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return time.Duration(0), nil
			}
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
