package config

import (
	"fmt"
	"strings"

	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileSource reads the declared configuration snapshot from a YAML file.
// It is read fresh on every Load; a missing file yields the defaults, and
// MIRRORCTL_CRON_JOBS / MIRRORCTL_BOOTSTRAP_SYNC override the file.
type FileSource struct {
	Path string
}

// NewFileSource creates a source for path
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load returns the current snapshot
func (s *FileSource) Load() (types.CharmConfig, error) {
	return loadCharmConfig(s.Path, true)
}

// LoadCharmConfigFile reads only what is stored at path, ignoring the
// environment overrides. Use it when the result is written back.
func LoadCharmConfigFile(path string) (types.CharmConfig, error) {
	return loadCharmConfig(path, false)
}

func loadCharmConfig(path string, withEnv bool) (types.CharmConfig, error) {
	defaults := types.DefaultCharmConfig()

	v := viper.New()
	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()
	}
	v.SetDefault("cron-jobs", defaults.CronJobs)
	v.SetDefault("bootstrap-sync", defaults.BootstrapSync)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if _, err := readConfigFile(v); err != nil {
			return types.CharmConfig{}, err
		}
	}

	var cfg types.CharmConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return types.CharmConfig{}, fmt.Errorf("failed to unmarshal charm config: %w", err)
	}
	return cfg, nil
}

// SaveCharmConfig writes a snapshot that FileSource can read back
func SaveCharmConfig(cfg types.CharmConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal charm config: %w", err)
	}
	return writeFile(path, data, 0600)
}
