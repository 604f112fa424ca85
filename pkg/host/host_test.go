package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records commands and fails those whose command line starts
// with a configured prefix
type fakeExecutor struct {
	calls    []string
	failOn   string
	crontabs []string
	scratch  []string
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) error {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, line)

	if name == "crontab" && len(args) > 0 {
		path := args[len(args)-1]
		f.scratch = append(f.scratch, path)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		f.crontabs = append(f.crontabs, string(data))
	}

	if f.failOn != "" && strings.HasPrefix(line, f.failOn) {
		return fmt.Errorf("%w: %s exited 1", ErrCommandFailed, line)
	}
	return nil
}

func newTestReconciler(t *testing.T, exec Executor) (*Reconciler, Config) {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.SitesAvailableDir = filepath.Join(root, "sites-available")
	cfg.SitesEnabledDir = filepath.Join(root, "sites-enabled")
	cfg.ScratchDir = filepath.Join(root, "scratch")
	require.NoError(t, os.MkdirAll(cfg.ScratchDir, 0755))
	return NewReconciler(cfg, exec), cfg
}

func TestEnsurePackages(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestReconciler(t, exec)

	err := r.EnsurePackages(context.Background(), []string{"nginx", "simplestreams"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"apt-get update",
		"apt-get install -y nginx simplestreams",
	}, exec.calls)
}

func TestEnsurePackages_Failures(t *testing.T) {
	tests := []struct {
		name          string
		failOn        string
		expectedCalls int
	}{
		{name: "index refresh fails", failOn: "apt-get update", expectedCalls: 1},
		{name: "install fails", failOn: "apt-get install", expectedCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{failOn: tt.failOn}
			r, _ := newTestReconciler(t, exec)

			err := r.EnsurePackages(context.Background(), []string{"nginx"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCommandFailed))
			assert.Len(t, exec.calls, tt.expectedCalls)
		})
	}
}

func TestConfigureSite(t *testing.T) {
	exec := &fakeExecutor{}
	r, cfg := newTestReconciler(t, exec)

	// Distribution default site enabled
	require.NoError(t, os.MkdirAll(cfg.SitesEnabledDir, 0755))
	defaultPath := filepath.Join(cfg.SitesAvailableDir, "default")
	require.NoError(t, os.MkdirAll(cfg.SitesAvailableDir, 0755))
	require.NoError(t, os.WriteFile(defaultPath, []byte("server {}"), 0644))
	require.NoError(t, os.Symlink(defaultPath, filepath.Join(cfg.SitesEnabledDir, "default")))

	require.NoError(t, r.ConfigureSite(context.Background()))

	data, err := os.ReadFile(r.SitePath())
	require.NoError(t, err)
	assert.Equal(t, SiteConfig, string(data))

	_, err = os.Lstat(filepath.Join(cfg.SitesEnabledDir, "default"))
	assert.True(t, os.IsNotExist(err), "default site should be disabled")

	target, err := os.Readlink(filepath.Join(cfg.SitesEnabledDir, "image-mirror"))
	require.NoError(t, err)
	assert.Equal(t, r.SitePath(), target)

	assert.Equal(t, []string{"systemctl reload nginx"}, exec.calls)
}

func TestConfigureSite_Idempotent(t *testing.T) {
	exec := &fakeExecutor{}
	r, cfg := newTestReconciler(t, exec)

	require.NoError(t, r.ConfigureSite(context.Background()))
	require.NoError(t, r.ConfigureSite(context.Background()))

	entries, err := os.ReadDir(cfg.SitesEnabledDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "image-mirror", entries[0].Name())

	target, err := os.Readlink(filepath.Join(cfg.SitesEnabledDir, "image-mirror"))
	require.NoError(t, err)
	assert.Equal(t, r.SitePath(), target)

	assert.Equal(t, []string{"systemctl reload nginx", "systemctl reload nginx"}, exec.calls)
}

func TestConfigureSite_DanglingDefault(t *testing.T) {
	exec := &fakeExecutor{}
	r, cfg := newTestReconciler(t, exec)

	require.NoError(t, os.MkdirAll(cfg.SitesEnabledDir, 0755))
	require.NoError(t, os.Symlink("/nonexistent/default", filepath.Join(cfg.SitesEnabledDir, "default")))

	require.NoError(t, r.ConfigureSite(context.Background()))

	_, err := os.Lstat(filepath.Join(cfg.SitesEnabledDir, "default"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigureSite_ReloadFails(t *testing.T) {
	exec := &fakeExecutor{failOn: "systemctl reload"}
	r, _ := newTestReconciler(t, exec)

	err := r.ConfigureSite(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "reload nginx")
}

func TestInstallSchedule(t *testing.T) {
	exec := &fakeExecutor{}
	r, cfg := newTestReconciler(t, exec)

	err := r.InstallSchedule(context.Background(), "0 2 * * * /usr/bin/sync-images")
	require.NoError(t, err)

	require.Len(t, exec.crontabs, 1)
	assert.Equal(t, "0 2 * * * /usr/bin/sync-images\n", exec.crontabs[0])
	assert.Equal(t, "crontab -u root "+exec.scratch[0], exec.calls[0])
	assert.True(t, strings.HasSuffix(exec.scratch[0], ".cron"))
	assert.Equal(t, cfg.ScratchDir, filepath.Dir(exec.scratch[0]))

	_, err = os.Stat(exec.scratch[0])
	assert.True(t, os.IsNotExist(err), "scratch file should be removed")
}

func TestInstallSchedule_RawSpecificationKept(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestReconciler(t, exec)

	spec := "# mirror\n0 2 * * * a\nbroken line\n\n"
	require.NoError(t, r.InstallSchedule(context.Background(), spec))

	require.Len(t, exec.crontabs, 1)
	assert.Equal(t, "# mirror\n0 2 * * * a\nbroken line\n", exec.crontabs[0])
}

func TestInstallSchedule_Empty(t *testing.T) {
	exec := &fakeExecutor{}
	r, cfg := newTestReconciler(t, exec)

	require.NoError(t, r.InstallSchedule(context.Background(), "  \n "))

	assert.Empty(t, exec.calls)
	entries, err := os.ReadDir(cfg.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstallSchedule_FailureCleansUp(t *testing.T) {
	exec := &fakeExecutor{failOn: "crontab"}
	r, cfg := newTestReconciler(t, exec)

	err := r.InstallSchedule(context.Background(), "0 2 * * * x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))

	entries, err := os.ReadDir(cfg.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file should be removed on failure")
}

func TestEnsureServiceRunning(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestReconciler(t, exec)

	require.NoError(t, r.EnsureServiceRunning(context.Background(), "nginx"))
	assert.Equal(t, []string{"systemctl start nginx", "systemctl enable nginx"}, exec.calls)

	failing := &fakeExecutor{failOn: "systemctl start"}
	r, _ = newTestReconciler(t, failing)
	err := r.EnsureServiceRunning(context.Background(), "nginx")
	require.Error(t, err)
	assert.Equal(t, []string{"systemctl start nginx"}, failing.calls)
}

func TestDeclarePorts(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestReconciler(t, exec)

	ports := []types.PortMapping{{Port: 80, Protocol: "tcp"}}
	require.NoError(t, r.DeclarePorts(context.Background(), ports))
	assert.Equal(t, []string{"open-port 80/tcp"}, exec.calls)
}

func TestExecExecutor(t *testing.T) {
	e := ExecExecutor{Env: []string{"MIRRORCTL_TEST=1"}}

	assert.NoError(t, e.Run(context.Background(), "sh", "-c", `test "$MIRRORCTL_TEST" = 1`))

	err := e.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 4")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "exited 4")
	assert.Contains(t, err.Error(), "broken")

	err = e.Run(context.Background(), "/nonexistent/binary")
	assert.True(t, errors.Is(err, ErrCommandFailed))
}
