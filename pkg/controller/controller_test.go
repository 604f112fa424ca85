package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cuemby/mirrorctl/pkg/events"
	"github.com/cuemby/mirrorctl/pkg/host"
	"github.com/cuemby/mirrorctl/pkg/runner"
	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost records the host actions in call order
type fakeHost struct {
	calls     []string
	schedules []string
	failOn    map[string]error
}

func (f *fakeHost) record(action string) error {
	f.calls = append(f.calls, action)
	return f.failOn[action]
}

func (f *fakeHost) EnsurePackages(ctx context.Context, names []string) error {
	return f.record(fmt.Sprintf("packages %v", names))
}

func (f *fakeHost) ConfigureSite(ctx context.Context) error {
	return f.record("site")
}

func (f *fakeHost) InstallSchedule(ctx context.Context, spec string) error {
	f.schedules = append(f.schedules, spec)
	return f.record("schedule")
}

func (f *fakeHost) EnsureServiceRunning(ctx context.Context, name string) error {
	return f.record("service " + name)
}

func (f *fakeHost) DeclarePorts(ctx context.Context, ports []types.PortMapping) error {
	return f.record(fmt.Sprintf("ports %v", ports))
}

// scriptedShell fails the listed commands
type scriptedShell struct {
	failing map[string]bool
	ran     []string
}

func (s *scriptedShell) Run(ctx context.Context, command string) (int, error) {
	s.ran = append(s.ran, command)
	if s.failing[command] {
		return 1, nil
	}
	return 0, nil
}

type staticConfig struct {
	cfg types.CharmConfig
	err error
}

func (s staticConfig) Load() (types.CharmConfig, error) {
	return s.cfg, s.err
}

type recordingReporter struct {
	statuses []types.Status
}

func (r *recordingReporter) ReportStatus(ctx context.Context, evt *events.Event, status types.Status) error {
	r.statuses = append(r.statuses, status)
	return nil
}

type fixture struct {
	host     *fakeHost
	shell    *scriptedShell
	reporter *recordingReporter
	ctrl     *Controller
}

func newFixture(cfg types.CharmConfig) *fixture {
	f := &fixture{
		host:     &fakeHost{failOn: map[string]error{}},
		shell:    &scriptedShell{failing: map[string]bool{}},
		reporter: &recordingReporter{},
	}
	f.ctrl = NewController(f.host, runner.NewRunner(f.shell), staticConfig{cfg: cfg}, f.reporter, DefaultOptions())
	return f
}

func handle(f *fixture, kind types.EventKind) *Outcome {
	return f.ctrl.Handle(context.Background(), events.New(kind))
}

func TestInstall_BootstrapAndSchedule(t *testing.T) {
	spec := "0 2 * * * /usr/bin/sync-images"
	f := newFixture(types.CharmConfig{CronJobs: spec, BootstrapSync: true})
	f.shell.failing["/usr/bin/sync-images"] = true

	outcome := handle(f, types.EventInstall)

	assert.Equal(t, []string{"/usr/bin/sync-images"}, f.shell.ran)
	assert.Equal(t, []string{
		"packages [nginx simplestreams]",
		"site",
		"schedule",
	}, f.host.calls)
	assert.Equal(t, []string{spec}, f.host.schedules)

	require.NotNil(t, outcome.Bootstrap)
	assert.Equal(t, 1, outcome.Bootstrap.Failed())

	assert.Equal(t, []types.Status{
		types.Maintenance("installing"),
		types.Maintenance("bootstrap"),
		types.Maintenance("install complete"),
	}, outcome.Transitions)
	assert.Equal(t, outcome.Transitions, f.reporter.statuses)
	assert.Equal(t, types.Maintenance("install complete"), outcome.Status)
	assert.NoError(t, outcome.Err)
}

func TestInstall_BootstrapSkipped(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.CharmConfig
	}{
		{
			name: "bootstrap disabled",
			cfg:  types.CharmConfig{CronJobs: "0 2 * * * /usr/bin/sync-images", BootstrapSync: false},
		},
		{
			name: "empty schedule",
			cfg:  types.CharmConfig{CronJobs: "", BootstrapSync: true},
		},
		{
			name: "whitespace schedule",
			cfg:  types.CharmConfig{CronJobs: " \n ", BootstrapSync: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.cfg)

			outcome := handle(f, types.EventInstall)

			assert.Empty(t, f.shell.ran)
			assert.Nil(t, outcome.Bootstrap)
			assert.Equal(t, []string{tt.cfg.CronJobs}, f.host.schedules)
			assert.NotContains(t, outcome.Transitions, types.Maintenance("bootstrap"))
			assert.Equal(t, types.Maintenance("install complete"), outcome.Status)
		})
	}
}

func TestInstall_BootstrapSkipsInvalidLines(t *testing.T) {
	spec := "0 1 * * * first\nbroken\n0 2 * * * second"
	f := newFixture(types.CharmConfig{CronJobs: spec, BootstrapSync: true})

	outcome := handle(f, types.EventInstall)

	assert.Equal(t, []string{"first", "second"}, f.shell.ran)
	assert.Equal(t, []string{spec}, f.host.schedules)
	assert.False(t, outcome.Blocked())
}

func TestInstall_Failures(t *testing.T) {
	tests := []struct {
		name          string
		failOn        string
		expectedCalls []string
	}{
		{
			name:          "package install fails",
			failOn:        "packages [nginx simplestreams]",
			expectedCalls: []string{"packages [nginx simplestreams]"},
		},
		{
			name:          "site configuration fails",
			failOn:        "site",
			expectedCalls: []string{"packages [nginx simplestreams]", "site"},
		},
		{
			name:          "schedule install fails",
			failOn:        "schedule",
			expectedCalls: []string{"packages [nginx simplestreams]", "site", "schedule"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(types.CharmConfig{CronJobs: "0 2 * * * sync", BootstrapSync: true})
			cause := fmt.Errorf("%w: exit 100", host.ErrCommandFailed)
			f.host.failOn[tt.failOn] = cause

			outcome := handle(f, types.EventInstall)

			assert.Equal(t, tt.expectedCalls, f.host.calls)
			assert.True(t, outcome.Blocked())
			assert.True(t, errors.Is(outcome.Err, host.ErrCommandFailed))
			assert.Contains(t, outcome.Status.Message, "installation failed")
			assert.Contains(t, outcome.Status.Message, "exit 100")
			assert.Equal(t, outcome.Status, f.reporter.statuses[len(f.reporter.statuses)-1])
		})
	}
}

func TestInstall_PackageFailureSkipsBootstrap(t *testing.T) {
	f := newFixture(types.CharmConfig{CronJobs: "0 2 * * * sync", BootstrapSync: true})
	f.host.failOn["packages [nginx simplestreams]"] = errors.New("apt broken")

	outcome := handle(f, types.EventInstall)

	assert.Empty(t, f.shell.ran)
	assert.Empty(t, f.host.schedules)
	assert.Equal(t, types.Blocked("installation failed: apt broken"), outcome.Status)
}

func TestConfigChanged(t *testing.T) {
	spec := "0 2 * * * /usr/bin/sync-images"
	f := newFixture(types.CharmConfig{CronJobs: spec, BootstrapSync: true})

	outcome := handle(f, types.EventConfigChanged)

	assert.Empty(t, f.shell.ran, "config-changed never bootstraps")
	assert.Equal(t, []string{"schedule", "ports [80/tcp]"}, f.host.calls)
	assert.Equal(t, []string{spec}, f.host.schedules)
	assert.Equal(t, []types.Status{
		types.Maintenance("updating configuration"),
		types.Active("ready"),
	}, outcome.Transitions)
}

func TestConfigChanged_EmptySchedule(t *testing.T) {
	f := newFixture(types.CharmConfig{CronJobs: "", BootstrapSync: true})

	outcome := handle(f, types.EventConfigChanged)

	assert.Equal(t, []string{""}, f.host.schedules)
	assert.Contains(t, f.host.calls, "ports [80/tcp]")
	assert.Equal(t, types.Active("ready"), outcome.Status)
}

func TestConfigChanged_Failures(t *testing.T) {
	t.Run("schedule install fails", func(t *testing.T) {
		f := newFixture(types.CharmConfig{CronJobs: "0 2 * * * sync"})
		f.host.failOn["schedule"] = errors.New("crontab: bad minute")

		outcome := handle(f, types.EventConfigChanged)

		assert.Equal(t, []string{"schedule"}, f.host.calls)
		assert.Equal(t, types.Blocked("configuration failed: crontab: bad minute"), outcome.Status)
	})

	t.Run("configuration unreadable", func(t *testing.T) {
		f := newFixture(types.CharmConfig{})
		f.ctrl.config = staticConfig{err: errors.New("yaml: line 3")}

		outcome := handle(f, types.EventConfigChanged)

		assert.Empty(t, f.host.calls)
		assert.True(t, outcome.Blocked())
		assert.Contains(t, outcome.Status.Message, "failed to read configuration")
	})

	t.Run("port declaration fails", func(t *testing.T) {
		f := newFixture(types.CharmConfig{})
		f.host.failOn["ports [80/tcp]"] = errors.New("open-port: not in hook context")

		outcome := handle(f, types.EventConfigChanged)

		assert.True(t, outcome.Blocked())
	})
}

func TestStart(t *testing.T) {
	f := newFixture(types.DefaultCharmConfig())

	outcome := handle(f, types.EventStart)

	assert.Equal(t, []string{"service nginx"}, f.host.calls)
	assert.Equal(t, []types.Status{types.Active("ready")}, outcome.Transitions)
}

func TestStart_Failure(t *testing.T) {
	f := newFixture(types.DefaultCharmConfig())
	f.host.failOn["service nginx"] = errors.New("unit nginx.service not found")

	outcome := handle(f, types.EventStart)

	assert.Equal(t, types.Blocked("failed to start nginx: unit nginx.service not found"), outcome.Status)
}

func TestHandle_UnknownEvent(t *testing.T) {
	f := newFixture(types.DefaultCharmConfig())

	outcome := f.ctrl.Handle(context.Background(), &events.Event{ID: "x", Kind: "upgrade-charm"})

	assert.True(t, errors.Is(outcome.Err, types.ErrUnknownEvent))
	assert.Empty(t, f.host.calls)
	assert.Empty(t, outcome.Transitions)
	assert.Equal(t, types.StatusUnknown, outcome.Status.Kind)
}

func TestHandle_ReporterErrorIgnored(t *testing.T) {
	f := newFixture(types.DefaultCharmConfig())
	f.ctrl.reporter = MultiReporter{failingReporter{}, f.reporter}

	outcome := handle(f, types.EventStart)

	assert.Equal(t, types.Active("ready"), outcome.Status)
	assert.Equal(t, []types.Status{types.Active("ready")}, f.reporter.statuses)
}

type failingReporter struct{}

func (failingReporter) ReportStatus(ctx context.Context, evt *events.Event, status types.Status) error {
	return errors.New("status store unavailable")
}
