package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds every mirrorctl metric. It is separate from the default
	// registry so the textfile export carries no Go runtime series.
	Registry = prometheus.NewRegistry()

	// Event metrics
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrorctl_events_total",
			Help: "Total number of lifecycle events handled by event and resulting status",
		},
		[]string{"event", "status"},
	)

	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirrorctl_event_duration_seconds",
			Help:    "Lifecycle event handling duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900, 1800},
		},
		[]string{"event"},
	)

	// Host action metrics
	HostActionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrorctl_host_action_failures_total",
			Help: "Total number of failed host reconciliation actions by action",
		},
		[]string{"action"},
	)

	// Schedule metrics
	ScheduleLinesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mirrorctl_schedule_lines_skipped_total",
			Help: "Total number of schedule lines skipped as invalid",
		},
	)

	ScheduleInstalls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mirrorctl_schedule_installs_total",
			Help: "Total number of crontab installations",
		},
	)

	// Bootstrap metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrorctl_commands_total",
			Help: "Total number of shell commands run by result",
		},
		[]string{"result"},
	)

	// Status metrics
	Status = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirrorctl_status",
			Help: "Current workload status (1 for the active kind, 0 otherwise)",
		},
		[]string{"kind"},
	)

	// Probe metrics
	ProbeHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirrorctl_probe_healthy",
			Help: "Result of the last probe check (1 healthy, 0 unhealthy)",
		},
		[]string{"check"},
	)

	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirrorctl_probe_duration_seconds",
			Help:    "Probe check duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"check"},
	)
)

func init() {
	Registry.MustRegister(EventsTotal)
	Registry.MustRegister(EventDuration)
	Registry.MustRegister(HostActionFailures)
	Registry.MustRegister(ScheduleLinesSkipped)
	Registry.MustRegister(ScheduleInstalls)
	Registry.MustRegister(CommandsTotal)
	Registry.MustRegister(Status)
	Registry.MustRegister(ProbeHealthy)
	Registry.MustRegister(ProbeDuration)
}

// SetStatus marks kind as the current status
func SetStatus(kind types.StatusKind) {
	for _, k := range []types.StatusKind{
		types.StatusUnknown,
		types.StatusMaintenance,
		types.StatusActive,
		types.StatusBlocked,
	} {
		value := 0.0
		if k == kind {
			value = 1
		}
		Status.WithLabelValues(string(k)).Set(value)
	}
}

// WriteTextfile exports the registry for node_exporter's textfile collector.
// The write is atomic: WriteToTextfile renames a temp file into place.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
