package health

import (
	"context"
	"time"

	"github.com/cuemby/mirrorctl/pkg/metrics"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeExec CheckType = "exec"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool          `json:"healthy" yaml:"healthy"`
	Message   string        `json:"message" yaml:"message"`
	CheckedAt time.Time     `json:"checked_at" yaml:"checked_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// NamedCheck pairs a checker with the name it is reported under
type NamedCheck struct {
	Name    string
	Checker Checker
}

// Report is the result of one named check
type Report struct {
	Name   string    `json:"name" yaml:"name"`
	Type   CheckType `json:"type" yaml:"type"`
	Result Result    `json:"result" yaml:"result"`
}

// Probe runs a fixed sequence of checks against the mirror. It is diagnostic
// only and never changes the workload status.
type Probe struct {
	checks []NamedCheck
}

// NewProbe creates a probe running checks in order
func NewProbe(checks ...NamedCheck) *Probe {
	return &Probe{checks: checks}
}

// Run executes every check, including those after a failure, and records
// the per-check metrics
func (p *Probe) Run(ctx context.Context) []Report {
	reports := make([]Report, 0, len(p.checks))
	for _, c := range p.checks {
		result := c.Checker.Check(ctx)

		healthy := 0.0
		if result.Healthy {
			healthy = 1
		}
		metrics.ProbeHealthy.WithLabelValues(c.Name).Set(healthy)
		metrics.ProbeDuration.WithLabelValues(c.Name).Observe(result.Duration.Seconds())

		reports = append(reports, Report{
			Name:   c.Name,
			Type:   c.Checker.Type(),
			Result: result,
		})
	}
	return reports
}

// Healthy reports whether every check passed
func Healthy(reports []Report) bool {
	for _, r := range reports {
		if !r.Result.Healthy {
			return false
		}
	}
	return true
}
