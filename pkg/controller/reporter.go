package controller

import (
	"context"
	"errors"
	"os/exec"

	"github.com/cuemby/mirrorctl/pkg/events"
	"github.com/cuemby/mirrorctl/pkg/host"
	"github.com/cuemby/mirrorctl/pkg/types"
)

// MultiReporter fans a transition out to every reporter in order
type MultiReporter []StatusReporter

// ReportStatus reports to all reporters and joins their errors
func (m MultiReporter) ReportStatus(ctx context.Context, evt *events.Event, status types.Status) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.ReportStatus(ctx, evt, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RuntimeReporter forwards transitions to the orchestration runtime through
// its status-set hook tool
type RuntimeReporter struct {
	exec host.Executor
	tool string
}

// NewRuntimeReporter returns a reporter for the given hook tool, or nil when
// the tool is not on PATH (running outside the runtime)
func NewRuntimeReporter(executor host.Executor, tool string) *RuntimeReporter {
	if tool == "" {
		tool = "status-set"
	}
	if _, err := exec.LookPath(tool); err != nil {
		return nil
	}
	return &RuntimeReporter{exec: executor, tool: tool}
}

// ReportStatus runs `status-set <kind> <message>`
func (r *RuntimeReporter) ReportStatus(ctx context.Context, evt *events.Event, status types.Status) error {
	if r == nil {
		return nil
	}
	return r.exec.Run(ctx, r.tool, string(status.Kind), status.Message)
}
