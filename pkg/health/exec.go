package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/mirrorctl/pkg/host"
)

// ExecChecker runs a host command and is healthy when it exits 0, e.g.
// `nginx -t` to validate the installed site definition
type ExecChecker struct {
	// Command is the command and its arguments
	Command []string

	// Timeout is the command execution timeout (default: 10 seconds)
	Timeout time.Duration

	exec host.Executor
}

// NewExecChecker creates a checker running command through executor
func NewExecChecker(executor host.Executor, command ...string) *ExecChecker {
	if executor == nil {
		executor = host.ExecExecutor{}
	}
	return &ExecChecker{
		Command: command,
		Timeout: 10 * time.Second,
		exec:    executor,
	}
}

// Check runs the command once
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return failed(start, "no command specified")
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	line := strings.Join(e.Command, " ")
	if err := e.exec.Run(execCtx, e.Command[0], e.Command[1:]...); err != nil {
		return failed(start, "%v", err)
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%s succeeded", line),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}
