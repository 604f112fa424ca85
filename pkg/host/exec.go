package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrCommandFailed is wrapped by every error caused by a non-zero exit
var ErrCommandFailed = errors.New("command failed")

// Executor runs a host command to completion. Exit status is the contract:
// nil on zero, an error wrapping ErrCommandFailed otherwise.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecExecutor runs commands on the local host with os/exec
type ExecExecutor struct {
	// Env is appended to the inherited environment
	Env []string
}

// Run executes name with args and captures combined output for error reporting
func (e ExecExecutor) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if err == nil {
		return nil
	}

	commandLine := strings.TrimSpace(name + " " + strings.Join(args, " "))
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited %d: %s",
			ErrCommandFailed, commandLine, exitErr.ExitCode(), tail(output.String(), 512))
	}
	return fmt.Errorf("%w: %s: %v", ErrCommandFailed, commandLine, err)
}

// tail keeps the last n bytes of s, where the useful part of apt/systemctl output is
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
