// Package runner executes bootstrap commands through a shell, one after another.
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/cuemby/mirrorctl/pkg/log"
	"github.com/cuemby/mirrorctl/pkg/metrics"
	"github.com/rs/zerolog"
)

// Shell executes one opaque command string and reports its exit code
type Shell interface {
	Run(ctx context.Context, command string) (int, error)
}

// ExecShell runs commands through /bin/sh -c so operators can use pipes,
// redirection and expansion.
type ExecShell struct {
	// Path is the shell binary (default: /bin/sh)
	Path string

	// Stdout and Stderr receive command output (default: os.Stderr for both,
	// since the runtime reads hook stdout)
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the command and returns its exit code. A command that exits
// non-zero yields its code and a nil error; err is reserved for commands that
// could not be run at all.
func (s ExecShell) Run(ctx context.Context, command string) (int, error) {
	path := s.Path
	if path == "" {
		path = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, path, "-c", command)
	cmd.Stdout = s.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stderr
	}
	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Result is the outcome of one command
type Result struct {
	Command  string
	ExitCode int
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the command exited zero
func (r Result) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Summary describes one Run call
type Summary struct {
	Results []Result
}

// Attempted is the number of commands that were started
func (s Summary) Attempted() int {
	return len(s.Results)
}

// Failed is the number of commands that did not exit zero
func (s Summary) Failed() int {
	failed := 0
	for _, r := range s.Results {
		if !r.Succeeded() {
			failed++
		}
	}
	return failed
}

// Runner executes command sequences one at a time, in order
type Runner struct {
	shell  Shell
	logger zerolog.Logger
}

// NewRunner creates a runner over the given shell
func NewRunner(shell Shell) *Runner {
	if shell == nil {
		shell = ExecShell{}
	}
	return &Runner{
		shell:  shell,
		logger: log.WithComponent("runner"),
	}
}

// Run attempts every command in order. A failing command is logged and the
// next one runs; Run itself never fails.
func (r *Runner) Run(ctx context.Context, commands []string) Summary {
	summary := Summary{Results: make([]Result, 0, len(commands))}

	if len(commands) == 0 {
		r.logger.Info().Msg("no commands to run")
		return summary
	}

	total := len(commands)
	for i, command := range commands {
		r.logger.Info().
			Int("index", i+1).
			Int("total", total).
			Str("command", command).
			Msg("running command")

		start := time.Now()
		code, err := r.shell.Run(ctx, command)
		result := Result{
			Command:  command,
			ExitCode: code,
			Err:      err,
			Duration: time.Since(start),
		}
		summary.Results = append(summary.Results, result)

		switch {
		case err != nil:
			metrics.CommandsTotal.WithLabelValues("error").Inc()
			r.logger.Error().
				Err(err).
				Int("index", i+1).
				Int("total", total).
				Msg("command could not be run")
		case code != 0:
			metrics.CommandsTotal.WithLabelValues("failed").Inc()
			r.logger.Error().
				Int("index", i+1).
				Int("total", total).
				Int("exit_code", code).
				Msg("command failed")
		default:
			metrics.CommandsTotal.WithLabelValues("succeeded").Inc()
			r.logger.Info().
				Int("index", i+1).
				Int("total", total).
				Dur("duration", result.Duration).
				Msg("command succeeded")
		}
	}

	r.logger.Info().
		Int("attempted", summary.Attempted()).
		Int("failed", summary.Failed()).
		Msg("finished running commands")

	return summary
}
