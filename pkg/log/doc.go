/*
Package log provides structured logging for mirrorctl using zerolog.

The log package wraps zerolog with a single global logger, configurable level and
output format, and helpers that attach component and lifecycle-event context to
every record. Each hook invocation initializes the logger once from CLI flags and
the controller settings; every other package derives a child logger from it.

# Output

Hook tools run under an orchestration runtime that captures stdout, so records go
to stderr unless another writer is configured:

	JSON Format:
	{"level":"info","component":"runner","index":1,"total":2,"time":"2026-10-17T02:00:00Z","message":"running command"}

	Console Format:
	2026-10-17T02:00:00Z INF running command component=runner index=1 total=2

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Component Loggers:

	logger := log.WithComponent("host")
	logger.Info().Str("path", path).Msg("writing site definition")

Event Loggers:

	logger := log.WithEvent("install", eventID)
	logger.Info().Msg("handling event")

Derive component loggers after Init; a child logger captures the parent at the
time it is created.
*/
package log
