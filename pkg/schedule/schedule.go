// Package schedule parses the multi-line cron-jobs value into entries.
package schedule

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cuemby/mirrorctl/pkg/log"
	"github.com/cuemby/mirrorctl/pkg/metrics"
	robcron "github.com/robfig/cron/v3"
)

// timeFields is the number of positional schedule fields before the command
const timeFields = 5

// Entry is one valid record of a schedule specification
type Entry struct {
	// Line is the 1-based line number in the source text
	Line int

	// Spec is the five time fields joined by single spaces
	Spec string

	// Command is the remainder of the line, internal whitespace preserved
	Command string
}

// SkippedLine is a non-comment line that did not have six fields
type SkippedLine struct {
	Line    int    `json:"line" yaml:"line"`
	Content string `json:"content" yaml:"content"`
}

// Result is the outcome of parsing a schedule specification
type Result struct {
	Entries []Entry
	Skipped []SkippedLine
}

// Commands returns the command of every entry in source order
func (r Result) Commands() []string {
	commands := make([]string, 0, len(r.Entries))
	for _, entry := range r.Entries {
		commands = append(commands, entry.Command)
	}
	return commands
}

// lineBreaks folds \r\n and bare \r into \n so every convention splits alike
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Parse turns raw schedule text into ordered entries. Malformed lines are
// logged and skipped; parsing itself never fails.
func Parse(spec string) Result {
	logger := log.WithComponent("schedule")

	result := Result{Entries: []Entry{}}
	for i, raw := range strings.Split(lineBreaks.Replace(spec), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitFields(line, timeFields+1)
		if len(fields) < timeFields+1 {
			logger.Warn().
				Int("line", i+1).
				Str("content", line).
				Msg("skipping invalid cron line")
			metrics.ScheduleLinesSkipped.Inc()
			result.Skipped = append(result.Skipped, SkippedLine{Line: i + 1, Content: line})
			continue
		}

		result.Entries = append(result.Entries, Entry{
			Line:    i + 1,
			Spec:    strings.Join(fields[:timeFields], " "),
			Command: fields[timeFields],
		})
	}

	logger.Debug().
		Int("entries", len(result.Entries)).
		Int("skipped", len(result.Skipped)).
		Msg("parsed schedule")

	return result
}

// ParseCommands is Parse reduced to the executable commands
func ParseCommands(spec string) []string {
	return Parse(spec).Commands()
}

// splitFields splits s on runs of whitespace into at most n fields. The last
// field is the untouched remainder of s once the separator before it is consumed.
func splitFields(s string, n int) []string {
	var fields []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for rest != "" {
		if len(fields) == n-1 {
			fields = append(fields, rest)
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			fields = append(fields, rest)
			break
		}
		fields = append(fields, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return fields
}

// parser accepts the standard five-field crontab format
var parser = robcron.NewParser(robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow)

// Lint reports the time fields cron itself would reject. It never changes the
// parse result: crontab is the authority on what it accepts.
func Lint(entry Entry) error {
	if _, err := parser.Parse(entry.Spec); err != nil {
		return fmt.Errorf("line %d: %w", entry.Line, err)
	}
	return nil
}

// NextRun computes when an entry will next fire after now
func NextRun(entry Entry, now time.Time) (time.Time, error) {
	sched, err := parser.Parse(entry.Spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron spec %q: %w", entry.Spec, err)
	}
	return sched.Next(now), nil
}
