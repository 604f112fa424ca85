package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownEvent is returned when an event name is not one the controller handles
var ErrUnknownEvent = errors.New("unknown lifecycle event")

// EventKind identifies a lifecycle event delivered by the orchestration runtime
type EventKind string

const (
	EventInstall       EventKind = "install"
	EventConfigChanged EventKind = "config-changed"
	EventStart         EventKind = "start"
)

// EventKinds lists every event the controller dispatches, in lifecycle order
var EventKinds = []EventKind{EventInstall, EventConfigChanged, EventStart}

// ParseEventKind validates a runtime-supplied event name
func ParseEventKind(name string) (EventKind, error) {
	kind := EventKind(strings.TrimSpace(name))
	for _, known := range EventKinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// StatusKind is the workload state reported to the runtime
type StatusKind string

const (
	StatusUnknown     StatusKind = "unknown"
	StatusMaintenance StatusKind = "maintenance"
	StatusActive      StatusKind = "active"
	StatusBlocked     StatusKind = "blocked"
)

// Status is the externally observable health signal of the controller.
// Each transition replaces the previous value entirely.
type Status struct {
	Kind    StatusKind `json:"kind" yaml:"kind"`
	Message string     `json:"message" yaml:"message"`
}

// Maintenance creates a maintenance status
func Maintenance(message string) Status {
	return Status{Kind: StatusMaintenance, Message: message}
}

// Active creates an active status
func Active(message string) Status {
	return Status{Kind: StatusActive, Message: message}
}

// Blocked creates a blocked status
func Blocked(message string) Status {
	return Status{Kind: StatusBlocked, Message: message}
}

// UnknownStatus is the value before the first transition
func UnknownStatus() Status {
	return Status{Kind: StatusUnknown}
}

func (s Status) String() string {
	if s.Message == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}

// StatusRecord is one transition as persisted by the status store
type StatusRecord struct {
	Status    Status    `json:"status" yaml:"status"`
	Event     EventKind `json:"event" yaml:"event"`
	EventID   string    `json:"event_id" yaml:"event_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// CharmConfig is the declared configuration snapshot, read fresh on every event
type CharmConfig struct {
	// CronJobs is the raw multi-line schedule specification
	CronJobs string `mapstructure:"cron-jobs" yaml:"cron-jobs"`

	// BootstrapSync runs the schedule's commands once during install
	BootstrapSync bool `mapstructure:"bootstrap-sync" yaml:"bootstrap-sync"`
}

// DefaultCharmConfig returns the configuration applied when a key is absent
func DefaultCharmConfig() CharmConfig {
	return CharmConfig{
		CronJobs:      "",
		BootstrapSync: true,
	}
}

// PortMapping is a port declared to the runtime as exposed
type PortMapping struct {
	Port     int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Protocol string `mapstructure:"protocol" yaml:"protocol" validate:"oneof=tcp udp"`
}

func (p PortMapping) String() string {
	protocol := strings.ToLower(p.Protocol)
	if protocol == "" {
		protocol = "tcp"
	}
	return fmt.Sprintf("%d/%s", p.Port, protocol)
}
