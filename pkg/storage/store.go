package storage

import (
	"context"
	"errors"

	"github.com/cuemby/mirrorctl/pkg/events"
	"github.com/cuemby/mirrorctl/pkg/types"
)

var (
	// ErrNoStatus is returned when no transition has been recorded yet
	ErrNoStatus = errors.New("no status recorded")

	// ErrLocked is returned when a lock could not be taken within the timeout
	ErrLocked = errors.New("locked by a running event")
)

// Store records status transitions for the runtime and operators to read.
// The controller only ever writes to it.
type Store interface {
	// ReportStatus records a transition as the current status
	ReportStatus(ctx context.Context, evt *events.Event, status types.Status) error

	// Current returns the last recorded transition
	Current() (*types.StatusRecord, error)

	// History returns up to limit transitions, newest first
	History(limit int) ([]*types.StatusRecord, error)
}
