package store

import (
	"time"

	"github.com/punchclock/punch/internal/models"
)

// DB is the authoritative timer list. Mutations are requests: callers never
// edit timer records directly, they ask the store to apply the change.
type DB interface {
	// Timers returns all timers in store order.
	Timers() ([]*models.Timer, error)
	// Add creates a new running timer for the given ticket.
	Add(key, summary string) (*models.Timer, error)
	// SetPaused freezes or resumes a timer. Pausing folds the current
	// running segment into PreviouslyElapsed; resuming starts a new
	// segment.
	SetPaused(id string, paused bool) error
	// SetDuration replaces a timer's accumulated elapsed time.
	SetDuration(id string, d time.Duration) error
	// SetComment updates the saved work-log comment.
	SetComment(id, comment string) error
	// Remove deletes a timer.
	Remove(id string) error
	// Subscribe returns a channel that receives a signal after every
	// mutation. The channel is closed when the store is closed.
	Subscribe() <-chan struct{}
	// Close ends the database connection.
	Close() error
}
