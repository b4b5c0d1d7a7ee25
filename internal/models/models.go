package models

import (
	"time"
)

// Timer is a local record of work time accrued against one remote ticket.
// The authoritative copy lives in the timer store; everything else reads it
// from there.
type Timer struct {
	// ID is a stable identifier assigned by the store.
	ID string `json:"id"`
	// Key identifies the remote ticket this timer accrues time against.
	Key string `json:"key"`
	// Summary is the ticket title, kept for display only.
	Summary string `json:"summary"`
	// StartTime is when the current running segment began. It is only
	// meaningful while Paused is false.
	StartTime time.Time `json:"start_time"`
	// PreviouslyElapsed is the frozen total of all prior running segments,
	// snapshotted at the last pause or manual edit.
	PreviouslyElapsed time.Duration `json:"previously_elapsed"`
	Paused            bool          `json:"paused"`
	// Comment is the last saved work-log comment, if any.
	Comment string `json:"comment,omitempty"`
}

// Credential is a stored service credential: an opaque secret keyed by the
// service identity, plus the account (host) it was issued for.
type Credential struct {
	Service string `json:"service"`
	Account string `json:"account"`
	Secret  string `json:"secret"`
}

// Transition is a remote-defined status change available for a ticket.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
