// Package engine drives the timer lifecycle: it owns each timer's local
// editing and posting state, recomputes display time on a fixed tick, and
// coordinates with the gateway to sync work logs back to the remote
// service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/punchclock/punch/internal/models"
	"github.com/punchclock/punch/internal/timeutil"
)

const defaultTickInterval = 500 * time.Millisecond

var (
	// ErrTimerPosting is returned when an operation is rejected because a
	// post for that timer is already in flight.
	ErrTimerPosting = errors.New("a post for this timer is already in flight")

	// ErrInvalidDuration is returned by CommitEditTime when the edited
	// value is not a positive duration. The store is left untouched.
	ErrInvalidDuration = errors.New("not a positive duration")
)

// TimerStore is the slice of the authoritative store the engine needs. All
// mutations are intents; the store decides how to apply them.
type TimerStore interface {
	Timers() ([]*models.Timer, error)
	SetPaused(id string, paused bool) error
	SetDuration(id string, d time.Duration) error
	SetComment(id, comment string) error
	Remove(id string) error
}

// Poster records a work log against a ticket.
type Poster interface {
	PostWorklog(ctx context.Context, key string, seconds int, comment string) error
}

// TimerView is a timer plus the display fields derived on each tick.
type TimerView struct {
	models.Timer

	StopwatchDisplay string
	MenubarDisplay   string
	ElapsedSeconds   int
	Posting          bool
}

// Snapshot is the per-tick state published to the view layer.
type Snapshot struct {
	Timers           []TimerView
	MenubarTitle     string
	AnyTimerRunning  bool
	EditingTimerID   string
	EditingCommentID string
	PostingHumanTime string
}

// Config holds configuration for creating an Engine.
type Config struct {
	Store   TimerStore
	Gateway Poster
	// CommentBlock enables the comment workflow. When false,
	// BeginEditComment posts immediately.
	CommentBlock bool
	// MenubarHideTiming and MenubarHideKey control which pieces appear
	// in the menubar summary.
	MenubarHideTiming bool
	MenubarHideKey    bool
	// Publish receives a Snapshot on every tick. May be nil.
	Publish func(Snapshot)
	// Notify receives post results for desktop notification. May be nil.
	Notify func(title, msg string)
	// Logger is used for structured logging. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
	// TickInterval overrides the 500ms refresh period (tests).
	TickInterval time.Duration
	// Clock overrides the wall clock (tests).
	Clock func() time.Time
}

// Engine enforces the per-timer state machine. At most one timer may be in
// time-edit mode and at most one in comment-edit mode at any moment; a
// posting timer accepts no edits until the post resolves.
type Engine struct {
	store        TimerStore
	gateway      Poster
	publish      func(Snapshot)
	notify       func(title, msg string)
	logger       *slog.Logger
	tickInterval time.Duration
	now          func() time.Time

	commentBlock bool
	hideTiming   bool
	hideKey      bool

	mu               sync.Mutex
	editingTimerID   string
	editingCommentID string
	postingHumanTime string
	posting          map[string]bool
	alive            bool
	stop             chan struct{}

	wg sync.WaitGroup
}

// New creates an engine. Call Run to start the refresh tick.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	publish := cfg.Publish
	if publish == nil {
		publish = func(Snapshot) {}
	}

	notify := cfg.Notify
	if notify == nil {
		notify = func(string, string) {}
	}

	interval := cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		store:        cfg.Store,
		gateway:      cfg.Gateway,
		publish:      publish,
		notify:       notify,
		logger:       logger,
		tickInterval: interval,
		now:          clock,
		commentBlock: cfg.CommentBlock,
		hideTiming:   cfg.MenubarHideTiming,
		hideKey:      cfg.MenubarHideKey,
		posting:      make(map[string]bool),
	}
}

// PostingHumanTime returns the frozen human-readable duration shown while
// a comment is being composed.
func (e *Engine) PostingHumanTime() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.postingHumanTime
}

// EditingCommentID returns the id of the timer whose comment flow is open,
// or the empty string.
func (e *Engine) EditingCommentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.editingCommentID
}

// Start resumes a timer. Any pending time edit is abandoned first. No-op
// while the timer is posting.
func (e *Engine) Start(id string) {
	e.mu.Lock()
	if e.posting[id] {
		e.mu.Unlock()
		return
	}

	e.editingTimerID = ""
	e.mu.Unlock()

	e.requestPause(id, false)
}

// Pause freezes or resumes a timer.
func (e *Engine) Pause(id string, paused bool) {
	e.requestPause(id, paused)
}

// BeginEditTime pauses a timer and opens time-edit mode for it. Entering it
// for a new timer abandons any previous edit without persisting its value.
// No-op while the timer is posting.
func (e *Engine) BeginEditTime(id string) {
	e.mu.Lock()
	if e.posting[id] {
		e.mu.Unlock()
		return
	}

	e.editingTimerID = id
	e.mu.Unlock()

	e.requestPause(id, true)
}

// CommitEditTime parses the edited value and, if it is a positive duration,
// replaces the timer's accumulated elapsed time. Unparseable or
// non-positive input never mutates the store and is reported as
// ErrInvalidDuration; empty input is a plain cancel. Edit-time mode always
// ends, whatever the outcome.
func (e *Engine) CommitEditTime(id, durationText string) error {
	defer e.CancelEditTime()

	if durationText == "" {
		return nil
	}

	d, err := timeutil.ParseDuration(durationText)
	if err != nil || d <= 0 {
		e.logger.Debug("discarding invalid time edit",
			"timer", id,
			"input", durationText,
		)

		return fmt.Errorf("%w: %q", ErrInvalidDuration, durationText)
	}

	if err := e.store.SetDuration(id, d); err != nil {
		e.logger.Error("updating timer duration failed",
			"timer", id,
			"error", err,
		)

		return fmt.Errorf("updating timer %s: %w", id, err)
	}

	return nil
}

// CancelEditTime exits time-edit mode without committing.
func (e *Engine) CancelEditTime() {
	e.mu.Lock()
	e.editingTimerID = ""
	e.mu.Unlock()
}

// BeginEditComment pauses a timer and opens the comment flow for it. If the
// comment workflow is disabled, the timer is posted immediately instead.
// Comment-edit mode is exclusive: opening it here first closes it on any
// other timer and resumes that timer. No-op while the timer is posting.
func (e *Engine) BeginEditComment(ctx context.Context, timer *models.Timer) error {
	if !e.commentBlock {
		return e.Post(ctx, timer)
	}

	e.mu.Lock()
	if e.posting[timer.ID] {
		e.mu.Unlock()
		return nil
	}

	previous := e.editingCommentID

	seconds := timeutil.ElapsedSeconds(
		timer.StartTime,
		timer.PreviouslyElapsed,
		timer.Paused,
		e.now(),
	)

	// Freeze the human-readable duration now so it does not drift while
	// the user types.
	e.postingHumanTime = timeutil.Human(
		timeutil.RoundToNearestMinutes(seconds, 1) * 60,
	)
	e.editingCommentID = timer.ID
	e.mu.Unlock()

	if previous != "" && previous != timer.ID {
		e.requestPause(previous, false)
	}

	e.requestPause(timer.ID, true)

	return nil
}

// CommitComment persists the comment, closes the comment flow, and posts
// the timer.
func (e *Engine) CommitComment(
	ctx context.Context,
	timer *models.Timer,
	comment string,
) error {
	if err := e.store.SetComment(timer.ID, comment); err != nil {
		e.logger.Error("saving comment failed",
			"timer", timer.ID,
			"error", err,
		)
	}

	e.mu.Lock()
	if e.editingCommentID == timer.ID {
		e.editingCommentID = ""
		e.postingHumanTime = ""
	}
	e.mu.Unlock()

	timer.Comment = comment

	return e.Post(ctx, timer)
}

// CancelEditComment closes the comment flow if this timer holds it, and
// resumes the timer either way.
func (e *Engine) CancelEditComment(id string) {
	e.mu.Lock()
	if e.editingCommentID == id {
		e.editingCommentID = ""
		e.postingHumanTime = ""
	}
	e.mu.Unlock()

	e.requestPause(id, false)
}

// Post records the timer's elapsed time (and comment, if any) against its
// ticket, then removes the timer from the store. On failure the timer is
// left intact for retry and the error is returned. A second Post for the
// same timer while one is in flight is rejected with ErrTimerPosting.
func (e *Engine) Post(ctx context.Context, timer *models.Timer) error {
	e.mu.Lock()
	if e.posting[timer.ID] {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTimerPosting, timer.ID)
	}

	e.posting[timer.ID] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.posting, timer.ID)
		e.mu.Unlock()
	}()

	seconds := e.postSeconds(timer)

	err := e.gateway.PostWorklog(ctx, timer.Key, seconds, timer.Comment)
	if err != nil {
		e.logger.Error("posting work log failed",
			"timer", timer.ID,
			"key", timer.Key,
			"error", err,
		)
		e.notify("Work log failed", fmt.Sprintf(
			"Posting %s to %s failed. The timer was kept.",
			timeutil.Human(seconds), timer.Key,
		))

		return fmt.Errorf("posting timer %s: %w", timer.ID, err)
	}

	if err := e.store.Remove(timer.ID); err != nil {
		e.logger.Error("removing posted timer failed",
			"timer", timer.ID,
			"error", err,
		)
	}

	e.logger.Info("work log posted",
		"key", timer.Key,
		"seconds", seconds,
	)
	e.notify("Work log posted", fmt.Sprintf(
		"Posted %s to %s.", timeutil.Human(seconds), timer.Key,
	))

	return nil
}

// Delete removes a timer, cancelling any edit mode that references it
// first.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	if e.editingTimerID == id {
		e.editingTimerID = ""
	}

	if e.editingCommentID == id {
		e.editingCommentID = ""
		e.postingHumanTime = ""
	}
	e.mu.Unlock()

	return e.store.Remove(id)
}

// postSeconds is the duration actually submitted as a work log.
func (e *Engine) postSeconds(timer *models.Timer) int {
	return timeutil.WorklogSeconds(timeutil.ElapsedSeconds(
		timer.StartTime,
		timer.PreviouslyElapsed,
		timer.Paused,
		e.now(),
	))
}

// requestPause sends the pause intent to the store. Failures are logged,
// not surfaced: the authoritative list simply stays unchanged.
func (e *Engine) requestPause(id string, paused bool) {
	if err := e.store.SetPaused(id, paused); err != nil {
		e.logger.Error("pause request failed",
			"timer", id,
			"paused", paused,
			"error", err,
		)
	}
}
