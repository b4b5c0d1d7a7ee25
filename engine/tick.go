package engine

import (
	"time"

	"github.com/punchclock/punch/internal/timeutil"
)

// Run starts the periodic refresh tick. It publishes an initial snapshot
// immediately, then every tick interval until Stop is called. Calling Run
// on a running engine is a no-op.
func (e *Engine) Run() {
	e.mu.Lock()
	if e.alive {
		e.mu.Unlock()
		return
	}

	e.alive = true
	e.stop = make(chan struct{})
	e.mu.Unlock()

	e.wg.Add(1)

	go e.loop()
}

// Stop tears the tick loop down and waits for it to finish. After Stop
// returns no tick fires and no snapshot is published, even one that was
// already scheduled.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.alive {
		e.mu.Unlock()
		return
	}

	e.alive = false
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.tick()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick recomputes display fields for every timer and publishes a snapshot.
// The liveness flag is re-checked before publishing so a tick racing with
// Stop cannot leak state out after teardown.
func (e *Engine) tick() {
	e.mu.Lock()
	if !e.alive {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	timers, err := e.store.Timers()
	if err != nil {
		e.logger.Error("reading timer list failed", "error", err)
		return
	}

	now := e.now()

	views := make([]TimerView, 0, len(timers))

	var firstRunning *TimerView

	e.mu.Lock()

	for _, t := range timers {
		seconds := timeutil.ElapsedSeconds(
			t.StartTime,
			t.PreviouslyElapsed,
			t.Paused,
			now,
		)

		view := TimerView{
			Timer:            *t,
			ElapsedSeconds:   seconds,
			StopwatchDisplay: timeutil.Stopwatch(seconds),
			MenubarDisplay: timeutil.Menubar(
				timeutil.MenubarSeconds(seconds),
			),
			Posting: e.posting[t.ID],
		}

		views = append(views, view)

		if !t.Paused && firstRunning == nil {
			firstRunning = &views[len(views)-1]
		}
	}

	snap := Snapshot{
		Timers:           views,
		MenubarTitle:     e.menubarTitle(firstRunning),
		AnyTimerRunning:  firstRunning != nil,
		EditingTimerID:   e.editingTimerID,
		EditingCommentID: e.editingCommentID,
		PostingHumanTime: e.postingHumanTime,
	}

	if !e.alive {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.publish(snap)
}

// menubarTitle assembles the summary string from the first running timer,
// honouring the visibility settings.
func (e *Engine) menubarTitle(firstRunning *TimerView) string {
	if firstRunning == nil {
		if e.hideTiming {
			return ""
		}

		return "Idle"
	}

	var title string

	if !e.hideKey {
		title = firstRunning.Key
	}

	if !e.hideTiming {
		if title != "" {
			title += " "
		}

		title += firstRunning.MenubarDisplay
	}

	return title
}
