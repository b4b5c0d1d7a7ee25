package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/punchclock/punch/internal/models"
)

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *snapshotRecorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.snaps)
}

func (r *snapshotRecorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snaps[len(r.snaps)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never held")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRunPublishesSnapshots(t *testing.T) {
	now := testEpoch.Add(90 * time.Second)
	store := newFakeStore(
		fixedClock(now),
		runningTimer("1", "PROJ-1"),
		&models.Timer{
			ID:                "2",
			Key:               "PROJ-2",
			Paused:            true,
			PreviouslyElapsed: 5 * time.Minute,
		},
	)

	rec := &snapshotRecorder{}

	eng := New(Config{
		Store:        store,
		Gateway:      &fakePoster{},
		CommentBlock: true,
		Publish:      rec.record,
		TickInterval: 5 * time.Millisecond,
		Clock:        fixedClock(now),
	})

	eng.Run()
	defer eng.Stop()

	waitFor(t, func() bool { return rec.count() >= 2 })

	snap := rec.last()

	if !snap.AnyTimerRunning {
		t.Error("expected a running timer in the snapshot")
	}

	if snap.MenubarTitle != "PROJ-1 0:01" {
		t.Errorf("unexpected menubar title %q", snap.MenubarTitle)
	}

	want := []TimerView{
		{
			Timer:            *store.timers[0],
			ElapsedSeconds:   90,
			StopwatchDisplay: "1:30",
			MenubarDisplay:   "0:01",
		},
		{
			Timer:            *store.timers[1],
			ElapsedSeconds:   300,
			StopwatchDisplay: "5:00",
			MenubarDisplay:   "0:04",
		},
	}

	if diff := cmp.Diff(want, snap.Timers); diff != "" {
		t.Errorf("snapshot timers mismatch (-want +got):\n%s", diff)
	}
}

func TestStopSilencesPublishing(t *testing.T) {
	now := testEpoch.Add(time.Minute)
	store := newFakeStore(fixedClock(now), runningTimer("1", "PROJ-1"))
	rec := &snapshotRecorder{}

	eng := New(Config{
		Store:        store,
		Gateway:      &fakePoster{},
		Publish:      rec.record,
		TickInterval: time.Millisecond,
		Clock:        fixedClock(now),
	})

	eng.Run()
	waitFor(t, func() bool { return rec.count() >= 1 })

	eng.Stop()

	after := rec.count()

	time.Sleep(20 * time.Millisecond)

	if got := rec.count(); got != after {
		t.Errorf(
			"snapshots published after Stop: had %d, now %d",
			after, got,
		)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	now := testEpoch
	store := newFakeStore(fixedClock(now))
	rec := &snapshotRecorder{}

	eng := New(Config{
		Store:        store,
		Gateway:      &fakePoster{},
		Publish:      rec.record,
		TickInterval: time.Millisecond,
		Clock:        fixedClock(now),
	})

	eng.Run()
	eng.Run()
	eng.Stop()

	// a second Stop must not panic or hang either
	eng.Stop()
}

func TestMenubarTitle(t *testing.T) {
	running := &TimerView{
		Timer:          models.Timer{Key: "PROJ-9"},
		MenubarDisplay: "0:25",
	}

	cases := []struct {
		name       string
		timer      *TimerView
		hideTiming bool
		hideKey    bool
		want       string
	}{
		{name: "idle", want: "Idle"},
		{name: "idle with timing hidden", hideTiming: true, want: ""},
		{name: "key and timing", timer: running, want: "PROJ-9 0:25"},
		{
			name:    "key hidden",
			timer:   running,
			hideKey: true,
			want:    "0:25",
		},
		{
			name:       "timing hidden",
			timer:      running,
			hideTiming: true,
			want:       "PROJ-9",
		},
		{
			name:       "everything hidden",
			timer:      running,
			hideTiming: true,
			hideKey:    true,
			want:       "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng := New(Config{
				Store:             newFakeStore(fixedClock(testEpoch)),
				Gateway:           &fakePoster{},
				MenubarHideTiming: tc.hideTiming,
				MenubarHideKey:    tc.hideKey,
			})

			if got := eng.menubarTitle(tc.timer); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
