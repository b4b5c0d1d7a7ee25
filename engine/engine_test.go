package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/punchclock/punch/internal/models"
)

type fakeStore struct {
	mu     sync.Mutex
	timers []*models.Timer

	durationCalls map[string]time.Duration
	commentCalls  map[string]string
	removed       []string

	now func() time.Time
}

func newFakeStore(now func() time.Time, timers ...*models.Timer) *fakeStore {
	return &fakeStore{
		timers:        timers,
		durationCalls: make(map[string]time.Duration),
		commentCalls:  make(map[string]string),
		now:           now,
	}
}

func (f *fakeStore) Timers() ([]*models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*models.Timer, len(f.timers))
	for i, t := range f.timers {
		clone := *t
		out[i] = &clone
	}

	return out, nil
}

func (f *fakeStore) find(id string) *models.Timer {
	for _, t := range f.timers {
		if t.ID == id {
			return t
		}
	}

	return nil
}

func (f *fakeStore) SetPaused(id string, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.find(id)
	if t == nil {
		return errors.New("timer not found")
	}

	if t.Paused == paused {
		return nil
	}

	if paused {
		t.PreviouslyElapsed += f.now().Sub(t.StartTime)
	} else {
		t.StartTime = f.now()
	}

	t.Paused = paused

	return nil
}

func (f *fakeStore) SetDuration(id string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.find(id)
	if t == nil {
		return errors.New("timer not found")
	}

	f.durationCalls[id] = d
	t.PreviouslyElapsed = d
	t.StartTime = f.now()

	return nil
}

func (f *fakeStore) SetComment(id, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.find(id)
	if t == nil {
		return errors.New("timer not found")
	}

	f.commentCalls[id] = comment
	t.Comment = comment

	return nil
}

func (f *fakeStore) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, t := range f.timers {
		if t.ID == id {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			f.removed = append(f.removed, id)

			return nil
		}
	}

	return errors.New("timer not found")
}

func (f *fakeStore) paused(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.find(id)

	return t != nil && t.Paused
}

type postCall struct {
	Key     string
	Seconds int
	Comment string
}

type fakePoster struct {
	mu    sync.Mutex
	calls []postCall
	err   error
	// block, when non-nil, holds PostWorklog open until released
	block chan struct{}
}

func (f *fakePoster) PostWorklog(
	_ context.Context,
	key string,
	seconds int,
	comment string,
) error {
	f.mu.Lock()
	f.calls = append(f.calls, postCall{
		Key:     key,
		Seconds: seconds,
		Comment: comment,
	})
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	return f.err
}

func (f *fakePoster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

var testEpoch = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func runningTimer(id, key string) *models.Timer {
	return &models.Timer{
		ID:        id,
		Key:       key,
		StartTime: testEpoch,
	}
}

func newTestEngine(
	store *fakeStore,
	poster *fakePoster,
	now time.Time,
) *Engine {
	return New(Config{
		Store:        store,
		Gateway:      poster,
		CommentBlock: true,
		Clock:        fixedClock(now),
	})
}

func TestCommitEditTime(t *testing.T) {
	cases := []struct {
		name       string
		input      string
		wantStored bool
		want       time.Duration
		wantErr    error
	}{
		{name: "empty input is a cancel"},
		{
			name:    "unparseable input is rejected",
			input:   "abc",
			wantErr: ErrInvalidDuration,
		},
		{
			name:    "negative duration is rejected",
			input:   "-10m",
			wantErr: ErrInvalidDuration,
		},
		{
			name:    "zero duration is rejected",
			input:   "0m",
			wantErr: ErrInvalidDuration,
		},
		{
			name:       "valid duration replaces elapsed time",
			input:      "25m",
			wantStored: true,
			want:       25 * time.Minute,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := testEpoch.Add(5 * time.Minute)
			store := newFakeStore(fixedClock(now), runningTimer("1", "PROJ-1"))
			eng := newTestEngine(store, &fakePoster{}, now)

			eng.BeginEditTime("1")

			snapID := func() string {
				eng.mu.Lock()
				defer eng.mu.Unlock()
				return eng.editingTimerID
			}

			if got := snapID(); got != "1" {
				t.Fatalf("expected edit mode for timer 1, got %q", got)
			}

			err := eng.CommitEditTime("1", tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected error %v, got %v", tc.wantErr, err)
			}

			if got := snapID(); got != "" {
				t.Errorf("edit mode not cleared, still %q", got)
			}

			d, stored := store.durationCalls["1"]

			if stored != tc.wantStored {
				t.Fatalf(
					"store mutated = %v, expected %v",
					stored, tc.wantStored,
				)
			}

			if tc.wantStored && d != tc.want {
				t.Errorf("expected duration %v, got %v", tc.want, d)
			}
		})
	}
}

func TestCommitEditTimeSurfacesStoreFailure(t *testing.T) {
	now := testEpoch.Add(5 * time.Minute)
	store := newFakeStore(fixedClock(now), runningTimer("1", "PROJ-1"))
	eng := newTestEngine(store, &fakePoster{}, now)

	err := eng.CommitEditTime("99", "25m")
	if err == nil {
		t.Fatal("expected an error for an unknown timer")
	}

	if errors.Is(err, ErrInvalidDuration) {
		t.Errorf("store failure misreported as invalid input: %v", err)
	}
}

func TestBeginEditTimePausesTimer(t *testing.T) {
	now := testEpoch.Add(time.Minute)
	store := newFakeStore(fixedClock(now), runningTimer("1", "PROJ-1"))
	eng := newTestEngine(store, &fakePoster{}, now)

	eng.BeginEditTime("1")

	if !store.paused("1") {
		t.Error("expected timer to be paused on entering time edit")
	}
}

func TestCommentEditIsExclusive(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	a := runningTimer("1", "PROJ-1")
	b := runningTimer("2", "PROJ-2")
	store := newFakeStore(fixedClock(now), a, b)
	eng := newTestEngine(store, &fakePoster{}, now)

	ctx := context.Background()

	if err := eng.BeginEditComment(ctx, a); err != nil {
		t.Fatal(err)
	}

	if got := eng.EditingCommentID(); got != "1" {
		t.Fatalf("expected comment mode on timer 1, got %q", got)
	}

	if !store.paused("1") {
		t.Error("expected timer 1 paused while commenting")
	}

	if err := eng.BeginEditComment(ctx, b); err != nil {
		t.Fatal(err)
	}

	if got := eng.EditingCommentID(); got != "2" {
		t.Errorf("expected comment mode to move to timer 2, got %q", got)
	}

	if store.paused("1") {
		t.Error("expected timer 1 resumed when timer 2 took comment mode")
	}

	if !store.paused("2") {
		t.Error("expected timer 2 paused while commenting")
	}
}

func TestBeginEditCommentFreezesHumanTime(t *testing.T) {
	now := testEpoch.Add(89 * time.Second)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	eng := newTestEngine(store, &fakePoster{}, now)

	if err := eng.BeginEditComment(context.Background(), timer); err != nil {
		t.Fatal(err)
	}

	// 89s rounds to 1 minute
	if got := eng.PostingHumanTime(); got != "1m" {
		t.Errorf("expected frozen human time 1m, got %q", got)
	}
}

func TestBeginEditCommentDisabledPostsImmediately(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	poster := &fakePoster{}

	eng := New(Config{
		Store:        store,
		Gateway:      poster,
		CommentBlock: false,
		Clock:        fixedClock(now),
	})

	if err := eng.BeginEditComment(context.Background(), timer); err != nil {
		t.Fatal(err)
	}

	if poster.callCount() != 1 {
		t.Fatalf("expected 1 post call, got %d", poster.callCount())
	}

	if got := eng.EditingCommentID(); got != "" {
		t.Errorf("expected no comment mode, got %q", got)
	}
}

func TestCancelEditCommentResumesTimer(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	eng := newTestEngine(store, &fakePoster{}, now)

	if err := eng.BeginEditComment(context.Background(), timer); err != nil {
		t.Fatal(err)
	}

	eng.CancelEditComment("1")

	if got := eng.EditingCommentID(); got != "" {
		t.Errorf("expected comment mode cleared, got %q", got)
	}

	if store.paused("1") {
		t.Error("expected cancel to resume the timer")
	}
}

func TestCommitCommentPersistsAndPosts(t *testing.T) {
	now := testEpoch.Add(30 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	poster := &fakePoster{}
	eng := newTestEngine(store, poster, now)

	ctx := context.Background()

	if err := eng.BeginEditComment(ctx, timer); err != nil {
		t.Fatal(err)
	}

	if err := eng.CommitComment(ctx, timer, "reviewed the fix"); err != nil {
		t.Fatal(err)
	}

	if got := store.commentCalls["1"]; got != "reviewed the fix" {
		t.Errorf("expected comment persisted, got %q", got)
	}

	if got := eng.EditingCommentID(); got != "" {
		t.Errorf("expected comment mode cleared, got %q", got)
	}

	want := []postCall{
		{Key: "PROJ-1", Seconds: 1800, Comment: "reviewed the fix"},
	}

	if diff := cmp.Diff(want, poster.calls); diff != "" {
		t.Errorf("post calls mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"1"}, store.removed); diff != "" {
		t.Errorf("expected timer removed after post (-want +got):\n%s", diff)
	}
}

func TestPostAppliesOneMinuteFloor(t *testing.T) {
	now := testEpoch.Add(10 * time.Second)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	poster := &fakePoster{}
	eng := newTestEngine(store, poster, now)

	if err := eng.Post(context.Background(), timer); err != nil {
		t.Fatal(err)
	}

	want := []postCall{{Key: "PROJ-1", Seconds: 60}}

	if diff := cmp.Diff(want, poster.calls); diff != "" {
		t.Errorf("post calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPostFailureKeepsTimer(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	poster := &fakePoster{err: errors.New("boom")}
	eng := newTestEngine(store, poster, now)

	err := eng.Post(context.Background(), timer)
	if err == nil {
		t.Fatal("expected post failure to surface")
	}

	if len(store.removed) != 0 {
		t.Error("expected timer kept after failed post")
	}

	eng.mu.Lock()
	stuck := eng.posting["1"]
	eng.mu.Unlock()

	if stuck {
		t.Error("posting flag left set after failure")
	}

	// the timer must be retryable
	poster.err = nil

	if err := eng.Post(context.Background(), timer); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestConcurrentPostsForSameTimer(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)

	poster := &fakePoster{block: make(chan struct{})}
	eng := newTestEngine(store, poster, now)

	ctx := context.Background()

	firstDone := make(chan error, 1)

	go func() {
		firstDone <- eng.Post(ctx, timer)
	}()

	// wait until the first post is in flight
	deadline := time.After(2 * time.Second)
	for poster.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first post never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	err := eng.Post(ctx, timer)
	if !errors.Is(err, ErrTimerPosting) {
		t.Fatalf("expected ErrTimerPosting, got %v", err)
	}

	close(poster.block)

	if err := <-firstDone; err != nil {
		t.Fatalf("first post failed: %v", err)
	}

	if poster.callCount() != 1 {
		t.Errorf(
			"expected exactly one network call, got %d",
			poster.callCount(),
		)
	}
}

func TestPostingTimerRejectsEdits(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	poster := &fakePoster{block: make(chan struct{})}
	eng := newTestEngine(store, poster, now)

	ctx := context.Background()

	done := make(chan error, 1)

	go func() {
		done <- eng.Post(ctx, timer)
	}()

	deadline := time.After(2 * time.Second)
	for poster.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("post never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	eng.BeginEditTime("1")

	if got := func() string {
		eng.mu.Lock()
		defer eng.mu.Unlock()
		return eng.editingTimerID
	}(); got != "" {
		t.Error("expected time edit rejected while posting")
	}

	if err := eng.BeginEditComment(ctx, timer); err != nil {
		t.Fatal(err)
	}

	if got := eng.EditingCommentID(); got != "" {
		t.Error("expected comment edit rejected while posting")
	}

	close(poster.block)
	<-done
}

func TestDeleteCancelsEditModes(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	eng := newTestEngine(store, &fakePoster{}, now)

	if err := eng.BeginEditComment(context.Background(), timer); err != nil {
		t.Fatal(err)
	}

	eng.BeginEditTime("1")

	if err := eng.Delete("1"); err != nil {
		t.Fatal(err)
	}

	if got := eng.EditingCommentID(); got != "" {
		t.Errorf("expected comment mode cleared on delete, got %q", got)
	}

	eng.mu.Lock()
	editing := eng.editingTimerID
	eng.mu.Unlock()

	if editing != "" {
		t.Errorf("expected time-edit mode cleared on delete, got %q", editing)
	}

	if diff := cmp.Diff([]string{"1"}, store.removed); diff != "" {
		t.Errorf("expected timer removed (-want +got):\n%s", diff)
	}
}

func TestStartClearsEditTimeAndResumes(t *testing.T) {
	now := testEpoch.Add(10 * time.Minute)
	timer := runningTimer("1", "PROJ-1")
	store := newFakeStore(fixedClock(now), timer)
	eng := newTestEngine(store, &fakePoster{}, now)

	eng.BeginEditTime("1")

	if !store.paused("1") {
		t.Fatal("expected timer paused in edit mode")
	}

	eng.Start("1")

	if store.paused("1") {
		t.Error("expected timer resumed by Start")
	}

	eng.mu.Lock()
	editing := eng.editingTimerID
	eng.mu.Unlock()

	if editing != "" {
		t.Errorf("expected edit mode abandoned, got %q", editing)
	}
}
