// Package timeutil computes elapsed time for work timers and formats it for
// the various displays (stopwatch, menubar, human-readable).
package timeutil

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	secondsInAMinute = 60
	secondsInAnHour  = 3600
)

// Round rounds a time value in seconds, minutes, or hours to the nearest
// integer.
func Round(t float64) int {
	return int(math.Round(t))
}

// Elapsed returns the total time accrued by a timer at the instant now.
// A paused timer accrues nothing beyond previouslyElapsed. The running
// segment is clamped at zero so clock skew can never push the result below
// previouslyElapsed.
func Elapsed(
	startTime time.Time,
	previouslyElapsed time.Duration,
	paused bool,
	now time.Time,
) time.Duration {
	if paused {
		return previouslyElapsed
	}

	segment := now.Sub(startTime)
	if segment < 0 {
		segment = 0
	}

	return segment + previouslyElapsed
}

// ElapsedSeconds is Elapsed rounded to whole seconds.
func ElapsedSeconds(
	startTime time.Time,
	previouslyElapsed time.Duration,
	paused bool,
	now time.Time,
) int {
	ms := Elapsed(startTime, previouslyElapsed, paused, now).Milliseconds()

	return Round(float64(ms) / 1000)
}

// Stopwatch formats a second count as H:MM:SS, omitting the hour component
// when it is zero.
func Stopwatch(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	hrs := seconds / secondsInAnHour
	mins := (seconds % secondsInAnHour) / secondsInAMinute
	secs := seconds % secondsInAMinute

	if hrs > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hrs, mins, secs)
	}

	return fmt.Sprintf("%d:%02d", mins, secs)
}

// RoundToNearestMinutes rounds a second count to the nearest multiple of
// nearest minutes.
func RoundToNearestMinutes(seconds, nearest int) int {
	if nearest <= 0 {
		nearest = 1
	}

	return Round(float64(seconds)/float64(secondsInAMinute*nearest)) * nearest
}

// MenubarSeconds converts an elapsed second count to the second count shown
// in the menubar. The result is one minute behind the rounded elapsed time
// so the minute counter never appears to jump ahead the instant a new
// minute begins.
func MenubarSeconds(elapsedSeconds int) int {
	mins := RoundToNearestMinutes(elapsedSeconds, 1) - 1
	if mins < 0 {
		mins = 0
	}

	return mins * secondsInAMinute
}

// Menubar formats a second count as H:MM (hours and minutes) for the
// menubar summary.
func Menubar(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	hrs := seconds / secondsInAnHour
	mins := (seconds % secondsInAnHour) / secondsInAMinute

	return fmt.Sprintf("%d:%02d", hrs, mins)
}

// WorklogSeconds converts an elapsed second count to the duration actually
// submitted as a work log: rounded to the nearest minute, with a one-minute
// floor since the remote service rejects empty work logs.
func WorklogSeconds(elapsedSeconds int) int {
	rounded := RoundToNearestMinutes(elapsedSeconds, 1) * secondsInAMinute
	if rounded < secondsInAMinute {
		rounded = secondsInAMinute
	}

	return rounded
}

// Human expresses a second count in words, e.g. "1h 30m" or "45m".
func Human(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	hrs := seconds / secondsInAnHour
	mins := (seconds % secondsInAnHour) / secondsInAMinute

	var sb strings.Builder

	if hrs > 0 {
		fmt.Fprintf(&sb, "%dh ", hrs)
	}

	fmt.Fprintf(&sb, "%dm", mins)

	return sb.String()
}

// ParseDuration parses a manually edited time value. Plain numbers are
// interpreted as minutes so "25" and "25m" are equivalent.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	dur, err := time.ParseDuration(s)
	if err == nil {
		return dur, nil
	}

	mins, err := time.ParseDuration(s + "m")
	if err != nil {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	return mins, nil
}
