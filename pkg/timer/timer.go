// Package timer implements the countdown state machine shared by the match
// authority and the client projector. All functions are pure over an
// entities.TimerState and an explicit "now".
//
// A timer is Stopped (not running, not paused), Running (counting down from
// the baseline RemainingSeconds captured at StartTime) or Paused (baseline
// frozen at PausedAt). The live value is never stored; it is derived on read.
package timer

import (
	"math"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/entities"
)

// Live returns the remaining seconds at now and whether the timer is still
// counting down. A running timer whose countdown reached zero reports
// (0, false).
func Live(t entities.TimerState, now time.Time) (float64, bool) {
	return LiveAt(t, now.UnixMilli())
}

// LiveAt is Live with a Unix millisecond reference, for callers that only
// hold the authority's serverTime.
func LiveAt(t entities.TimerState, nowMs int64) (float64, bool) {
	if !t.IsRunning || t.StartTime == nil {
		return math.Max(0, t.RemainingSeconds), false
	}
	elapsed := math.Max(0, float64(nowMs-*t.StartTime)/1000)
	remaining := t.RemainingSeconds - elapsed
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Settle folds an expired countdown back into the Stopped state so that the
// expiry observed at read time sticks. It reports whether t changed.
func Settle(t *entities.TimerState, now time.Time) bool {
	if !t.IsRunning {
		return false
	}
	if _, running := Live(*t, now); running {
		return false
	}
	t.IsRunning = false
	t.IsPaused = false
	t.PausedAt = nil
	t.RemainingSeconds = 0
	return true
}

// Start moves a Stopped or Paused timer to Running. The baseline was
// captured when the timer paused, so the reference is re-anchored to now
// and the paused interval never counts against the countdown.
func Start(t *entities.TimerState, now time.Time) bool {
	Settle(t, now)
	if t.IsRunning || t.RemainingSeconds <= 0 {
		return false
	}
	ms := now.UnixMilli()
	t.StartTime = &ms
	t.IsRunning = true
	t.IsPaused = false
	t.PausedAt = nil
	return true
}

// Pause freezes a running timer at its live value. StartTime is kept.
func Pause(t *entities.TimerState, now time.Time) bool {
	if Settle(t, now) || !t.IsRunning {
		return false
	}
	remaining, _ := Live(*t, now)
	ms := now.UnixMilli()
	t.RemainingSeconds = remaining
	t.IsRunning = false
	t.IsPaused = true
	t.PausedAt = &ms
	return true
}

// Reset returns the timer to Stopped at its full duration. Always legal.
func Reset(t *entities.TimerState) {
	t.RemainingSeconds = float64(t.TotalDuration)
	t.StartTime = nil
	t.PausedAt = nil
	t.IsRunning = false
	t.IsPaused = false
}

// Set changes the total duration and resets to it.
func Set(t *entities.TimerState, duration int) {
	t.TotalDuration = duration
	Reset(t)
}

// Adjust shifts the remaining time by delta seconds, clamped to
// [0, TotalDuration], in any run state. A running timer is re-baselined at
// now first so that the adjustment applies to the live value.
func Adjust(t *entities.TimerState, delta int, now time.Time) {
	Settle(t, now)
	if t.IsRunning {
		remaining, _ := Live(*t, now)
		ms := now.UnixMilli()
		t.StartTime = &ms
		t.RemainingSeconds = remaining
	}
	t.RemainingSeconds = Clamp(t.RemainingSeconds+float64(delta), 0, float64(t.TotalDuration))
	if t.IsRunning && t.RemainingSeconds <= 0 {
		t.IsRunning = false
	}
}

func Clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
