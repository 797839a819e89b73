// Package sched abstracts time for the delivery pipeline: wall clocks and
// deferred callbacks go through interfaces so tests can drive a virtual
// clock instead of real timers.
package sched

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Scheduler defers a callback by a duration. There is no cancellation:
// callbacks re-check their preconditions against current state when they
// fire and no-op when stale.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time { return time.Now() }

// TimerScheduler runs callbacks on real timers.
type TimerScheduler struct{}

// After schedules fn after d using a timer goroutine.
func (TimerScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
