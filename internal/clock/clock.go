// Package clock abstracts time so delayed triggers can be driven by a
// fake clock in tests.
package clock

import "time"

// Timer is a cancellable delayed trigger.
type Timer interface {
	// Stop cancels the trigger. Reports whether it was still pending.
	Stop() bool
}

// Clock supplies the current time and schedules delayed functions.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

// New returns the wall clock.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
