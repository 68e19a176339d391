// Package clock provides the local wall clock and a way to overwrite it.
package clock

import (
	"sync"
	"time"
)

// Clock is a settable source of wall-clock time.
type Clock interface {
	Now() time.Time
	Set(t time.Time) error
}

// System is the host clock. Set requires CAP_SYS_TIME on Linux.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// Fake is a manually driven clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time

	// SetError, if set, is returned by Set and the time is left unchanged.
	SetError error

	// Sets records every successful Set call.
	Sets []time.Time
}

// NewFake returns a Fake clock reading now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set overwrites the fake time.
func (f *Fake) Set(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.now = t
	f.Sets = append(f.Sets, t)
	return nil
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
