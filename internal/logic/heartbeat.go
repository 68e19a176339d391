package logic

import "time"

// Heartbeat decides when an idle notification is due.
type Heartbeat struct {
	interval time.Duration
	last     time.Time
}

// NewHeartbeat creates a scheduler whose idle window starts at start.
// An interval <= 0 disables heartbeats.
func NewHeartbeat(interval time.Duration, start time.Time) *Heartbeat {
	return &Heartbeat{
		interval: interval,
		last:     start,
	}
}

// Due reports whether a heartbeat must be sent at now. Heartbeats never fire
// while disconnected.
func (h *Heartbeat) Due(now time.Time, connected bool) bool {
	if h.interval <= 0 || !connected {
		return false
	}
	return now.Sub(h.last) > h.interval
}

// Reset restarts the idle window. Called for every attempted notification,
// whatever its reason and outcome.
func (h *Heartbeat) Reset(now time.Time) {
	h.last = now
}

// LastNotification returns the start of the current idle window.
func (h *Heartbeat) LastNotification() time.Time {
	return h.last
}

// Interval returns the configured idle interval.
func (h *Heartbeat) Interval() time.Duration {
	return h.interval
}
