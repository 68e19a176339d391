// Package logic contains the pure decision logic of the notifier: the pin
// debounce state machine and the heartbeat scheduler.
// This package has NO external dependencies (no GPIO, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Phase is the state of the debounce machine.
type Phase int

const (
	// PhaseStable means the confirmed value matches the line.
	PhaseStable Phase = iota
	// PhaseCandidate means a differing sample is waiting for confirmation.
	PhaseCandidate
)

func (p Phase) String() string {
	switch p {
	case PhaseStable:
		return "STABLE"
	case PhaseCandidate:
		return "CANDIDATE"
	default:
		return "UNKNOWN"
	}
}

// Reason explains why a notification is sent.
type Reason string

const (
	ReasonChange    Reason = "CHANGE"
	ReasonHeartbeat Reason = "HEARTBEAT"
)

// Notification is handed to the dispatcher once per send.
type Notification struct {
	Reason Reason
	Value  bool
	Time   time.Time
}

// Observation is the last accepted pin state.
type Observation struct {
	// Confirmed is the last value accepted as stable.
	Confirmed bool
	// LastSample is the time of the most recent sample, whichever phase took it.
	LastSample time.Time
}

// Candidate is a suspected transition awaiting its confirmation re-read.
type Candidate struct {
	Value bool
	Since time.Time
}

// Counts tracks control loop activity since startup.
type Counts struct {
	Changes    int
	Heartbeats int
	Discarded  int
	Preempted  int
	ReadErrors int
}
