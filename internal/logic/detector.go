package logic

import "time"

// Detector is the two-state debounce machine for one input line.
//
// From STABLE(v) a sample r != v enters CANDIDATE(r). The caller then waits
// the debounce window and re-samples: Confirm promotes the candidate if the
// re-read still differs from v, otherwise the candidate is discarded. Any
// pulse shorter than the window is rejected; there is no further hysteresis.
type Detector struct {
	phase     Phase
	obs       Observation
	candidate Candidate
}

// NewDetector creates a detector in STABLE, seeded with the first raw sample.
func NewDetector(initial bool, now time.Time) *Detector {
	return &Detector{
		phase: PhaseStable,
		obs:   Observation{Confirmed: initial, LastSample: now},
	}
}

// Sample evaluates a raw sample. It returns true when the detector is in
// CANDIDATE afterwards, in which case the caller must wait the debounce
// window and call Confirm (or Discard).
func (d *Detector) Sample(raw bool, now time.Time) bool {
	if d.phase == PhaseCandidate {
		// Confirm was not called for the pending candidate; keep waiting on it.
		return true
	}

	d.obs.LastSample = now
	if raw == d.obs.Confirmed {
		return false
	}

	d.phase = PhaseCandidate
	d.candidate = Candidate{Value: raw, Since: now}
	return true
}

// Confirm applies the post-window re-sample. It returns the confirmed value
// and whether it changed. A re-read equal to the old stable value discards
// the candidate.
func (d *Detector) Confirm(raw bool, now time.Time) (bool, bool) {
	if d.phase != PhaseCandidate {
		return d.obs.Confirmed, false
	}

	d.obs.LastSample = now
	d.phase = PhaseStable
	d.candidate = Candidate{}

	if raw == d.obs.Confirmed {
		return d.obs.Confirmed, false
	}

	d.obs.Confirmed = raw
	return raw, true
}

// Discard drops a pending candidate without changing the confirmed value.
func (d *Detector) Discard() {
	d.phase = PhaseStable
	d.candidate = Candidate{}
}

// Preempt records a tick whose sample was consumed by a heartbeat. The sample
// is not evaluated; a real change is picked up on the next tick.
func (d *Detector) Preempt(now time.Time) {
	if d.phase == PhaseCandidate {
		return
	}
	d.obs.LastSample = now
}

// Phase returns the current machine state.
func (d *Detector) Phase() Phase {
	return d.phase
}

// Observation returns the confirmed value and last sample time.
func (d *Detector) Observation() Observation {
	return d.obs
}

// Pending returns the candidate, if any.
func (d *Detector) Pending() (Candidate, bool) {
	return d.candidate, d.phase == PhaseCandidate
}
