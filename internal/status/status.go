// Package status provides a thread-safe status tracker for the gcn daemon.
// It is read by the HTTP status server and the MQTT status feed and never
// feeds back into control decisions.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gcn/internal/logic"
)

// NetworkInfo describes the watched interface.
type NetworkInfo struct {
	Interface string
	Address   string
}

// Dispatch is the outcome of the last notification. This is a local copy to
// avoid importing internal/notify from status.
type Dispatch struct {
	Time        time.Time
	Reason      string
	Value       bool
	Delivered   bool
	StatusCode  int
	RemoteTime  time.Time
	HasRemote   bool
	ClockSynced bool
	Error       string
}

// Config contains daemon configuration for display. Secrets are never copied
// here.
type Config struct {
	Host        string
	NotifyURL   string
	Pin         int
	Chip        string
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Interface   string
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Value            bool
	Raw              bool
	Phase            logic.Phase
	Counts           logic.Counts
	LastNotification time.Time
	Connected        bool
	Network          *NetworkInfo
	LastDispatch     *Dispatch
	Dispatches       int
	Failures         int
	ClockSyncs       int
	StartTime        time.Time
	Now              time.Time
	MQTTConnected    bool
	Config           Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:        startTime,
			LastNotification: startTime,
			Config:           cfg,
		},
	}
}

// Update records the detector state. Called from runLoop on every tick.
func (t *Tracker) Update(value, raw bool, phase logic.Phase, counts logic.Counts, lastNotification time.Time) {
	t.mu.Lock()
	t.snap.Value = value
	t.snap.Raw = raw
	t.snap.Phase = phase
	t.snap.Counts = counts
	t.snap.LastNotification = lastNotification
	t.mu.Unlock()
}

// SetConnected sets the network connectivity flag as last seen by the loop.
func (t *Tracker) SetConnected(connected bool) {
	t.mu.Lock()
	t.snap.Connected = connected
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info. nil clears it.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// RecordDispatch stores the outcome of a notification.
func (t *Tracker) RecordDispatch(d Dispatch) {
	t.mu.Lock()
	t.snap.LastDispatch = &d
	t.snap.Dispatches++
	if !d.Delivered {
		t.snap.Failures++
	}
	if d.ClockSynced {
		t.snap.ClockSyncs++
	}
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	if s.LastDispatch != nil {
		d := *s.LastDispatch
		s.LastDispatch = &d
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
