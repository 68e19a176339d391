package status

import (
	"time"

	"github.com/bytedance/sonic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string        `json:"event,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	Host             string        `json:"host"`
	Pin              PinJSON       `json:"pin"`
	Network          NetworkJSON   `json:"network"`
	UptimeSeconds    int64         `json:"uptime_seconds"`
	StartTime        string        `json:"start_time"`
	Timestamp        string        `json:"timestamp"`
	LastNotification string        `json:"last_notification"`
	MQTT             MQTTStatus    `json:"mqtt"`
	Counts           CountsJSON    `json:"counts"`
	LastDispatch     *DispatchJSON `json:"last_dispatch,omitempty"`
	Config           ConfigJSON    `json:"config"`
}

// PinJSON reports the monitored line.
type PinJSON struct {
	GPIO  int    `json:"gpio"`
	Value int    `json:"value"`
	Raw   int    `json:"raw"`
	Phase string `json:"phase"`
}

// NetworkJSON reports connectivity.
type NetworkJSON struct {
	Connected bool   `json:"connected"`
	Interface string `json:"interface,omitempty"`
	Address   string `json:"address,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of loop and dispatch counters.
type CountsJSON struct {
	Changes    int `json:"changes"`
	Heartbeats int `json:"heartbeats"`
	Discarded  int `json:"discarded"`
	Preempted  int `json:"preempted"`
	ReadErrors int `json:"read_errors"`
	Dispatches int `json:"dispatches"`
	Failures   int `json:"failures"`
	ClockSyncs int `json:"clock_syncs"`
}

// DispatchJSON is the JSON representation of the last notification.
type DispatchJSON struct {
	Time        string `json:"time"`
	Reason      string `json:"reason"`
	Value       int    `json:"value"`
	Delivered   bool   `json:"delivered"`
	StatusCode  int    `json:"status_code,omitempty"`
	RemoteTime  int64  `json:"remote_time,omitempty"`
	ClockSynced bool   `json:"clock_synced"`
	Error       string `json:"error,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	NotifyURL   string `json:"notify_url"`
	Chip        string `json:"chip"`
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Interface   string `json:"interface"`
	Broker      string `json:"broker,omitempty"`
	HTTPAddr    string `json:"http_addr"`
}

func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Host: snap.Config.Host,
		Pin: PinJSON{
			GPIO:  snap.Config.Pin,
			Value: bit(snap.Value),
			Raw:   bit(snap.Raw),
			Phase: snap.Phase.String(),
		},
		Network:          NetworkJSON{Connected: snap.Connected},
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		LastNotification: snap.LastNotification.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Changes:    snap.Counts.Changes,
			Heartbeats: snap.Counts.Heartbeats,
			Discarded:  snap.Counts.Discarded,
			Preempted:  snap.Counts.Preempted,
			ReadErrors: snap.Counts.ReadErrors,
			Dispatches: snap.Dispatches,
			Failures:   snap.Failures,
			ClockSyncs: snap.ClockSyncs,
		},
		Config: ConfigJSON{
			NotifyURL:   snap.Config.NotifyURL,
			Chip:        snap.Config.Chip,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Interface:   snap.Config.Interface,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.Network != nil {
		inner.Network.Interface = snap.Network.Interface
		inner.Network.Address = snap.Network.Address
	}

	if d := snap.LastDispatch; d != nil {
		dj := &DispatchJSON{
			Time:        d.Time.UTC().Format(time.RFC3339),
			Reason:      d.Reason,
			Value:       bit(d.Value),
			Delivered:   d.Delivered,
			StatusCode:  d.StatusCode,
			ClockSynced: d.ClockSynced,
			Error:       d.Error,
		}
		if d.HasRemote {
			dj.RemoteTime = d.RemoteTime.Unix()
		}
		inner.LastDispatch = dj
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := sonic.ConfigStd.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := sonic.Marshal(StatusJSON{Status: inner})
	return data
}
