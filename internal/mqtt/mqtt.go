// Package mqtt publishes the daemon's own health to an MQTT status feed.
// Pin notifications never travel over MQTT; the feed only carries lifecycle
// events and status snapshots.
package mqtt

import (
	"errors"
	"time"

	"github.com/bytedance/sonic"
)

// System event names.
const (
	EventStartup     = "STARTUP"
	EventReconnected = "RECONNECTED"
	EventHeartbeat   = "HEARTBEAT"
	EventShutdown    = "SHUTDOWN"
)

// ReasonDisconnect is the reason carried by the broker-published will.
const ReasonDisconnect = "MQTT_DISCONNECT"

// ErrNotConnected is returned when an event is dropped because the broker
// connection is down. Events are never queued.
var ErrNotConnected = errors.New("mqtt not connected")

// Publisher publishes system events.
type Publisher interface {
	// PublishSystem sends a system lifecycle event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return sonic.Marshal(payload)
}

// WillEvent is the retained event the broker publishes if the daemon drops
// off without a clean shutdown.
func WillEvent(now time.Time) SystemEvent {
	return SystemEvent{
		Timestamp: now,
		Event:     EventShutdown,
		Reason:    ReasonDisconnect,
		Retained:  true,
	}
}
