// Package connectivity tracks whether the network path to the notification
// endpoint is believed usable.
//
// The flag is written only by network event callbacks, which run on the
// network stack's goroutine, and read by the control loop. It is the only
// state shared between the two; a stale read costs at most one tick.
package connectivity

import (
	"net/netip"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// EventKind identifies a network stack event.
type EventKind int

const (
	// EventStart is emitted once when the interface is brought up.
	EventStart EventKind = iota
	// EventDisconnected is emitted when the link or its address is lost.
	EventDisconnected
	// EventGotAddress is emitted when the interface acquires an address.
	EventGotAddress
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "START"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventGotAddress:
		return "GOT_ADDRESS"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered by the network stack.
type Event struct {
	Kind EventKind
	// Addr is set for EventGotAddress.
	Addr netip.Addr
}

// Connector asks the network stack to attempt a connection. Implementations
// must not block; the attempt is fire-and-forget.
type Connector interface {
	Connect() error
}

// Tracker holds the connectivity flag.
type Tracker struct {
	connected atomic.Bool
	connector Connector
}

// NewTracker creates a disconnected tracker. connector may be nil.
func NewTracker(connector Connector) *Tracker {
	return &Tracker{connector: connector}
}

// Connected reports whether the endpoint is believed reachable.
func (t *Tracker) Connected() bool {
	return t.connected.Load()
}

// Handle applies a network stack event. It is meant to be registered as the
// stack's event callback.
func (t *Tracker) Handle(ev Event) {
	switch ev.Kind {
	case EventStart, EventDisconnected:
		t.connected.Store(false)
		log.Debug().Stringer("event", ev.Kind).Msg("network down, requesting connect")
		t.requestConnect()
	case EventGotAddress:
		log.Info().Stringer("ip", ev.Addr).Msg("got ip")
		t.connected.Store(true)
	default:
		log.Warn().Int("event", int(ev.Kind)).Msg("ignoring unknown network event")
	}
}

func (t *Tracker) requestConnect() {
	if t.connector == nil {
		return
	}
	if err := t.connector.Connect(); err != nil {
		log.Warn().Err(err).Msg("connect request failed")
	}
}
