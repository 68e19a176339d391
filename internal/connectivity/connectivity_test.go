package connectivity

import (
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingConnector struct {
	calls atomic.Int32
	err   error
}

func (c *countingConnector) Connect() error {
	c.calls.Add(1)
	return c.err
}

func TestTrackerStartsDisconnected(t *testing.T) {
	tr := NewTracker(nil)
	assert.False(t, tr.Connected())
}

func TestTrackerTransitions(t *testing.T) {
	conn := &countingConnector{}
	tr := NewTracker(conn)

	tr.Handle(Event{Kind: EventStart})
	assert.False(t, tr.Connected())
	assert.EqualValues(t, 1, conn.calls.Load(), "start should request a connection")

	tr.Handle(Event{Kind: EventGotAddress, Addr: netip.MustParseAddr("192.168.1.42")})
	assert.True(t, tr.Connected())
	assert.EqualValues(t, 1, conn.calls.Load(), "got-address must not request a connection")

	tr.Handle(Event{Kind: EventDisconnected})
	assert.False(t, tr.Connected())
	assert.EqualValues(t, 2, conn.calls.Load(), "disconnect should request a connection")
}

func TestTrackerConnectFailureIsSwallowed(t *testing.T) {
	conn := &countingConnector{err: errors.New("radio busy")}
	tr := NewTracker(conn)

	require.NotPanics(t, func() {
		tr.Handle(Event{Kind: EventDisconnected})
	})
	assert.False(t, tr.Connected())
	assert.EqualValues(t, 1, conn.calls.Load())
}

func TestTrackerUnknownEvent(t *testing.T) {
	tr := NewTracker(nil)
	tr.Handle(Event{Kind: EventGotAddress, Addr: netip.MustParseAddr("10.0.0.2")})

	tr.Handle(Event{Kind: EventKind(99)})
	assert.True(t, tr.Connected(), "unknown events must not change the flag")
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(&countingConnector{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				tr.Handle(Event{Kind: EventGotAddress, Addr: netip.MustParseAddr("10.0.0.2")})
			} else {
				tr.Handle(Event{Kind: EventDisconnected})
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = tr.Connected()
		}
	}()
	wg.Wait()

	assert.False(t, tr.Connected(), "last event was a disconnect")
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "START", EventStart.String())
	assert.Equal(t, "DISCONNECTED", EventDisconnected.String())
	assert.Equal(t, "GOT_ADDRESS", EventGotAddress.String())
	assert.Equal(t, "UNKNOWN", EventKind(7).String())
}
