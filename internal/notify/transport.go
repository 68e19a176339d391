package notify

import (
	"context"
	"fmt"
)

// EventKind identifies a step of one HTTP exchange.
type EventKind int

const (
	EventError EventKind = iota
	EventConnected
	EventHeaderSent
	EventHeader
	EventData
	EventFinish
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventError:
		return "ERROR"
	case EventConnected:
		return "CONNECTED"
	case EventHeaderSent:
		return "HEADER_SENT"
	case EventHeader:
		return "HEADER"
	case EventData:
		return "DATA"
	case EventFinish:
		return "FINISH"
	case EventDisconnected:
		return "DISCONNECTED"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to a Handler, in order, from the goroutine that called
// Perform.
type Event struct {
	Kind EventKind

	// Key and Value are set for EventHeader.
	Key   string
	Value string

	// Data is set for EventData. It is only valid during the call.
	Data []byte
	// ContentLength is the declared body length, -1 if unknown.
	ContentLength int64
	// Chunked reports a chunked transfer encoding.
	Chunked bool

	// StatusCode is set for EventFinish.
	StatusCode int

	// Err is set for EventError.
	Err error
}

// Handler consumes exchange events. Returning an error from EventData aborts
// the exchange.
type Handler func(Event) error

// Request is one POST.
type Request struct {
	URL         string
	ContentType string
	Body        string
}

// Transport performs one request at a time. It always delivers
// EventDisconnected last, whatever the outcome, and enforces its own timeout.
type Transport interface {
	Perform(ctx context.Context, req Request, h Handler) (int, error)
}
