package notify

import (
	"context"
	"strconv"
)

// FakeTransport replays scripted exchange events for tests.
type FakeTransport struct {
	// Events are delivered in order on every Perform.
	Events []Event
	// Status is returned by Perform.
	Status int
	// Err, if set, is delivered as EventError after Events and returned.
	Err error

	// Requests records every request performed.
	Requests []Request
}

// NewFakeTransport returns a transport answering 200 with body and a
// declared content length.
func NewFakeTransport(body string) *FakeTransport {
	return &FakeTransport{
		Events: ReplyEvents(200, body, false),
		Status: 200,
	}
}

// ReplyEvents scripts a complete exchange answering body.
func ReplyEvents(status int, body string, chunked bool) []Event {
	length := int64(len(body))
	events := []Event{
		{Kind: EventConnected},
		{Kind: EventHeaderSent},
	}
	if chunked {
		length = -1
		events = append(events, Event{Kind: EventHeader, Key: "Transfer-Encoding", Value: "chunked"})
	} else {
		events = append(events, Event{Kind: EventHeader, Key: "Content-Length", Value: strconv.Itoa(len(body))})
	}
	if body != "" {
		events = append(events, Event{Kind: EventData, Data: []byte(body), ContentLength: length, Chunked: chunked})
	}
	return append(events, Event{Kind: EventFinish, StatusCode: status})
}

// Perform replays Events to h.
func (f *FakeTransport) Perform(ctx context.Context, req Request, h Handler) (int, error) {
	f.Requests = append(f.Requests, req)
	defer func() { _ = h(Event{Kind: EventDisconnected}) }()

	for _, ev := range f.Events {
		if err := h(ev); err != nil {
			_ = h(Event{Kind: EventError, Err: err})
			return f.Status, err
		}
	}
	if f.Err != nil {
		_ = h(Event{Kind: EventError, Err: f.Err})
		return 0, f.Err
	}
	return f.Status, nil
}
