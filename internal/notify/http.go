package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptrace"
	"slices"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// readChunk is the size of each EventData delivery.
const readChunk = 512

// HTTPTransport performs requests with a resty client and streams the
// response body to the handler.
type HTTPTransport struct {
	client *resty.Client
}

// NewHTTPTransport creates a transport whose every request, body included,
// is bounded by timeout. Requests are never retried.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(restyLogger{l: log.Logger.With().Str("component", "resty").Logger()})

	return &HTTPTransport{client: client}
}

// Perform posts req and feeds the exchange events to h.
func (t *HTTPTransport) Perform(ctx context.Context, req Request, h Handler) (int, error) {
	defer func() { _ = h(Event{Kind: EventDisconnected}) }()

	var gotConn, wroteHeaders atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn:      func(httptrace.GotConnInfo) { gotConn.Store(true) },
		WroteHeaders: func() { wroteHeaders.Store(true) },
	}

	resp, err := t.client.R().
		SetContext(httptrace.WithClientTrace(ctx, trace)).
		SetHeader("Content-Type", req.ContentType).
		SetBody(req.Body).
		SetDoNotParseResponse(true).
		Post(req.URL)
	if err != nil {
		_ = h(Event{Kind: EventError, Err: err})
		return 0, fmt.Errorf("post %s: %w", req.URL, err)
	}

	raw := resp.RawResponse
	body := resp.RawBody()
	defer body.Close()

	// Trace callbacks may fire on transport goroutines; replay them here so
	// the handler sees every event from this goroutine, in order.
	if gotConn.Load() {
		_ = h(Event{Kind: EventConnected})
	}
	if wroteHeaders.Load() {
		_ = h(Event{Kind: EventHeaderSent})
	}
	for key, values := range raw.Header {
		for _, v := range values {
			_ = h(Event{Kind: EventHeader, Key: key, Value: v})
		}
	}

	chunked := slices.Contains(raw.TransferEncoding, "chunked")
	buf := make([]byte, readChunk)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			herr := h(Event{
				Kind:          EventData,
				Data:          buf[:n],
				ContentLength: raw.ContentLength,
				Chunked:       chunked,
			})
			if herr != nil {
				_ = h(Event{Kind: EventError, Err: herr})
				return raw.StatusCode, fmt.Errorf("handle response data: %w", herr)
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			_ = h(Event{Kind: EventError, Err: rerr})
			return raw.StatusCode, fmt.Errorf("read response body: %w", rerr)
		}
	}

	_ = h(Event{Kind: EventFinish, StatusCode: raw.StatusCode})
	return raw.StatusCode, nil
}

// restyLogger routes resty's internal logging to zerolog.
type restyLogger struct {
	l zerolog.Logger
}

// Errorf logs at debug level: request failures are reported by the dispatcher.
func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Debug().Msgf(format, v...)
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn().Msgf(format, v...)
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug().Msgf(format, v...)
}
