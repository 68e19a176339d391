package notify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrBufferAlloc means the response could not be buffered within the
// configured limit.
var ErrBufferAlloc = errors.New("response buffer allocation failed")

// unknownLengthCap is the starting capacity when no length is declared.
const unknownLengthCap = 32

// openSessions counts live response sessions across all exchanges.
var openSessions atomic.Int64

// responseSession buffers the body of one response. It is created on the
// first data chunk and owned by a single exchange.
type responseSession struct {
	buf   []byte
	limit int
}

func newResponseSession(contentLength int64, limit int) (*responseSession, error) {
	if contentLength > int64(limit) {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrBufferAlloc, contentLength, limit)
	}
	size := unknownLengthCap
	if contentLength >= 0 {
		size = int(contentLength)
	}
	openSessions.Add(1)
	return &responseSession{
		buf:   make([]byte, 0, size),
		limit: limit,
	}, nil
}

func (s *responseSession) append(p []byte) error {
	if len(s.buf)+len(p) > s.limit {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrBufferAlloc, s.limit)
	}
	s.buf = append(s.buf, p...)
	return nil
}

// exchange carries per-request state through the transport's handler.
type exchange struct {
	limit   int
	session *responseSession
	body    []byte
	chunked bool
}

func newExchange(limit int) *exchange {
	return &exchange{limit: limit}
}

func (x *exchange) handle(ev Event) error {
	switch ev.Kind {
	case EventError:
		log.Debug().Err(ev.Err).Msg("http event error")
		x.release()
	case EventConnected, EventHeaderSent:
		log.Trace().Stringer("event", ev.Kind).Msg("http event")
	case EventHeader:
		log.Trace().Str("key", ev.Key).Str("value", ev.Value).Msg("http header")
		x.release()
	case EventData:
		log.Trace().Int("len", len(ev.Data)).Msg("http data")
		if ev.Chunked {
			x.chunked = true
			return nil
		}
		if x.session == nil {
			s, err := newResponseSession(ev.ContentLength, x.limit)
			if err != nil {
				log.Error().Err(err).Msg("failed to allocate response buffer")
				return err
			}
			x.session = s
		}
		if err := x.session.append(ev.Data); err != nil {
			log.Error().Err(err).Msg("failed to grow response buffer")
			x.release()
			return err
		}
	case EventFinish:
		if x.session != nil && len(x.session.buf) > 0 {
			x.body = append([]byte(nil), x.session.buf...)
		}
		x.release()
	case EventDisconnected:
		x.release()
	}
	return nil
}

// release frees the session. Safe to call on every exit path.
func (x *exchange) release() {
	if x.session == nil {
		return
	}
	x.session = nil
	openSessions.Add(-1)
}

// remoteTime returns the server time carried by the finished response.
func (x *exchange) remoteTime() (time.Time, bool) {
	if x.chunked {
		return time.Time{}, false
	}
	return parseRemoteTime(x.body)
}

// maxRemoteTime is 9999-12-31T23:59:59Z, the last second time.Time formats
// with a four-digit year.
const maxRemoteTime = 253402300799

// parseRemoteTime parses a body holding epoch seconds in ASCII decimal.
// Anything else, and any value outside (0, maxRemoteTime], means no time is
// available.
func parseRemoteTime(body []byte) (time.Time, bool) {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 || sec > maxRemoteTime {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
