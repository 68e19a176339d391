// Package notify delivers pin notifications to the remote endpoint and keeps
// the local clock in step with the time the endpoint sends back.
package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/gcn/internal/clock"
	"github.com/sweeney/gcn/internal/logic"
)

// ContentType is the request body encoding.
const ContentType = "application/x-www-form-urlencoded"

// SyncThreshold is the drift above which the local clock is overwritten.
const SyncThreshold = 60 * time.Second

// DefaultMaxResponseBytes caps the response session when none is configured.
const DefaultMaxResponseBytes = 1024

// Config identifies the endpoint and this device.
type Config struct {
	URL              string
	Host             string
	Pin              int
	MaxResponseBytes int
}

// Result describes one dispatch. It is passed to the result observer only.
type Result struct {
	Notification logic.Notification
	Time         time.Time
	Delivered    bool
	StatusCode   int
	RemoteTime   time.Time
	HasRemote    bool
	ClockSynced  bool
	Err          error
}

// Dispatcher sends notifications one at a time, synchronously.
type Dispatcher struct {
	cfg       Config
	transport Transport
	clock     clock.Clock
	onResult  func(Result)
}

// New creates a Dispatcher.
func New(cfg Config, transport Transport, clk clock.Clock) *Dispatcher {
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return &Dispatcher{
		cfg:       cfg,
		transport: transport,
		clock:     clk,
	}
}

// OnResult registers an observer called after every dispatch.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.onResult = fn
}

// FormatBody builds the request body. host is written as is: it comes from
// operator configuration and is not escaped.
func FormatBody(host string, now time.Time, pin int, value bool) string {
	v := "0"
	if value {
		v = "1"
	}
	return "host=" + host +
		"&time=" + strconv.FormatInt(now.Unix(), 10) +
		"&gpio=" + strconv.Itoa(pin) +
		"&value=" + v
}

// Notify sends n and synchronizes the clock from the reply. Failures are
// logged and swallowed; a lost notification is not recoverable here.
func (d *Dispatcher) Notify(ctx context.Context, n logic.Notification) {
	now := d.clock.Now()
	res := Result{Notification: n, Time: now}
	defer func() {
		if d.onResult != nil {
			d.onResult(res)
		}
	}()

	if d.transport == nil {
		log.Warn().Msg("could not create HTTP client, skipping notification")
		return
	}

	req := Request{
		URL:         d.cfg.URL,
		ContentType: ContentType,
		Body:        FormatBody(d.cfg.Host, now, d.cfg.Pin, n.Value),
	}
	log.Debug().Str("body", req.Body).Str("reason", string(n.Reason)).Msg("sending notification")

	x := newExchange(d.cfg.MaxResponseBytes)
	defer x.release()

	status, err := d.transport.Perform(ctx, req, x.handle)
	res.StatusCode = status
	if err != nil {
		res.Err = err
		log.Warn().Err(err).Str("url", d.cfg.URL).Msg("HTTP POST request failed")
		return
	}
	res.Delivered = true

	if status < 200 || status > 299 {
		log.Warn().Int("status", status).Msg("notification not accepted")
	} else {
		log.Debug().Int("status", status).Msg("notification result")
	}

	remote, ok := x.remoteTime()
	if !ok {
		return
	}
	res.RemoteTime, res.HasRemote = remote, true

	if !needsSync(now, remote) {
		return
	}

	log.Info().
		Int64("local", now.Unix()).
		Int64("remote", remote.Unix()).
		Msg("synchronizing local clock to server clock")
	if err := d.clock.Set(remote); err != nil {
		log.Warn().Err(err).Msg("could not update local clock")
		return
	}
	res.ClockSynced = true
}

// needsSync compares whole seconds, as the endpoint only sends seconds.
// parseRemoteTime bounds remote, so the difference cannot overflow.
func needsSync(local, remote time.Time) bool {
	diff := remote.Unix() - local.Unix()
	if diff < 0 {
		diff = -diff
	}
	return diff > int64(SyncThreshold/time.Second)
}
