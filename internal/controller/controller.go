// Package controller runs one polling step of the notifier: read the pin,
// send a heartbeat when one is due, otherwise debounce and report changes.
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/gcn/internal/gpio"
	"github.com/sweeney/gcn/internal/logic"
)

// Notifier delivers notifications. It never reports failure.
type Notifier interface {
	Notify(ctx context.Context, n logic.Notification)
}

// Connectivity reports whether the network is believed usable.
type Connectivity interface {
	Connected() bool
}

// Outcome is the result of one Step.
type Outcome int

const (
	OutcomeIdle Outcome = iota
	OutcomeReadError
	OutcomeHeartbeat
	OutcomeDiscarded
	OutcomeChanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "IDLE"
	case OutcomeReadError:
		return "READ_ERROR"
	case OutcomeHeartbeat:
		return "HEARTBEAT"
	case OutcomeDiscarded:
		return "DISCARDED"
	case OutcomeChanged:
		return "CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Config holds the loop timings.
type Config struct {
	// Pin is only used for logging.
	Pin int
	// Debounce is the confirmation window after a differing sample.
	Debounce time.Duration
	// Heartbeat is the idle interval. <= 0 disables heartbeats.
	Heartbeat time.Duration
}

// Controller owns the detector and heartbeat scheduler. It is not safe for
// concurrent use; one goroutine calls Step.
type Controller struct {
	reader   gpio.Reader
	notifier Notifier
	conn     Connectivity
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	detector  *logic.Detector
	heartbeat *logic.Heartbeat
	counts    logic.Counts
	lastRaw   bool
}

// New seeds the detector from a first read of the pin.
func New(reader gpio.Reader, notifier Notifier, conn Connectivity, cfg Config, now func() time.Time) (*Controller, error) {
	initial, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read initial pin value: %w", err)
	}
	start := now()
	log.Info().Int("gpio", cfg.Pin).Bool("value", initial).Msg("initial pin value")

	return &Controller{
		reader:    reader,
		notifier:  notifier,
		conn:      conn,
		cfg:       cfg,
		now:       now,
		sleep:     sleepContext,
		detector:  logic.NewDetector(initial, start),
		heartbeat: logic.NewHeartbeat(cfg.Heartbeat, start),
		lastRaw:   initial,
	}, nil
}

// Step runs one tick.
func (c *Controller) Step(ctx context.Context) Outcome {
	t := c.now()
	raw, err := c.reader.Read()
	if err != nil {
		c.counts.ReadErrors++
		log.Warn().Err(err).Int("gpio", c.cfg.Pin).Msg("gpio read error")
		return OutcomeReadError
	}
	c.lastRaw = raw

	if c.heartbeat.Due(t, c.conn.Connected()) {
		if raw != c.detector.Observation().Confirmed {
			c.counts.Preempted++
		}
		c.detector.Preempt(t)
		c.counts.Heartbeats++
		log.Info().Int("gpio", c.cfg.Pin).Bool("value", raw).Msg("idle interval elapsed, sending heartbeat")
		c.notify(ctx, logic.ReasonHeartbeat, raw, t)
		return OutcomeHeartbeat
	}

	if !c.detector.Sample(raw, t) {
		return OutcomeIdle
	}

	log.Debug().Int("gpio", c.cfg.Pin).Bool("candidate", raw).Msg("pin changed, confirming")
	if err := c.sleep(ctx, c.cfg.Debounce); err != nil {
		c.discard()
		return OutcomeDiscarded
	}

	t2 := c.now()
	confirm, err := c.reader.Read()
	if err != nil {
		c.counts.ReadErrors++
		log.Warn().Err(err).Int("gpio", c.cfg.Pin).Msg("gpio read error during debounce")
		c.discard()
		return OutcomeDiscarded
	}
	c.lastRaw = confirm

	value, changed := c.detector.Confirm(confirm, t2)
	if !changed {
		c.counts.Discarded++
		log.Debug().Int("gpio", c.cfg.Pin).Msg("transient ignored")
		return OutcomeDiscarded
	}

	c.counts.Changes++
	log.Info().Int("gpio", c.cfg.Pin).Bool("value", value).Msg("pin state changed")
	c.notify(ctx, logic.ReasonChange, value, t2)
	return OutcomeChanged
}

func (c *Controller) discard() {
	c.detector.Discard()
	c.counts.Discarded++
}

// notify resets the idle window for every attempt, delivered or not.
func (c *Controller) notify(ctx context.Context, reason logic.Reason, value bool, t time.Time) {
	c.heartbeat.Reset(t)
	c.notifier.Notify(ctx, logic.Notification{Reason: reason, Value: value, Time: t})
}

// Value returns the confirmed pin value.
func (c *Controller) Value() bool {
	return c.detector.Observation().Confirmed
}

// Raw returns the most recent successful sample.
func (c *Controller) Raw() bool {
	return c.lastRaw
}

// Phase returns the detector state.
func (c *Controller) Phase() logic.Phase {
	return c.detector.Phase()
}

// Observation returns the detector's confirmed value and last sample time.
func (c *Controller) Observation() logic.Observation {
	return c.detector.Observation()
}

// Counts returns a copy of the activity counters.
func (c *Controller) Counts() logic.Counts {
	return c.counts
}

// LastNotification returns the time of the last attempted notification, or
// the start time if none was sent.
func (c *Controller) LastNotification() time.Time {
	return c.heartbeat.LastNotification()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
