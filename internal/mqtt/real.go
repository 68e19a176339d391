package mqtt

import (
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	Topic    string
	ClientID string

	// Status, if set, supplies the snapshot published on every (re)connect.
	Status func(event string) []byte
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client   paho.Client
	topic    string
	status   func(event string) []byte
	connects atomic.Int64
}

// NewRealPublisher creates a publisher for the given broker. It does not wait
// for the connection: the client keeps retrying in the background, and
// events published while it is down are dropped.
func NewRealPublisher(opts Options) *RealPublisher {
	p := &RealPublisher{
		topic:  opts.Topic,
		status: opts.Status,
	}

	will, _ := FormatSystemPayload(WillEvent(time.Now()))

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.Topic, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Str("broker", opts.Broker).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(clientOpts)
	p.client.Connect()
	log.Info().Str("broker", opts.Broker).Str("topic", opts.Topic).Msg("mqtt status feed enabled")
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	event := p.onlineEvent(time.Now())
	log.Info().Str("event", event.Event).Msg("connected to mqtt broker")

	payload, err := FormatSystemPayload(event)
	if err != nil {
		log.Warn().Err(err).Msg("format online event")
		return
	}
	token := c.Publish(p.topic, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Warn().Msg("publish online event timeout")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Msg("publish online event")
	}
}

// onlineEvent is STARTUP for the first connection and RECONNECTED after.
// It replaces the will left retained by an unclean disconnect.
func (p *RealPublisher) onlineEvent(now time.Time) SystemEvent {
	name := EventReconnected
	if p.connects.Add(1) == 1 {
		name = EventStartup
	}
	event := SystemEvent{
		Timestamp: now,
		Event:     name,
		Retained:  true,
	}
	if p.status != nil {
		event.RawPayload = p.status(name)
	}
	return event
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: %w", event.Event, ErrNotConnected)
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - we want to ensure delivery of shutdown events
	token := p.client.Publish(p.topic, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}

	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
