// Command gcn watches one GPIO line and notifies a remote endpoint of
// debounced changes and idle heartbeats, keeping the local clock in step
// with the endpoint's.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"

	"github.com/sweeney/gcn/internal/clock"
	"github.com/sweeney/gcn/internal/config"
	"github.com/sweeney/gcn/internal/connectivity"
	"github.com/sweeney/gcn/internal/controller"
	"github.com/sweeney/gcn/internal/gpio"
	"github.com/sweeney/gcn/internal/logger"
	"github.com/sweeney/gcn/internal/mqtt"
	"github.com/sweeney/gcn/internal/network"
	"github.com/sweeney/gcn/internal/notify"
	"github.com/sweeney/gcn/internal/status"
	"github.com/sweeney/gcn/internal/web"
)

func main() {
	if err := logger.Init("", "console"); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(context.Background(), envconfig.OsLookuper())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config) error {
	// Initialize GPIO; an invalid pin ends the process here.
	reader, err := gpio.NewRealReader(cfg.Chip, cfg.Pin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		Host:        cfg.HostName,
		NotifyURL:   cfg.NotifyURL,
		Pin:         cfg.Pin,
		Chip:        cfg.Chip,
		PollMs:      cfg.PollInterval.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.IdleInterval().Milliseconds(),
		Interface:   cfg.NetworkInterface,
		Broker:      cfg.MQTTBroker,
		HTTPAddr:    cfg.StatusAddr,
	})

	// Network events arrive on the watcher goroutine.
	watcher := network.NewWatcher(network.Config{
		Interface:      cfg.NetworkInterface,
		ResyncInterval: cfg.NetworkResyncInterval,
		SSID:           cfg.WifiSSID,
		Password:       cfg.WifiPassword,
	})
	conn := connectivity.NewTracker(watcher)
	if err := watcher.Start(func(ev connectivity.Event) {
		conn.Handle(ev)
		tracker.SetNetwork(networkStatus(ev, cfg.NetworkInterface))
	}); err != nil {
		return fmt.Errorf("start network watcher: %w", err)
	}
	defer watcher.Close()

	dispatcher := notify.New(notify.Config{
		URL:              cfg.NotifyURL,
		Host:             cfg.HostName,
		Pin:              cfg.Pin,
		MaxResponseBytes: cfg.MaxResponseBytes,
	}, notify.NewHTTPTransport(cfg.HTTPTimeout), clock.System{})
	dispatcher.OnResult(func(r notify.Result) {
		tracker.RecordDispatch(dispatchStatus(r))
	})

	ctrl, err := controller.New(reader, dispatcher, conn, controller.Config{
		Pin:       cfg.Pin,
		Debounce:  cfg.Debounce,
		Heartbeat: cfg.IdleInterval(),
	}, time.Now)
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}
	updateTracker(tracker, ctrl, conn, nil)

	// MQTT status feed is optional.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTTBroker != "" {
		p := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: "gcn-" + cfg.HostName,
			Status: func(event string) []byte {
				return status.FormatStatusEvent(tracker.Snapshot(), event, "")
			},
		})
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	// Start HTTP status server
	if cfg.StatusAddr != "" {
		srv := web.New(cfg.StatusAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.StatusAddr).Msg("http status server listening")
	}

	log.Info().
		Str("host", cfg.HostName).
		Str("url", cfg.NotifyURL).
		Int("gpio", cfg.Pin).
		Dur("poll", cfg.PollInterval).
		Dur("debounce", cfg.Debounce).
		Dur("heartbeat", cfg.IdleInterval()).
		Msg("started")

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(context.Background(), ctrl, publisher, mqttStatus, tracker, conn, ticker.C, sigCh)
}

func runLoop(ctx context.Context, ctrl *controller.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, conn controller.Connectivity, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			log.Info().Str("signal", name).Msg("shutting down")
			if publisher == nil {
				return nil
			}
			event := mqtt.SystemEvent{
				Timestamp: time.Now(),
				Event:     mqtt.EventShutdown,
				Reason:    name,
				Retained:  true,
			}
			if tracker != nil {
				updateTracker(tracker, ctrl, conn, mqttStatus)
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), mqtt.EventShutdown, name)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn().Err(err).Msg("failed to publish shutdown event")
			} else {
				log.Info().Msg("published shutdown event")
			}
			return nil

		case <-tick:
			outcome := ctrl.Step(ctx)

			// Update status tracker for HTTP/MQTT consumers
			if tracker != nil {
				updateTracker(tracker, ctrl, conn, mqttStatus)
			}

			if outcome != controller.OutcomeHeartbeat || publisher == nil {
				continue
			}
			hbEvent := mqtt.SystemEvent{
				Timestamp: time.Now(),
				Event:     mqtt.EventHeartbeat,
			}
			if tracker != nil {
				hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), mqtt.EventHeartbeat, "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Debug().Err(err).Msg("heartbeat status publish failed")
			}
		}
	}
}

func updateTracker(tracker *status.Tracker, ctrl *controller.Controller, conn controller.Connectivity, mqttStatus mqtt.ConnectionStatus) {
	tracker.Update(ctrl.Value(), ctrl.Raw(), ctrl.Phase(), ctrl.Counts(), ctrl.LastNotification())
	tracker.SetConnected(conn.Connected())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// networkStatus maps a network event to display info. Only an acquired
// address has anything to show.
func networkStatus(ev connectivity.Event, iface string) *status.NetworkInfo {
	if ev.Kind != connectivity.EventGotAddress {
		return nil
	}
	return &status.NetworkInfo{
		Interface: iface,
		Address:   ev.Addr.String(),
	}
}

func dispatchStatus(r notify.Result) status.Dispatch {
	d := status.Dispatch{
		Time:        r.Time,
		Reason:      string(r.Notification.Reason),
		Value:       r.Notification.Value,
		Delivered:   r.Delivered,
		StatusCode:  r.StatusCode,
		RemoteTime:  r.RemoteTime,
		HasRemote:   r.HasRemote,
		ClockSynced: r.ClockSynced,
	}
	if r.Err != nil {
		d.Error = r.Err.Error()
	}
	return d
}
