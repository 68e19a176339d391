// Package network watches the host network interface and reports link
// events to the connectivity tracker. It stands in for the wireless stack:
// address and link changes arrive as kernel netlink notifications, and join
// attempts go to NetworkManager over D-Bus.
package network

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/gcn/internal/connectivity"
)

// ErrClosed is returned when the watcher has been closed.
var ErrClosed = errors.New("network watcher closed")

// Config configures a Watcher.
type Config struct {
	// Interface is the watched interface, e.g. "wlan0".
	Interface string
	// ResyncInterval is how often the interface is re-read without a
	// notification, and how long to wait before resubscribing after the
	// notification stream fails.
	ResyncInterval time.Duration
	// SSID and Password are the network credentials. An empty SSID
	// disables join attempts.
	SSID     string
	Password string
	// JoinTimeout bounds a single join attempt.
	JoinTimeout time.Duration
}

// Watcher turns link and address notifications for one interface into
// connectivity events, delivered from its own goroutine.
type Watcher struct {
	cfg Config

	probe     func(name string) (netip.Addr, bool, error)
	subscribe func(ctx context.Context, name string, changed func()) error
	join      func(ctx context.Context, cfg Config) error

	ctx    context.Context
	cancel context.CancelFunc
	kick   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	subs    sync.WaitGroup
	joins   sync.WaitGroup
	joining atomic.Bool
}

// NewWatcher creates a watcher. Zero durations get defaults.
func NewWatcher(cfg Config) *Watcher {
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = 30 * time.Second
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		cfg:       cfg,
		probe:     linkAddr,
		subscribe: subscribeLink,
		join:      nmJoin,
		ctx:       ctx,
		cancel:    cancel,
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start emits EventStart and begins watching. handler is called from the
// watcher goroutine only.
func (w *Watcher) Start(handler func(connectivity.Event)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.started {
		return errors.New("network watcher already started")
	}
	w.started = true

	log.Info().
		Str("interface", w.cfg.Interface).
		Str("ssid", w.cfg.SSID).
		Dur("resync_interval", w.cfg.ResyncInterval).
		Msg("network watcher started")

	w.subs.Add(1)
	go w.follow()
	go w.run(handler)
	return nil
}

// follow keeps a link subscription open, resubscribing after failures.
func (w *Watcher) follow() {
	defer w.subs.Done()
	for {
		err := w.subscribe(w.ctx, w.cfg.Interface, w.nudge)
		if w.ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("interface", w.cfg.Interface).Msg("link notifications stopped, resubscribing")

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(w.cfg.ResyncInterval):
		}
		w.nudge()
	}
}

func (w *Watcher) nudge() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *Watcher) run(handler func(connectivity.Event)) {
	defer close(w.done)

	handler(connectivity.Event{Kind: connectivity.EventStart})

	ticker := time.NewTicker(w.cfg.ResyncInterval)
	defer ticker.Stop()

	var current netip.Addr
	for {
		addr, ok, err := w.probe(w.cfg.Interface)
		if err != nil {
			log.Debug().Err(err).Msg("interface read failed")
		}

		switch {
		case ok && addr != current:
			current = addr
			handler(connectivity.Event{Kind: connectivity.EventGotAddress, Addr: addr})
		case !ok && current.IsValid():
			current = netip.Addr{}
			handler(connectivity.Event{Kind: connectivity.EventDisconnected})
		}

		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		case <-w.kick:
		}
	}
}

// Connect requests a connection attempt without blocking: the interface is
// re-read immediately and, if credentials are configured and the interface
// has no address, one join attempt is started. At most one join runs at a time.
func (w *Watcher) Connect() error {
	w.nudge()

	if w.cfg.SSID == "" {
		return nil
	}
	if !w.joining.CompareAndSwap(false, true) {
		log.Debug().Msg("join already in progress")
		return nil
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.joining.Store(false)
		return ErrClosed
	}
	w.joins.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.joins.Done()
		defer w.joining.Store(false)

		if _, ok, _ := w.probe(w.cfg.Interface); ok {
			return
		}

		ctx, cancel := context.WithTimeout(w.ctx, w.cfg.JoinTimeout)
		defer cancel()

		log.Info().Str("ssid", w.cfg.SSID).Str("interface", w.cfg.Interface).Msg("joining network")
		if err := w.join(ctx, w.cfg); err != nil {
			log.Warn().Err(err).Str("ssid", w.cfg.SSID).Msg("join failed")
		}
	}()
	return nil
}

// Close stops the watcher and waits for its goroutines and any join attempt.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	started := w.started
	w.mu.Unlock()

	w.cancel()
	if started {
		<-w.done
	}
	w.subs.Wait()
	w.joins.Wait()
	return nil
}

// pickAddr returns the preferred usable address. IPv4 wins over IPv6.
func pickAddr(ips []net.IP) (netip.Addr, bool) {
	var fallback netip.Addr
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if !usable(addr) {
			continue
		}
		if addr.Is4() {
			return addr, true
		}
		if !fallback.IsValid() {
			fallback = addr
		}
	}
	return fallback, fallback.IsValid()
}

func usable(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified()
}
