// Package web serves the gcn status page, its JSON form and a health probe.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/gcn/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           accessLog(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// accessLog logs every request at debug level through the global logger.
func accessLog(next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("http request")
	})(next)
	return hlog.NewHandler(log.Logger.With().Str("component", "web").Logger())(h)
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, status.FormatJSON(s.tracker.Snapshot()))
}

// Health is the /healthz body.
type Health struct {
	// Status is "ok" while the network is up and "offline" otherwise.
	Status        string          `json:"status"`
	Connected     bool            `json:"connected"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	LastDispatch  *HealthDispatch `json:"last_dispatch,omitempty"`
}

// HealthDispatch is the outcome of the most recent notification.
type HealthDispatch struct {
	Time       string `json:"time"`
	Reason     string `json:"reason"`
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// health reports the snapshot's liveness. Only connectivity decides the HTTP
// status; a failed dispatch is reported but is not fatal.
func health(snap status.Snapshot) (Health, int) {
	h := Health{
		Status:        "ok",
		Connected:     snap.Connected,
		UptimeSeconds: int64(snap.Uptime().Seconds()),
	}
	if d := snap.LastDispatch; d != nil {
		h.LastDispatch = &HealthDispatch{
			Time:       d.Time.UTC().Format(time.RFC3339),
			Reason:     d.Reason,
			Delivered:  d.Delivered,
			StatusCode: d.StatusCode,
			Error:      d.Error,
		}
	}
	if !snap.Connected {
		h.Status = "offline"
		return h, http.StatusServiceUnavailable
	}
	return h, http.StatusOK
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, code := health(s.tracker.Snapshot())
	body, err := sonic.Marshal(h)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode health")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, code, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("write response")
	}
}
