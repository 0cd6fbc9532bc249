package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/omnisent/sensorfleet/internal/fleet"
	"github.com/omnisent/sensorfleet/internal/metric"
	"github.com/omnisent/sensorfleet/internal/server"
	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes fleet status over HTTP: a JSON API, a Prometheus
// metrics endpoint and a WebSocket stream of live cycle events.
type Server struct {
	config  *config.Config
	fleet   *fleet.Fleet
	metrics *metric.Metrics
	version *VersionChecker

	mu          sync.Mutex
	subscribers map[chan types.WSCycleEvent]struct{}
}

// NewServer returns a Server wired to the given fleet.
func NewServer(cfg *config.Config, flt *fleet.Fleet, metrics *metric.Metrics) *Server {
	s := &Server{
		config:      cfg,
		fleet:       flt,
		metrics:     metrics,
		version:     NewVersionChecker(),
		subscribers: make(map[chan types.WSCycleEvent]struct{}),
	}
	flt.SetEventFunc(s.broadcastEvent)
	return s
}

// broadcastEvent pushes a cycle event to every connected subscriber.
// Slow subscribers drop events rather than blocking device goroutines.
func (s *Server) broadcastEvent(ev types.WSCycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) subscribe() chan types.WSCycleEvent {
	ch := make(chan types.WSCycleEvent, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan types.WSCycleEvent) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
}

// handleWebSocket streams status snapshots and live cycle events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine touches the connection for writes.
	send := make(chan any, 16)
	done := make(chan struct{})

	go s.runWebSocketWriter(conn, send)
	go s.runWebSocketReader(conn, done)

	s.runWebSocketEventLoop(send, done)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader drains the connection until the client goes away.
// The status stream is one-way; inbound messages are discarded.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, done chan<- struct{}) {
	defer close(done)
	for {
		var discard json.RawMessage
		if err := conn.ReadJSON(&discard); err != nil {
			return
		}
	}
}

// runWebSocketEventLoop pushes periodic status and live cycle events.
func (s *Server) runWebSocketEventLoop(send chan any, done <-chan struct{}) {
	events := s.subscribe()
	defer s.unsubscribe(events)

	statusTicker := time.NewTicker(types.StatusPushInterval)
	defer statusTicker.Stop()

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !trySend(s.buildWSStatus()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case ev := <-events:
			if !trySend(ev) {
				close(send)
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		}
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	return types.WSStatusResponse{
		Type:    "status",
		Fleet:   s.fleet.Status(),
		Devices: s.fleet.DeviceStatuses(),
		Version: s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/status", s.apiKeyAuth(s.handleAPIStatus))
	mux.HandleFunc("/api/devices", s.apiKeyAuth(s.handleAPIDevices))
	mux.HandleFunc("/api/events", s.apiKeyAuth(s.handleAPIEvents))
	mux.HandleFunc("/api/notify/test", s.apiKeyAuth(s.handleAPITestWebhook))
	mux.HandleFunc("/api/archive/test", s.apiKeyAuth(s.handleAPITestS3))
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start launches the HTTP server and returns it for later shutdown.
func (s *Server) Start() *http.Server {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WebPort()),
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("status server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server error", "error", err)
		}
	}()

	return httpServer
}
