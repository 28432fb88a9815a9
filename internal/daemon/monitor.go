package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"docket/internal/api"
	"docket/internal/config"
	"docket/internal/logging"
)

// monitorServer serves the read-only HTTP surface: a health probe, a
// statistics snapshot, and the WebSocket statistics feed.
type monitorServer struct {
	bind     string
	token    string
	push     time.Duration
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	// ctx is the daemon run context; set by run before Serve accepts, read
	// by WebSocket handlers.
	ctx      context.Context
	listener net.Listener
	server   *http.Server
}

func newMonitorServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *monitorServer {
	bind := strings.TrimSpace(cfg.Monitor.Bind)
	if bind == "" {
		return nil
	}

	push := time.Duration(cfg.Monitor.PushInterval) * time.Second
	if push <= 0 {
		push = 5 * time.Second
	}
	srv := &monitorServer{
		bind:     bind,
		token:    cfg.Monitor.Token,
		push:     push,
		logger:   logger,
		daemon:   d,
		queueSvc: api.NewQueueService(d.store, cfg.Scheduler.UrgentPriority),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", authMiddleware(srv.token, srv.handleHealth))
	mux.HandleFunc("/api/stats", authMiddleware(srv.token, srv.handleStats))
	mux.HandleFunc("/ws", authMiddleware(srv.token, srv.handleWS))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// listen binds the monitor port. Called synchronously from Start so a bind
// failure aborts startup and addr() is valid once Start returns.
func (m *monitorServer) listen() error {
	listener, err := net.Listen("tcp", m.bind)
	if err != nil {
		return fmt.Errorf("monitor listen on %s: %w", m.bind, err)
	}
	m.listener = listener
	return nil
}

// run serves until ctx is cancelled, then shuts down gracefully. WebSocket
// connections are hijacked and therefore not waited on by Shutdown; their
// push loops watch ctx themselves.
func (m *monitorServer) run(ctx context.Context) error {
	m.ctx = ctx

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.server.Shutdown(shutdownCtx)
	}()

	m.log().Info("monitor listening", logging.String("address", m.addr()))
	err := m.server.Serve(m.listener)
	<-shutdownDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor serve: %w", err)
	}
	return nil
}

func (m *monitorServer) addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

func (m *monitorServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health := api.Health{Status: "ok", Running: m.daemon.Running(), Store: "ok"}
	if err := m.daemon.PingStore(r.Context()); err != nil {
		health.Status = "degraded"
		health.Store = err.Error()
		m.writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	m.writeJSON(w, http.StatusOK, health)
}

func (m *monitorServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := m.queueSvc.Stats(r.Context())
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.writeJSON(w, http.StatusOK, stats)
}

func (m *monitorServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		m.log().Error("failed to encode response", logging.Error(err))
	}
}

func (m *monitorServer) writeError(w http.ResponseWriter, status int, message string) {
	m.writeJSON(w, status, map[string]string{"error": message})
}

func (m *monitorServer) log() *slog.Logger {
	return logging.NewComponentLogger(m.logger, "monitor")
}
