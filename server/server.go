// Package server exposes the monitor over HTTP and wires it into the
// observability plane.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Elactrac/dotnation-sub005/monitor"
)

// APIServer serves the DOTnation UI's event queries plus health and
// Prometheus endpoints.
type APIServer struct {
	monitor   *monitor.Monitor
	logger    *zap.Logger
	startTime time.Time
	srv       *http.Server
}

// NewAPIServer creates the server on the given port.
func NewAPIServer(m *monitor.Monitor, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		monitor:   m,
		logger:    logger,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/history/clear", s.handleClearHistory)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start begins serving in the background.
func (s *APIServer) Start() {
	go func() {
		s.logger.Info("API server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
}

// Stop shuts the server down, waiting up to five seconds for in-flight
// requests.
func (s *APIServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Handler returns the server's routing handler, for tests.
func (s *APIServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !s.monitor.Running() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"uptime": time.Since(s.startTime).String(),
		"stats":  s.monitor.Metrics(),
	})
}

func (s *APIServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.monitor.Running() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *APIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	events := s.monitor.GetHistory(f)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.GetStatistics())
}

func (s *APIServer) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := s.monitor.ExportEvents(f)
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Errorf("export failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dotnation-events.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *APIServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("use POST"))
		return
	}
	s.monitor.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// filterFromQuery builds a history filter from the request's kind,
// since, until and limit parameters. Timestamps are RFC 3339.
func filterFromQuery(r *http.Request) (monitor.Filter, error) {
	q := r.URL.Query()
	f := monitor.Filter{Kind: q.Get("kind")}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return monitor.Filter{}, fmt.Errorf("invalid since %q: %w", v, err)
		}
		f.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return monitor.Filter{}, fmt.Errorf("invalid until %q: %w", v, err)
		}
		f.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return monitor.Filter{}, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
