// Package server exposes the rotation daemon's HTTP surface and the two
// background schedules: the rotation timer and the notification timer.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/rotord/internal/logging"
	"github.com/systmms/rotord/internal/metrics"
	"github.com/systmms/rotord/internal/notify"
	"github.com/systmms/rotord/internal/rotation"
)

// Version is reported by the info and health endpoints.
const Version = "1.0.0"

// Options configures a Server.
type Options struct {
	Orchestrator *rotation.Orchestrator

	// Publisher may be nil when no Service Bus connection string is
	// configured; notification endpoints then report not configured.
	Publisher *notify.Publisher

	Environment      string
	RotationInterval time.Duration

	Logger  *logging.Logger
	Metrics *metrics.Recorder
	Clock   func() time.Time
}

// Server routes HTTP requests and drives the background timers. A single
// in-flight guard covers both scheduled and manually triggered rotations so
// two runs never overlap.
type Server struct {
	orch             *rotation.Orchestrator
	publisher        *notify.Publisher
	env              string
	rotationInterval time.Duration
	logger           *logging.Logger
	metrics          *metrics.Recorder
	clock            func() time.Time
	startTime        time.Time

	rotating atomic.Bool

	mux *http.ServeMux
}

// New builds a Server and registers its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(false, true)
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := opts.RotationInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	s := &Server{
		orch:             opts.Orchestrator,
		publisher:        opts.Publisher,
		env:              opts.Environment,
		rotationInterval: interval,
		logger:           logger,
		metrics:          rec,
		clock:            clock,
		startTime:        clock(),
		mux:              http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/health/servicebus", s.handleServiceBusHealth)
	s.mux.HandleFunc("POST /api/rotate", s.handleRotate)
	s.mux.HandleFunc("POST /api/test/send-message", s.handleTestSend)
	s.mux.HandleFunc("GET /api/info", s.handleInfo)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves HTTP until the context is canceled, then drains
// in-flight requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) timestamp() string {
	return s.clock().UTC().Format(time.RFC3339)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}
