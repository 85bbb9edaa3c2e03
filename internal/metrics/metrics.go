// Package metrics exposes Prometheus collectors for server-level
// observability: connection lifecycle, command outcomes, and keyspace/reaper
// sampling. It is ambient — disabling it changes nothing observable over
// RESP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/resrv/internal/logger"
)

// Recorder records the metrics a server emits over its lifetime. A nil
// *Recorder is safe to call methods on (every method is a no-op), so callers
// never need to branch on whether metrics are enabled.
type Recorder struct {
	registry *prometheus.Registry

	connectionsAccepted prometheus.Counter
	connectionsActive   prometheus.Gauge
	connectionsRejected prometheus.Counter
	commandsTotal       *prometheus.CounterVec
	keyspaceSize        prometheus.Gauge
	reaperSweeps        prometheus.Counter
	reaperExpired       prometheus.Counter
}

// NewRecorder builds a Recorder registered against a fresh registry. Callers
// that don't want metrics collected should use a nil *Recorder instead of
// calling this.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	return &Recorder{
		registry: reg,
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "resrv_connections_accepted_total",
			Help: "Total number of accepted client connections.",
		}),
		connectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "resrv_connections_active",
			Help: "Number of currently active client connections.",
		}),
		connectionsRejected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "resrv_connections_rejected_total",
			Help: "Total number of connections rejected by admission control.",
		}),
		commandsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "resrv_commands_total",
			Help: "Total number of commands executed, by command and outcome.",
		}, []string{"command", "outcome"}),
		keyspaceSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "resrv_keyspace_size",
			Help: "Number of keys in the keyspace, sampled periodically.",
		}),
		reaperSweeps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "resrv_reaper_sweeps_total",
			Help: "Total number of reaper tick sweeps performed.",
		}),
		reaperExpired: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "resrv_reaper_expired_total",
			Help: "Total number of keys removed by the reaper.",
		}),
	}
}

func (r *Recorder) RecordConnectionAccepted() {
	if r == nil {
		return
	}
	r.connectionsAccepted.Inc()
}

func (r *Recorder) RecordConnectionRejected() {
	if r == nil {
		return
	}
	r.connectionsRejected.Inc()
}

func (r *Recorder) SetActiveConnections(n int) {
	if r == nil {
		return
	}
	r.connectionsActive.Set(float64(n))
}

// RecordCommand records a single command dispatch outcome. outcome should be
// "ok" or "error".
func (r *Recorder) RecordCommand(command, outcome string) {
	if r == nil {
		return
	}
	r.commandsTotal.WithLabelValues(command, outcome).Inc()
}

// Registry exposes the underlying Prometheus registry, for tests that need
// to gather and assert on collected samples directly.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// SetKeyspaceSize reports the current key count. The server samples it
// periodically on its own interval, not on every reaper tick.
func (r *Recorder) SetKeyspaceSize(n int) {
	if r == nil {
		return
	}
	r.keyspaceSize.Set(float64(n))
}

// RecordReaperSweep records one reaper tick and how many keys it expired.
func (r *Recorder) RecordReaperSweep(expired int) {
	if r == nil {
		return
	}
	r.reaperSweeps.Inc()
	r.reaperExpired.Add(float64(expired))
}

// Server exposes a Recorder's registry over HTTP on /metrics.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics HTTP server bound to addr. A nil recorder is
// rejected: callers should only construct a Server when metrics are enabled.
func NewServer(addr string, recorder *Recorder) (*Server, error) {
	if recorder == nil {
		return nil, errors.New("metrics: recorder is nil")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Serve runs the metrics HTTP listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics: listen on %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}()

	logger.Info("metrics server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
