// Package observability — metrics.go
//
// Prometheus metrics for the corkboard server.
//
// Endpoint: GET /metrics on 127.0.0.1:9090 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback by default — no external exposure unless reconfigured.
//
// Metric naming convention: corkboard_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
//
// Cardinality control:
//   - command and category labels are closed, small enumerations.
//   - no per-note or per-session label is ever recorded (unbounded
//     cardinality); counts are aggregated board-wide instead.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corkboard/corkboard/internal/corkboard"
)

// Metrics holds all Prometheus metric descriptors for corkboard.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Protocol ─────────────────────────────────────────────────────────────

	// CommandsTotal counts dispatched commands.
	// Labels: command (POST, PIN, UNPIN, SHAKE, CLEAR, GET, GET_PINS, DISCONNECT)
	CommandsTotal *prometheus.CounterVec

	// ErrorsTotal counts rejected commands.
	// Labels: category (the wire-level error category token)
	ErrorsTotal *prometheus.CounterVec

	// ActiveSessions is the current number of live sessions.
	ActiveSessions prometheus.Gauge

	// ─── Board ────────────────────────────────────────────────────────────────

	// NotesGauge is the current number of live notes on the board.
	NotesGauge prometheus.Gauge

	// PinsGauge is the current number of pins on the board.
	PinsGauge prometheus.Gauge

	// ShakeRemovedTotal counts notes removed across all SHAKE calls.
	ShakeRemovedTotal prometheus.Counter

	// ClearedTotal counts CLEAR operations performed.
	ClearedTotal prometheus.Counter

	// ─── Server ───────────────────────────────────────────────────────────────

	// UptimeSeconds is the number of seconds since the server started.
	UptimeSeconds prometheus.Gauge

	// startTime records when the server started (for uptime calculation).
	startTime time.Time
}

// NewMetrics creates and registers all corkboard Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corkboard",
			Subsystem: "protocol",
			Name:      "commands_processed_total",
			Help:      "Total commands dispatched, by command type.",
		}, []string{"command"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corkboard",
			Subsystem: "protocol",
			Name:      "errors_total",
			Help:      "Total rejected commands, by error category.",
		}, []string{"category"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corkboard",
			Subsystem: "protocol",
			Name:      "active_sessions",
			Help:      "Currently connected sessions.",
		}),

		NotesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corkboard",
			Subsystem: "board",
			Name:      "notes_current",
			Help:      "Notes currently on the board.",
		}),

		PinsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corkboard",
			Subsystem: "board",
			Name:      "pins_current",
			Help:      "Pins currently on the board.",
		}),

		ShakeRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "corkboard",
			Subsystem: "board",
			Name:      "shake_removed_total",
			Help:      "Total notes removed across all SHAKE operations.",
		}),

		ClearedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "corkboard",
			Subsystem: "board",
			Name:      "cleared_total",
			Help:      "Total CLEAR operations performed.",
		}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corkboard",
			Subsystem: "server",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the server started.",
		}),
	}

	reg.MustRegister(
		m.CommandsTotal,
		m.ErrorsTotal,
		m.ActiveSessions,
		m.NotesGauge,
		m.PinsGauge,
		m.ShakeRemovedTotal,
		m.ClearedTotal,
		m.UptimeSeconds,
		// Standard Go runtime metrics.
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// IncCommand records one dispatched command of the given type. Satisfies
// the internal/session.Metrics interface structurally.
func (m *Metrics) IncCommand(name string) {
	m.CommandsTotal.WithLabelValues(name).Inc()
}

// IncError records one rejected command in the given error category.
// Satisfies the internal/session.Metrics interface structurally.
func (m *Metrics) IncError(category string) {
	m.ErrorsTotal.WithLabelValues(category).Inc()
}

// IncShakeRemoved records n notes removed by a SHAKE operation.
// Satisfies the internal/session.Metrics interface structurally.
func (m *Metrics) IncShakeRemoved(n int) {
	m.ShakeRemovedTotal.Add(float64(n))
}

// IncCleared records one CLEAR operation.
// Satisfies the internal/session.Metrics interface structurally.
func (m *Metrics) IncCleared() {
	m.ClearedTotal.Inc()
}

// IncActiveSessions records one session starting. Satisfies the
// internal/server.Metrics interface structurally.
func (m *Metrics) IncActiveSessions() {
	m.ActiveSessions.Inc()
}

// DecActiveSessions records one session ending. Satisfies the
// internal/server.Metrics interface structurally.
func (m *Metrics) DecActiveSessions() {
	m.ActiveSessions.Dec()
}

// WatchBoard periodically snapshots board and sets NotesGauge and
// PinsGauge accordingly. Runs until ctx is cancelled.
func (m *Metrics) WatchBoard(ctx context.Context, board *corkboard.State, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := board.Snapshot()
			m.NotesGauge.Set(float64(stats.Notes))
			m.PinsGauge.Set(float64(stats.Pins))
		case <-ctx.Done():
			return
		}
	}
}

// Serve starts the Prometheus HTTP metrics server on the given address.
// Blocks until ctx is cancelled or the server fails. Serves GET /metrics
// and GET /healthz. Returns an error only on an unexpected listen/serve
// failure.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the UptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
