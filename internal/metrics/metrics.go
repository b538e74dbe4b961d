package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Poll loop metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempwatcher_polls_total",
			Help: "Total number of poll cycles",
		},
		[]string{"status"}, // status: ok, empty, error
	)

	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempwatcher_reconnects_total",
			Help: "Total number of source reconnect attempts",
		},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempwatcher_notifications_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"kind", "status"}, // kind: alert, recovered; status: success, failed
	)

	// State gauges
	LastValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempwatcher_last_value",
			Help: "Most recent reading processed by the state machine",
		},
	)

	Phase = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempwatcher_phase",
			Help: "Current threshold phase (0 unknown, 1 below, 2 above)",
		},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled. Returns when the
// listener is down; a serve failure is logged, never fatal.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) {
	log := logger.With().Str("component", "metrics").Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics listener failed")
	}
}
