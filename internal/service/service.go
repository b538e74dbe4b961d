package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tempwatcher/internal/alerting"
	"tempwatcher/internal/config"
	"tempwatcher/internal/metrics"
	"tempwatcher/internal/monitor"
	"tempwatcher/internal/scheduler"
	"tempwatcher/internal/source"
)

// Service supervises the monitor: it owns the source connection lifecycle,
// drives the poll loop, and dispatches decision events to the notifier.
//
// It runs as a single goroutine. The threshold state is owned exclusively by
// this loop and survives reconnects; it is never persisted, so a restart
// re-enters the unknown phase.
type Service struct {
	dialer   source.Dialer
	notifier alerting.Notifier
	logger   zerolog.Logger

	thresholds   monitor.Config
	sensorName   string
	location     *time.Location
	pollInterval time.Duration
	backoff      time.Duration

	state monitor.State
}

// New constructs the monitoring service. location may be nil to keep
// timestamps in the reading's own zone.
func New(cfg *config.Config, dialer source.Dialer, notifier alerting.Notifier, location *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		dialer:   dialer,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
		thresholds: monitor.Config{
			Threshold:        cfg.Monitor.Threshold,
			Hysteresis:       cfg.Monitor.Hysteresis,
			AlertOnCrossOnly: cfg.Monitor.AlertOnCrossOnly,
		},
		sensorName:   cfg.Monitor.SensorName,
		location:     location,
		pollInterval: cfg.Monitor.PollInterval,
		backoff:      cfg.Monitor.ReconnectBackoff,
	}
}

// State returns the current threshold state.
func (s *Service) State() monitor.State {
	return s.state
}

// Run blocks until the context is cancelled. The outer loop is the connection
// lifecycle: dial, run the poll loop while connected, and on any
// connection-class failure drop the connection, wait a fixed backoff, and
// dial again. Threshold state is not reset on reconnect. Recoverable errors
// never terminate the loop.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().
		Float64("threshold", s.thresholds.Threshold).
		Float64("hysteresis", s.thresholds.Hysteresis).
		Dur("poll_interval", s.pollInterval).
		Msg("starting monitor loop")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.ReconnectsTotal.Inc()
			s.logger.Error().Err(err).Dur("backoff", s.backoff).Msg("source connection failed; will retry")
			if !sleepCtx(ctx, s.backoff) {
				return ctx.Err()
			}
			continue
		}

		poll := scheduler.New(s.pollInterval, s.logger)
		err = poll.Run(ctx, func(ctx context.Context) error {
			return s.pollOnce(ctx, conn)
		})
		s.closeConn(conn)

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}

		metrics.ReconnectsTotal.Inc()
		s.logger.Error().Err(err).Dur("backoff", s.backoff).Msg("poll loop failed; reconnecting")
		if !sleepCtx(ctx, s.backoff) {
			return ctx.Err()
		}
	}
}

// pollOnce executes one fetch/decide/deliver cycle. An empty result is not a
// failure; any other fetch error is connection-class and returned so the
// supervisor reconnects.
func (s *Service) pollOnce(ctx context.Context, conn source.Conn) error {
	reading, err := conn.FetchLatest(ctx)
	if errors.Is(err, source.ErrNoData) {
		metrics.PollsTotal.WithLabelValues("empty").Inc()
		s.logger.Warn().Msg("query returned no rows; will retry next cycle")
		return nil
	}
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.PollsTotal.WithLabelValues("ok").Inc()
	s.ProcessReading(ctx, reading)
	return nil
}

// ProcessReading feeds one reading through the state machine and dispatches
// the resulting event, if any. The state transition is committed before the
// delivery attempt; a failed delivery is logged and not retried, because the
// machine only emits on crossings and re-firing would require rolling the
// phase back.
func (s *Service) ProcessReading(ctx context.Context, reading source.Reading) {
	label := s.formatTimestamp(reading.Timestamp)

	prev := s.state
	next, event := monitor.Evaluate(prev, monitor.Reading{Value: reading.Value, TimestampLabel: label}, s.thresholds)
	s.state = next

	metrics.LastValue.Set(reading.Value)
	metrics.Phase.Set(float64(next.Phase))

	if prev.Phase == monitor.PhaseUnknown {
		s.logger.Info().
			Str("phase", next.Phase.String()).
			Float64("value", reading.Value).
			Str("at", label).
			Msg("initial state established")
		return
	}

	if event == nil {
		s.logger.Debug().Float64("value", reading.Value).Str("phase", next.Phase.String()).Msg("no transition")
		return
	}

	kind := "alert"
	if event.Kind == monitor.EventRecovered {
		kind = "recovered"
	}

	message := alerting.RenderMessage(*event, s.sensorName)
	if err := s.notifier.Notify(ctx, message); err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "failed").Inc()
		s.logger.Error().Err(err).
			Str("kind", kind).
			Float64("value", reading.Value).
			Msg("notification delivery failed; state transition kept")
		return
	}

	metrics.NotificationsTotal.WithLabelValues(kind, "success").Inc()
	s.logger.Info().
		Str("kind", kind).
		Float64("value", reading.Value).
		Float64("threshold", event.Threshold).
		Msg("notification sent")
}

func (s *Service) formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return alerting.NoTimestampLabel
	}
	t := *ts
	if s.location != nil {
		t = t.In(s.location)
	}
	return t.Format(time.RFC3339)
}

func (s *Service) closeConn(conn source.Conn) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Close(closeCtx); err != nil {
		s.logger.Debug().Err(err).Msg("closing source connection failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
