package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tempwatcher/internal/alerting"
	"tempwatcher/internal/config"
	"tempwatcher/internal/metrics"
	"tempwatcher/internal/service"
	"tempwatcher/internal/source"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() *alerting.WebhookNotifier {
	cfg := a.Config.Notifier
	return alerting.NewWebhookNotifier(alerting.WebhookOptions{
		URL:        cfg.WebhookURL,
		PayloadKey: cfg.PayloadKey,
		VerifyTLS:  cfg.VerifyTLS,
		Timeout:    cfg.Timeout,
	}, a.Logger)
}

func (a *App) displayLocation() *time.Location {
	name := a.Config.Monitor.Timezone
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		a.Logger.Warn().Err(err).Str("timezone", name).Msg("invalid timezone; timestamps keep their own zone")
		return nil
	}
	return loc
}

// Run executes the long-running monitor loop. Missing connection or endpoint
// configuration is fatal here, before the loop ever starts.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn is required to run the monitor")
	}
	if a.Config.Notifier.WebhookURL == "" {
		return errors.New("notifier.webhook_url is required to run the monitor")
	}

	if addr := a.Config.Metrics.ListenAddr; addr != "" {
		go metrics.Serve(ctx, addr, a.Logger)
	}

	dialer := &source.PostgresDialer{
		DSN:    a.Config.Database.DSN,
		Query:  a.Config.Database.Query,
		Logger: a.Logger,
	}

	svc := service.New(a.Config, dialer, a.newNotifier(), a.displayLocation(), a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// TestNotification sends a one-off message to the webhook, bypassing the
// database and the state machine. An empty message gets a generated one.
func (a *App) TestNotification(ctx context.Context, message string) error {
	if a.Config.Notifier.WebhookURL == "" {
		return errors.New("notifier.webhook_url is required")
	}

	if message == "" {
		name := a.Config.Monitor.SensorName
		if name == "" {
			name = "Temperature Monitor"
		}
		message = fmt.Sprintf("🔧 Test notification from %s at %s.", name, time.Now().Format(time.RFC3339))
	}

	if err := a.newNotifier().Notify(ctx, message); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}

	a.Logger.Info().Msg("test notification sent")
	return nil
}
