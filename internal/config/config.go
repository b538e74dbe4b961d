package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"tempwatcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity and the latest-reading
// query. The query must return the numeric value and an optional timestamp as
// its first two columns, or expose them via the usual column names.
type DatabaseConfig struct {
	DSN   string `mapstructure:"dsn"`
	Query string `mapstructure:"query"`
}

// MonitorConfig governs the threshold decision and the poll cadence.
type MonitorConfig struct {
	Threshold        float64       `mapstructure:"threshold"`
	Hysteresis       float64       `mapstructure:"hysteresis"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	AlertOnCrossOnly bool          `mapstructure:"alert_on_cross_only"`
	SensorName       string        `mapstructure:"sensor_name"`
	Timezone         string        `mapstructure:"timezone"`
}

// NotifierConfig defines the outgoing webhook.
type NotifierConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	PayloadKey string        `mapstructure:"payload_key"`
	VerifyTLS  bool          `mapstructure:"verify_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MetricsConfig enables the optional Prometheus listener.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TEMPWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tempwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Required values default to empty so viper registers the keys; without
	// this AutomaticEnv never surfaces them through Unmarshal.
	v.SetDefault("database.dsn", "")
	v.SetDefault("notifier.webhook_url", "")

	v.SetDefault("database.query",
		"SELECT temperature, reading_ts FROM sensor_readings ORDER BY reading_ts DESC LIMIT 1")

	v.SetDefault("monitor.threshold", 30.0)
	v.SetDefault("monitor.hysteresis", 0.3)
	v.SetDefault("monitor.poll_interval", "10s")
	v.SetDefault("monitor.reconnect_backoff", "5s")
	v.SetDefault("monitor.alert_on_cross_only", false)
	v.SetDefault("monitor.sensor_name", "")
	v.SetDefault("monitor.timezone", "")

	v.SetDefault("notifier.payload_key", "text")
	v.SetDefault("notifier.verify_tls", true)
	v.SetDefault("notifier.timeout", "15s")

	v.SetDefault("metrics.listen_addr", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values. The
// presence of connection/endpoint values is checked where they are used, so
// the test command works without a database.
func (c *Config) Validate() error {
	if c.Monitor.Hysteresis < 0 {
		return fmt.Errorf("monitor.hysteresis cannot be negative")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be greater than zero")
	}
	if c.Monitor.ReconnectBackoff <= 0 {
		return fmt.Errorf("monitor.reconnect_backoff must be greater than zero")
	}
	if c.Notifier.Timeout <= 0 {
		return fmt.Errorf("notifier.timeout must be greater than zero")
	}
	return nil
}
