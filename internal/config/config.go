// Package config loads the notifier configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is the complete runtime configuration.
type Config struct {
	WifiSSID     string `env:"GCN_WIFI_SSID"`
	WifiPassword string `env:"GCN_WIFI_PASSWORD"`

	HostName  string `env:"GCN_HOST_NAME, required"`
	NotifyURL string `env:"GCN_NOTIFY_URL, required"`
	Pin       int    `env:"GCN_WATCH_GPIO_NUMBER, required"`

	// IdleIntervalSeconds is the heartbeat interval. <= 0 disables it.
	IdleIntervalSeconds int `env:"GCN_IDLE_NOTIFICATION_INTERVAL, default=60"`

	Chip         string        `env:"GCN_GPIO_CHIP, default=gpiochip0"`
	PollInterval time.Duration `env:"GCN_POLL_INTERVAL, default=100ms"`
	Debounce     time.Duration `env:"GCN_DEBOUNCE, default=100ms"`

	NetworkInterface      string        `env:"GCN_NETWORK_INTERFACE, default=wlan0"`
	NetworkResyncInterval time.Duration `env:"GCN_NETWORK_RESYNC_INTERVAL, default=30s"`

	HTTPTimeout      time.Duration `env:"GCN_HTTP_TIMEOUT, default=10s"`
	MaxResponseBytes int           `env:"GCN_MAX_RESPONSE_BYTES, default=1024"`

	StatusAddr string `env:"GCN_STATUS_ADDR, default=:8080"`

	MQTTBroker string `env:"GCN_MQTT_BROKER"`
	MQTTTopic  string `env:"GCN_MQTT_TOPIC"`

	LogLevel  string `env:"GCN_LOG_LEVEL, default=info"`
	LogFormat string `env:"GCN_LOG_FORMAT, default=console"`
}

// Load reads the configuration through lookuper and validates it.
func Load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.MQTTTopic == "" {
		cfg.MQTTTopic = DefaultTopic(cfg.HostName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// DefaultTopic is the status feed topic used when none is configured.
func DefaultTopic(host string) string {
	return "gcn/" + host + "/system"
}

// Validate checks values that the environment decoder cannot.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HostName) == "" {
		errs = append(errs, errors.New("GCN_HOST_NAME is empty"))
	}
	if u, err := url.Parse(c.NotifyURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("GCN_NOTIFY_URL %q is not an http(s) URL", c.NotifyURL))
	}
	if c.Pin < 0 {
		errs = append(errs, fmt.Errorf("GCN_WATCH_GPIO_NUMBER %d is negative", c.Pin))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("GCN_POLL_INTERVAL %v must be positive", c.PollInterval))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("GCN_DEBOUNCE %v is negative", c.Debounce))
	}
	if c.NetworkResyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("GCN_NETWORK_RESYNC_INTERVAL %v must be positive", c.NetworkResyncInterval))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GCN_HTTP_TIMEOUT %v must be positive", c.HTTPTimeout))
	}
	if c.MaxResponseBytes <= 0 {
		errs = append(errs, fmt.Errorf("GCN_MAX_RESPONSE_BYTES %d must be positive", c.MaxResponseBytes))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("GCN_LOG_FORMAT %q must be console or json", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IdleInterval returns the heartbeat interval as a duration.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSeconds) * time.Second
}
