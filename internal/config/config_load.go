package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default values.
const (
	DefaultConfigPath        = "~/.tgrelay/config.json"
	DefaultQueuePath         = "~/.tgrelay/queue.db"
	DefaultPollTimeoutSec    = 10
	DefaultPollLimit         = 100
	DefaultPollIntervalMs    = 1000
	DefaultDrainIntervalMs   = 500
	DefaultFetchCount        = 10
	DefaultSendRatePerSec    = 1.0
	DefaultSendBurst         = 3
	DefaultTelemetryService  = "tgrelay"
	DefaultTelemetryProtocol = "grpc"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeoutSec: DefaultPollTimeoutSec,
			PollLimit:      DefaultPollLimit,
			PollIntervalMs: DefaultPollIntervalMs,
			SendRatePerSec: DefaultSendRatePerSec,
			SendBurst:      DefaultSendBurst,
		},
		Queue: QueueConfig{
			Driver: "sqlite",
			Path:   DefaultQueuePath,
		},
		Relay: RelayConfig{
			DrainIntervalMs:   DefaultDrainIntervalMs,
			FetchDefaultCount: DefaultFetchCount,
		},
		Telemetry: TelemetryConfig{
			Protocol:    DefaultTelemetryProtocol,
			ServiceName: DefaultTelemetryService,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandHome(path))
	if err != nil && !os.IsNotExist(err) {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	cfg.Queue.Path = ExpandHome(cfg.Queue.Path)
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	envStr("TGRELAY_TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("TGRELAY_TELEGRAM_PROXY", &c.Telegram.Proxy)
	envStr("TGRELAY_TELEGRAM_API_SERVER", &c.Telegram.APIServer)
	if v := os.Getenv("TGRELAY_TELEGRAM_USER_ID"); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			c.Telegram.UserID = FlexibleInt64(id)
		}
	}
	envInt("TGRELAY_POLL_TIMEOUT_SEC", &c.Telegram.PollTimeoutSec)
	envInt("TGRELAY_POLL_INTERVAL_MS", &c.Telegram.PollIntervalMs)
	envInt("TGRELAY_DRAIN_INTERVAL_MS", &c.Relay.DrainIntervalMs)

	// Queue
	envStr("TGRELAY_QUEUE_DRIVER", &c.Queue.Driver)
	envStr("TGRELAY_QUEUE_PATH", &c.Queue.Path)
	envStr("TGRELAY_POSTGRES_DSN", &c.Queue.PostgresDSN)

	// Telemetry
	envStr("TGRELAY_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("TGRELAY_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("TGRELAY_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("TGRELAY_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TGRELAY_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// applyDefaults fills zero values left by a sparse config file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Telegram.PollTimeoutSec <= 0 {
		c.Telegram.PollTimeoutSec = d.Telegram.PollTimeoutSec
	}
	if c.Telegram.PollLimit <= 0 || c.Telegram.PollLimit > 100 {
		c.Telegram.PollLimit = d.Telegram.PollLimit
	}
	if c.Telegram.PollIntervalMs <= 0 {
		c.Telegram.PollIntervalMs = d.Telegram.PollIntervalMs
	}
	if c.Telegram.SendRatePerSec <= 0 {
		c.Telegram.SendRatePerSec = d.Telegram.SendRatePerSec
	}
	if c.Telegram.SendBurst <= 0 {
		c.Telegram.SendBurst = d.Telegram.SendBurst
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = d.Queue.Driver
	}
	if c.Queue.Path == "" {
		c.Queue.Path = d.Queue.Path
	}
	if c.Relay.DrainIntervalMs <= 0 {
		c.Relay.DrainIntervalMs = d.Relay.DrainIntervalMs
	}
	if c.Relay.FetchDefaultCount <= 0 {
		c.Relay.FetchDefaultCount = d.Relay.FetchDefaultCount
	}
	if c.Telemetry.Protocol == "" {
		c.Telemetry.Protocol = d.Telemetry.Protocol
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
}

// Save writes the config to a JSON file readable only by the owner.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// MaskedCopy returns a copy safe for printing: the bot token is masked.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := &Config{
		Telegram:  c.Telegram,
		Queue:     c.Queue,
		Relay:     c.Relay,
		Telemetry: c.Telemetry,
	}
	cp.Telegram.Token = MaskSecret(cp.Telegram.Token)
	cp.Queue.PostgresDSN = MaskSecret(cp.Queue.PostgresDSN)
	return cp
}

// MaskSecret keeps the first four characters of s and hides the rest.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
