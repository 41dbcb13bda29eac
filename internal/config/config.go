package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/titanous/json5"
)

// FlexibleInt64 accepts both 123 and "123" in JSON.
// Telegram user ids are often pasted as strings.
type FlexibleInt64 int64

func (f *FlexibleInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json5.Unmarshal(data, &n); err == nil {
		*f = FlexibleInt64(n)
		return nil
	}
	var s string
	if err := json5.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexibleInt64(n)
	return nil
}

func (f FlexibleInt64) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(f))
}

// Config is the root configuration for the relay.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Queue     QueueConfig     `json:"queue"`
	Relay     RelayConfig     `json:"relay"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// QueueConfig locates the durable message queue.
// PostgresDSN is never read from the config file, only from env TGRELAY_POSTGRES_DSN.
type QueueConfig struct {
	Driver      string `json:"driver,omitempty"` // "sqlite" (default) or "postgres"
	Path        string `json:"path,omitempty"`   // SQLite file (default ~/.tgrelay/queue.db)
	PostgresDSN string `json:"-"`
}

// RelayConfig tunes the outbound drain and the fetch tool.
type RelayConfig struct {
	DrainIntervalMs   int `json:"drain_interval_ms,omitempty"`   // default 500
	FetchDefaultCount int `json:"fetch_default_count,omitempty"` // default 10
}

// DrainInterval returns the drain tick as a duration.
func (r RelayConfig) DrainInterval() time.Duration {
	return time.Duration(r.DrainIntervalMs) * time.Millisecond
}

// TelemetryConfig configures OpenTelemetry OTLP export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport, for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "tgrelay"
	Headers     map[string]string `json:"headers,omitempty"`
}

// ConfigurationError reports configuration that prevents startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// Validate checks the settings the relay cannot start without.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Telegram.Token == "" {
		return &ConfigurationError{Field: "telegram.token", Reason: "is required (set it in the config file or TGRELAY_TELEGRAM_TOKEN)"}
	}
	if c.Telegram.UserID <= 0 {
		return &ConfigurationError{Field: "telegram.user_id", Reason: "is required (set it in the config file or TGRELAY_TELEGRAM_USER_ID)"}
	}
	switch c.Queue.Driver {
	case "", "sqlite":
		if c.Queue.Path == "" {
			return &ConfigurationError{Field: "queue.path", Reason: "is required for the sqlite driver"}
		}
	case "postgres":
		if c.Queue.PostgresDSN == "" {
			return &ConfigurationError{Field: "queue.postgres_dsn", Reason: "must be provided via TGRELAY_POSTGRES_DSN"}
		}
	default:
		return &ConfigurationError{Field: "queue.driver", Reason: fmt.Sprintf("unknown driver %q", c.Queue.Driver)}
	}
	return nil
}
