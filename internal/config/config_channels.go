package config

import "time"

// TelegramConfig holds the bot credentials and long-poll tuning.
type TelegramConfig struct {
	Token          string        `json:"token"`
	UserID         FlexibleInt64 `json:"user_id"`                      // the only sender whose messages are relayed
	Proxy          string        `json:"proxy,omitempty"`              // HTTP proxy URL
	APIServer      string        `json:"api_server,omitempty"`         // Bot API base URL override (default https://api.telegram.org)
	PollTimeoutSec int           `json:"poll_timeout_sec,omitempty"`   // long-poll wait (default 10)
	PollLimit      int           `json:"poll_limit,omitempty"`         // max updates per poll (default 100)
	PollIntervalMs int           `json:"poll_interval_ms,omitempty"`   // delay between polls (default 1000)
	SendRatePerSec float64       `json:"send_rate_per_sec,omitempty"`  // outbound throttle (default 1)
	SendBurst      int           `json:"send_burst,omitempty"`         // outbound burst (default 3)
}

// PollInterval returns the inter-poll delay as a duration.
func (t TelegramConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}
