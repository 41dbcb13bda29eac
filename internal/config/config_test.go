package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("TGRELAY_TELEGRAM_TOKEN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.PollTimeoutSec != DefaultPollTimeoutSec {
		t.Errorf("poll timeout = %d, want %d", cfg.Telegram.PollTimeoutSec, DefaultPollTimeoutSec)
	}
	if cfg.Relay.DrainIntervalMs != DefaultDrainIntervalMs {
		t.Errorf("drain interval = %d, want %d", cfg.Relay.DrainIntervalMs, DefaultDrainIntervalMs)
	}
	if cfg.Queue.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Queue.Driver)
	}
	if cfg.Queue.Path == DefaultQueuePath {
		t.Errorf("queue path was not expanded: %q", cfg.Queue.Path)
	}
}

func TestLoadJSON5AndStringUserID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  // comments and trailing commas are allowed
  telegram: {
    token: "123456:abc",
    user_id: "987654321",
    poll_interval_ms: 250,
  },
  queue: { path: "/tmp/q.db" },
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TGRELAY_TELEGRAM_TOKEN", "")
	t.Setenv("TGRELAY_TELEGRAM_USER_ID", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.UserID != 987654321 {
		t.Errorf("user id = %d", cfg.Telegram.UserID)
	}
	if cfg.Telegram.PollIntervalMs != 250 {
		t.Errorf("poll interval = %d", cfg.Telegram.PollIntervalMs)
	}
	if cfg.Telegram.PollLimit != DefaultPollLimit {
		t.Errorf("poll limit default not applied: %d", cfg.Telegram.PollLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"telegram":{"token":"file-token","user_id":1}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TGRELAY_TELEGRAM_TOKEN", "env-token")
	t.Setenv("TGRELAY_TELEGRAM_USER_ID", "42")
	t.Setenv("TGRELAY_QUEUE_DRIVER", "postgres")
	t.Setenv("TGRELAY_POSTGRES_DSN", "postgres://localhost/relay")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.UserID != 42 {
		t.Errorf("user id = %d", cfg.Telegram.UserID)
	}
	if cfg.Queue.Driver != "postgres" || cfg.Queue.PostgresDSN == "" {
		t.Errorf("queue = %+v", cfg.Queue)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{telegram: `), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"ok", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"missing user", func(c *Config) { c.Telegram.UserID = 0 }, "telegram.user_id"},
		{"unknown driver", func(c *Config) { c.Queue.Driver = "redis" }, "queue.driver"},
		{"postgres without dsn", func(c *Config) { c.Queue.Driver = "postgres" }, "queue.postgres_dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Telegram.Token = "123:abc"
			cfg.Telegram.UserID = 7
			tt.edit(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestSaveRoundTripKeepsDSNOutOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.UserID = 99
	cfg.Queue.PostgresDSN = "postgres://secret"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "postgres://secret") {
		t.Error("postgres DSN must not be written to the config file")
	}

	t.Setenv("TGRELAY_TELEGRAM_TOKEN", "")
	t.Setenv("TGRELAY_TELEGRAM_USER_ID", "")
	t.Setenv("TGRELAY_POSTGRES_DSN", "")
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Telegram.UserID != 99 || got.Telegram.Token != "123:abc" {
		t.Errorf("round trip mismatch: %+v", got.Telegram)
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"abc":         "****",
		"123456:ABCD": "1234****",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Errorf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/x/y"); got != home+"/x/y" {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
}
