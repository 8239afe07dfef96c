package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Backend != "sqs" {
		t.Errorf("backend = %q, want sqs", cfg.Queue.Backend)
	}
	if cfg.DedupeWindow() != 60*time.Second {
		t.Errorf("dedupe window = %v, want 60s", cfg.DedupeWindow())
	}
	if cfg.FirstResponseWindow() != 15*time.Minute {
		t.Errorf("first response = %v, want 15m", cfg.FirstResponseWindow())
	}
}

func TestLoad_JSON5WithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		// inbound queue
		queue: {
			backend: "amqp",
			amqp: { queue: "custom.inbound" },
		},
		dedupe: { window_seconds: 120 },
		logging: { level: "debug" },
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Backend != "amqp" || cfg.Queue.AMQP.Queue != "custom.inbound" {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.DedupeWindow() != 2*time.Minute {
		t.Errorf("dedupe window = %v, want 2m", cfg.DedupeWindow())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{queue: {backend: "sqs"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEADGATE_QUEUE_BACKEND", "amqp")
	t.Setenv("LEADGATE_WHATSAPP_TOKEN", "tok-env")
	t.Setenv("LEADGATE_SLA_FIRST_RESPONSE_MINUTES", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Backend != "amqp" {
		t.Errorf("backend = %q, want env override amqp", cfg.Queue.Backend)
	}
	if cfg.WhatsApp.AccessToken != "tok-env" {
		t.Errorf("token = %q", cfg.WhatsApp.AccessToken)
	}
	if cfg.FirstResponseWindow() != 30*time.Minute {
		t.Errorf("first response = %v, want 30m", cfg.FirstResponseWindow())
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{queue:`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
