package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			Backend: "sqs",
			SQS:     SQSConfig{Region: "ap-south-1"},
			AMQP:    AMQPConfig{Queue: "leadgate.inbound"},
		},
		Database: DatabaseConfig{
			SQLitePath: "~/.leadgate/leadgate.db",
		},
		WhatsApp: WhatsAppConfig{
			RatePerSecond: 10,
		},
		Notify: NotifyConfig{
			Host: "0.0.0.0",
			Port: 18820,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads config from a JSON file, then overlays env vars. A missing
// file is not an error; env-only deployments are supported.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
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

	envStr("LEADGATE_QUEUE_BACKEND", &c.Queue.Backend)
	envStr("LEADGATE_SQS_QUEUE_URL", &c.Queue.SQS.QueueURL)
	envStr("LEADGATE_SQS_REGION", &c.Queue.SQS.Region)
	envStr("LEADGATE_SQS_ACCESS_KEY", &c.Queue.SQS.AccessKey)
	envStr("LEADGATE_SQS_SECRET_KEY", &c.Queue.SQS.SecretKey)
	envStr("LEADGATE_SQS_ENDPOINT", &c.Queue.SQS.Endpoint)
	envStr("LEADGATE_AMQP_URL", &c.Queue.AMQP.URL)
	envStr("LEADGATE_AMQP_QUEUE", &c.Queue.AMQP.Queue)

	envStr("LEADGATE_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("LEADGATE_SQLITE_PATH", &c.Database.SQLitePath)

	envStr("LEADGATE_WHATSAPP_TOKEN", &c.WhatsApp.AccessToken)
	envStr("LEADGATE_WHATSAPP_PHONE_NUMBER_ID", &c.WhatsApp.PhoneNumberID)
	envStr("LEADGATE_WHATSAPP_FLOW_ID", &c.WhatsApp.FlowID)
	envStr("LEADGATE_WHATSAPP_BASE_URL", &c.WhatsApp.BaseURL)

	envStr("LEADGATE_NOTIFY_TOKEN", &c.Notify.Token)
	envStr("LEADGATE_NOTIFY_HOST", &c.Notify.Host)
	if v := os.Getenv("LEADGATE_NOTIFY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Notify.Port = port
		}
	}
	if v := os.Getenv("LEADGATE_NOTIFY_ALLOWED_ORIGINS"); v != "" {
		c.Notify.AllowedOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("LEADGATE_DEDUPE_WINDOW_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Dedupe.WindowSeconds = secs
		}
	}
	if v := os.Getenv("LEADGATE_SLA_FIRST_RESPONSE_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			c.SLA.FirstResponseMinutes = mins
		}
	}

	envStr("LEADGATE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("LEADGATE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("LEADGATE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LEADGATE_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	envStr("LEADGATE_LOG_LEVEL", &c.Logging.Level)
	envStr("LEADGATE_LOG_FORMAT", &c.Logging.Format)
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
