package config

import (
	"time"
)

// Config is the root configuration for the leadgate service.
type Config struct {
	Queue     QueueConfig     `json:"queue"`
	Database  DatabaseConfig  `json:"database"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Dedupe    DedupeConfig    `json:"dedupe,omitempty"`
	SLA       SLAConfig       `json:"sla,omitempty"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// QueueConfig selects and configures the inbound message queue.
type QueueConfig struct {
	// Backend is "sqs" (default) or "amqp".
	Backend string `json:"backend,omitempty"`

	SQS  SQSConfig  `json:"sqs,omitempty"`
	AMQP AMQPConfig `json:"amqp,omitempty"`
}

// SQSConfig configures the SQS backend. AccessKey/SecretKey come from env
// only (never persisted); empty falls back to the SDK credential chain.
type SQSConfig struct {
	QueueURL  string `json:"queue_url"`
	Region    string `json:"region"`
	AccessKey string `json:"-"` // from env LEADGATE_SQS_ACCESS_KEY only
	SecretKey string `json:"-"` // from env LEADGATE_SQS_SECRET_KEY only
	Endpoint  string `json:"endpoint,omitempty"`
}

type AMQPConfig struct {
	URL   string `json:"-"` // from env LEADGATE_AMQP_URL only (carries credentials)
	Queue string `json:"queue,omitempty"`
}

// DatabaseConfig selects the storage backend. A non-empty PostgresDSN means
// Postgres; otherwise the embedded SQLite file at SQLitePath is used.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"` // from env LEADGATE_POSTGRES_DSN only
	SQLitePath  string `json:"sqlite_path,omitempty"`
}

type WhatsAppConfig struct {
	BaseURL       string  `json:"base_url,omitempty"`
	PhoneNumberID string  `json:"phone_number_id"`
	AccessToken   string  `json:"-"` // from env LEADGATE_WHATSAPP_TOKEN only
	FlowID        string  `json:"flow_id,omitempty"`
	RatePerSecond float64 `json:"rate_per_second,omitempty"`
}

type DedupeConfig struct {
	// WindowSeconds is the repeat-suppression window. Zero means 60.
	WindowSeconds int `json:"window_seconds,omitempty"`
}

type SLAConfig struct {
	// FirstResponseMinutes is the first-response deadline. Zero means 15.
	FirstResponseMinutes int `json:"first_response_minutes,omitempty"`
}

type NotifyConfig struct {
	Host           string   `json:"host,omitempty"`
	Port           int      `json:"port,omitempty"`
	Token          string   `json:"-"` // from env LEADGATE_NOTIFY_TOKEN only
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`
	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

func (c *Config) DedupeWindow() time.Duration {
	if c.Dedupe.WindowSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Dedupe.WindowSeconds) * time.Second
}

func (c *Config) FirstResponseWindow() time.Duration {
	if c.SLA.FirstResponseMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.SLA.FirstResponseMinutes) * time.Minute
}
