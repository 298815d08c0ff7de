// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Layer file and environment values over defaults in Load.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// TaskQueueSize bounds the in-memory stage task queue.
	TaskQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of stage workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the invocation deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the in-memory store.
	ShardCount int `koanf:"shard_count"`

	// DatabaseDSN selects the postgres store when set; empty keeps the
	// in-memory store.
	DatabaseDSN string `koanf:"database_dsn"`

	// BrokerURL selects the AMQP task queue when set; empty keeps the
	// in-memory queue.
	BrokerURL string `koanf:"broker_url"`

	// GatewayBaseURL points at an OpenAI-compatible model gateway.
	GatewayBaseURL string `koanf:"gateway_base_url"`

	// GatewayAPIKey authenticates against the gateway.
	GatewayAPIKey string `koanf:"gateway_api_key"`

	// GatewayModel names the completion model.
	GatewayModel string `koanf:"gateway_model"`

	// GatewayTimeout bounds one completion round trip.
	GatewayTimeout time.Duration `koanf:"gateway_timeout"`

	// GatewayTemperature sets the sampling temperature.
	GatewayTemperature float64 `koanf:"gateway_temperature"`

	// LLMStub replaces the gateway with deterministic stub replies.
	LLMStub bool `koanf:"llm_stub"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		TaskQueueSize:      10_000,
		WorkerCount:        runtime.NumCPU() * 4,
		DedupeSize:         100_000,
		ShardCount:         8,
		GatewayModel:       "gpt-4o-mini",
		GatewayTimeout:     30 * time.Second,
		GatewayTemperature: 0.1,
	}
}
