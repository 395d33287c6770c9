package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the ingester's JSON configuration.
type Config struct {
	// DBConnectionString is the SQL Server connection string.
	DBConnectionString string `json:"db_connection_string"`

	// Schema is the table schema; defaults to dbo.
	Schema string `json:"schema"`

	// Tables lists the tables to monitor.
	Tables []string `json:"tables"`

	Polling    PollingConfig    `json:"polling"`
	Checkpoint CheckpointConfig `json:"checkpoint"`
	Lock       LockConfig       `json:"lock"`
	Sink       SinkConfig       `json:"sink"`
}

// PollingConfig tunes the poll loop and gap handling.
type PollingConfig struct {
	// Column is the monotonically increasing watermark column.
	Column string `json:"column"`

	// IntervalSeconds is the wait between poll cycles.
	IntervalSeconds int `json:"interval_seconds"`

	// RetryIntervalMS is the wait after a cycle suspended on a suspected
	// gap. Zero or below derives it from IntervalSeconds.
	RetryIntervalMS int64 `json:"retry_interval_ms"`

	// WaitingTimeoutMS bounds how long a missing record is awaited before
	// it is treated as permanently lost. -1 waits forever; omitted or 0
	// also means forever.
	WaitingTimeoutMS int64 `json:"waiting_timeout_ms"`
}

// CheckpointConfig controls durable watermark persistence.
type CheckpointConfig struct {
	// Disabled turns off the SQL checkpoint table.
	Disabled bool `json:"disabled"`

	// Table overrides the checkpoint table name.
	Table string `json:"table"`
}

// LockConfig configures distributed locking, one active poller per table.
type LockConfig struct {
	// Type selects the provider; empty or "none" disables locking.
	Type             string `json:"type"`
	ConnectionString string `json:"connection_string"`
	ContainerName    string `json:"container_name"`
}

// SinkConfig selects where captured rows go.
type SinkConfig struct {
	// Type is "console" (default) or "servicebus".
	Type             string `json:"type"`
	ConnectionString string `json:"connection_string"`

	// Queue is the Service Bus queue or topic name.
	Queue string `json:"queue"`

	// MaxMessageBytes is the sink's message size limit, used to derive
	// batch sizes. Defaults to the Service Bus Standard SKU limit.
	MaxMessageBytes int `json:"max_message_bytes"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadJSON(data)
}

// LoadJSON parses and validates raw JSON configuration.
func LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Schema == "" {
		c.Schema = "dbo"
	}
	if c.Polling.WaitingTimeoutMS == 0 {
		c.Polling.WaitingTimeoutMS = -1
	}
	if c.Sink.Type == "" {
		c.Sink.Type = "console"
	}
	if c.Sink.MaxMessageBytes <= 0 {
		c.Sink.MaxMessageBytes = 256 * 1024
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.DBConnectionString == "" {
		return fmt.Errorf("missing required config: db_connection_string")
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("missing required config: tables")
	}
	if c.Polling.Column == "" {
		return fmt.Errorf("missing required config: polling.column")
	}
	if c.Polling.IntervalSeconds <= 0 {
		return fmt.Errorf("polling.interval_seconds must be positive")
	}
	if c.Polling.WaitingTimeoutMS < -1 {
		return fmt.Errorf("polling.waiting_timeout_ms must be -1 or above")
	}
	switch c.Sink.Type {
	case "console":
	case "servicebus":
		if c.Sink.ConnectionString == "" {
			return fmt.Errorf("missing required config: sink.connection_string")
		}
		if c.Sink.Queue == "" {
			return fmt.Errorf("missing required config: sink.queue")
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", c.Sink.Type)
	}
	switch c.Lock.Type {
	case "", "none":
	case "azure_blob":
		if c.Lock.ConnectionString == "" {
			return fmt.Errorf("missing required config: lock.connection_string")
		}
		if c.Lock.ContainerName == "" {
			return fmt.Errorf("missing required config: lock.container_name")
		}
	default:
		return fmt.Errorf("unsupported lock type: %s", c.Lock.Type)
	}
	return nil
}

// PollInterval returns the polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// LockingEnabled reports whether distributed locking is configured.
func (c *Config) LockingEnabled() bool {
	return c.Lock.Type != "" && c.Lock.Type != "none"
}
