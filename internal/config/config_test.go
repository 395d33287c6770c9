package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalConfig() string {
	return `{
		"db_connection_string": "sqlserver://sa:pass@db:1433?database=app",
		"tables": ["Orders"],
		"polling": {"column": "ID", "interval_seconds": 5}
	}`
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	cfg, err := LoadJSON([]byte(minimalConfig()))
	require.NoError(t, err)

	assert.Equal(t, "dbo", cfg.Schema)
	assert.Equal(t, "console", cfg.Sink.Type)
	assert.Equal(t, int64(-1), cfg.Polling.WaitingTimeoutMS)
	assert.Equal(t, 256*1024, cfg.Sink.MaxMessageBytes)
	assert.False(t, cfg.LockingEnabled())
}

func TestLoadJSONKeepsExplicitValues(t *testing.T) {
	cfg, err := LoadJSON([]byte(`{
		"db_connection_string": "sqlserver://sa:pass@db:1433",
		"schema": "sales",
		"tables": ["Orders", "Invoices"],
		"polling": {
			"column": "seq_id",
			"interval_seconds": 10,
			"retry_interval_ms": 500,
			"waiting_timeout_ms": 2000
		},
		"sink": {"type": "servicebus", "connection_string": "Endpoint=sb://x", "queue": "changes"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "sales", cfg.Schema)
	assert.Equal(t, []string{"Orders", "Invoices"}, cfg.Tables)
	assert.Equal(t, int64(500), cfg.Polling.RetryIntervalMS)
	assert.Equal(t, int64(2000), cfg.Polling.WaitingTimeoutMS)
}

func TestLoadJSONRejectsMalformedJSON(t *testing.T) {
	_, err := LoadJSON([]byte(`{`))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		json string
		want string
	}{
		{
			"missing connection string",
			`{"tables": ["Orders"], "polling": {"column": "ID", "interval_seconds": 5}}`,
			"db_connection_string",
		},
		{
			"missing tables",
			`{"db_connection_string": "sqlserver://db", "polling": {"column": "ID", "interval_seconds": 5}}`,
			"tables",
		},
		{
			"missing polling column",
			`{"db_connection_string": "sqlserver://db", "tables": ["Orders"], "polling": {"interval_seconds": 5}}`,
			"polling.column",
		},
		{
			"zero poll interval",
			`{"db_connection_string": "sqlserver://db", "tables": ["Orders"], "polling": {"column": "ID"}}`,
			"interval_seconds must be positive",
		},
		{
			"waiting timeout below -1",
			`{"db_connection_string": "sqlserver://db", "tables": ["Orders"], "polling": {"column": "ID", "interval_seconds": 5, "waiting_timeout_ms": -2}}`,
			"waiting_timeout_ms",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadJSON([]byte(tc.json))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestValidateSinkConfig(t *testing.T) {
	_, err := LoadJSON([]byte(`{
		"db_connection_string": "sqlserver://db",
		"tables": ["Orders"],
		"polling": {"column": "ID", "interval_seconds": 5},
		"sink": {"type": "kafka"}
	}`))
	assert.ErrorContains(t, err, "unsupported sink type")

	_, err = LoadJSON([]byte(`{
		"db_connection_string": "sqlserver://db",
		"tables": ["Orders"],
		"polling": {"column": "ID", "interval_seconds": 5},
		"sink": {"type": "servicebus", "queue": "changes"}
	}`))
	assert.ErrorContains(t, err, "sink.connection_string")
}

func TestValidateLockConfig(t *testing.T) {
	_, err := LoadJSON([]byte(`{
		"db_connection_string": "sqlserver://db",
		"tables": ["Orders"],
		"polling": {"column": "ID", "interval_seconds": 5},
		"lock": {"type": "azure_blob", "connection_string": "DefaultEndpointsProtocol=https"}
	}`))
	assert.ErrorContains(t, err, "lock.container_name")

	_, err = LoadJSON([]byte(`{
		"db_connection_string": "sqlserver://db",
		"tables": ["Orders"],
		"polling": {"column": "ID", "interval_seconds": 5},
		"lock": {"type": "zookeeper"}
	}`))
	assert.ErrorContains(t, err, "unsupported lock type")
}

func TestPollInterval(t *testing.T) {
	cfg, err := LoadJSON([]byte(minimalConfig()))
	require.NoError(t, err)
	assert.Equal(t, "5s", cfg.PollInterval().String())
}
