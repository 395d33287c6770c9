package sink

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-hclog"

	"github.com/rowmark/rowmark/internal/logging"
	"github.com/rowmark/rowmark/pkg/cdc"
)

// ConsoleSink writes captured rows to the log, pretty-printing the row data
// as JSON. Useful for local runs and debugging pipelines.
type ConsoleSink struct {
	log hclog.Logger
}

// NewConsoleSink returns a sink writing to the given logger, or the process
// logger when nil.
func NewConsoleSink(log hclog.Logger) *ConsoleSink {
	if log == nil {
		log = logging.GetLogger()
	}
	return &ConsoleSink{log: log}
}

// Publish logs one captured row.
func (s *ConsoleSink) Publish(ctx context.Context, event cdc.RowEvent) error {
	data, err := json.MarshalIndent(event.Data, "", "  ")
	if err != nil {
		s.log.Error("failed to marshal row data", "error", err)
		data = []byte(`{"error": "failed to marshal row data"}`)
	}
	s.log.Info("cdc event",
		"table", event.Table,
		"watermark", event.Watermark,
		"data", string(data))
	return nil
}

// Close is a no-op.
func (s *ConsoleSink) Close() error { return nil }
