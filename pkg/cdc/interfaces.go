package cdc

import "context"

// RowSource abstracts the table the engine polls. Implementations execute
// parameterized range queries over a single watermark column.
type RowSource interface {
	// MaxWatermark returns the largest watermark value currently in the
	// table. ok is false when the table is empty.
	MaxWatermark(ctx context.Context) (value int64, ok bool, err error)

	// FetchSince returns rows whose watermark value is strictly greater
	// than watermark, in ascending watermark order. A batch that is not
	// ascending on the watermark column is a contract violation; the poll
	// loop's gap detection relies on the ordering. limit caps the number
	// of returned rows when positive.
	FetchSince(ctx context.Context, watermark int64, limit int) (*Batch, error)
}

// EventSink receives captured rows, one event per call. There is no batching
// contract; the poll loop does not advance its cursor past an event whose
// Publish returned an error.
type EventSink interface {
	Publish(ctx context.Context, event RowEvent) error

	// Close releases any resources used by the sink.
	Close() error
}

// TableMonitor defines the interface for the poll loop over a single table.
type TableMonitor interface {
	// MonitorTable runs the poll loop until ctx is cancelled.
	MonitorTable(ctx context.Context) error

	// GetTableName returns the name of the table being monitored.
	GetTableName() string
}

// TableMonitorFactory creates table monitors for specific tables.
type TableMonitorFactory interface {
	CreateMonitor(ctx context.Context, tableName string) (TableMonitor, error)
}
