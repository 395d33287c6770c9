package cdc

// Batch is one poll cycle's result set: column metadata plus the raw values
// of each fetched row, in the order the source returned them.
type Batch struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// RowEvent represents a single captured row. Data is keyed by lower-cased
// column name and is owned by the receiver once Publish returns.
type RowEvent struct {
	Table     string         `json:"table_name"`
	Watermark int64          `json:"watermark"`
	Data      map[string]any `json:"data"`
}
