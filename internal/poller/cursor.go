package poller

import (
	"context"
	"strconv"
	"sync"

	"github.com/rowmark/rowmark/pkg/cdc"
)

// Cursor holds the last-read watermark value for one table. The poll loop is
// the only writer during normal operation, but the checkpoint surface may be
// read or restored from another goroutine, so access is guarded.
type Cursor struct {
	source cdc.RowSource

	mu    sync.Mutex
	value int64
	known bool
}

// NewCursor returns a cursor with no watermark known yet.
func NewCursor(source cdc.RowSource) *Cursor {
	return &Cursor{source: source}
}

// Initialize determines the starting watermark: the table's current maximum
// value, or -1 when the table is empty so the first range query fetches all
// rows from the beginning. It is idempotent; once a watermark is known
// (including one restored via SetLastReadValue) the source is not queried
// again.
func (c *Cursor) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known {
		return nil
	}
	v, ok, err := c.source.MaxWatermark(ctx)
	if err != nil {
		return &InitError{Err: err}
	}
	if !ok {
		v = -1
	}
	c.value = v
	c.known = true
	return nil
}

// Get returns the last-read watermark.
func (c *Cursor) Get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Advance moves the watermark forward. The watermark never decreases, so a
// smaller value is ignored.
func (c *Cursor) Advance(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.value {
		c.value = v
	}
}

// LastReadValue returns the watermark serialized for external checkpoint
// persistence.
func (c *Cursor) LastReadValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strconv.FormatInt(c.value, 10)
}

// SetLastReadValue restores a checkpointed watermark. A non-numeric value
// fails with a ParseError and leaves the cursor unchanged.
func (c *Cursor) SetLastReadValue(s string) error {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return &ParseError{Value: s, Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.known = true
	return nil
}
