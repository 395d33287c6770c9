package poller

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rowmark/rowmark/internal/logging"
	"github.com/rowmark/rowmark/pkg/cdc"
)

// CheckpointSaver durably records the cursor's watermark after a batch has
// been emitted, so a restarted poller resumes where it left off.
type CheckpointSaver interface {
	Save(ctx context.Context, watermark int64) error
}

// BatchLimiter caps how many rows a single poll cycle may fetch.
type BatchLimiter interface {
	GetBatchSize() int32
}

// Options configures a Monitor.
type Options struct {
	Table         string
	PollingColumn string
	Intervals     Intervals

	// WaitingTimeoutMS bounds the wait for a missing record; -1 waits
	// forever.
	WaitingTimeoutMS int64

	Source cdc.RowSource
	Sink   cdc.EventSink

	// Checkpoints is optional; when nil no durable checkpoint is written.
	Checkpoints CheckpointSaver

	// Limiter is optional; when nil cycles fetch without a row cap.
	Limiter BatchLimiter

	Logger hclog.Logger
}

// Monitor is the poll loop for a single table. One dedicated goroutine runs
// MonitorTable; fetch, decode and emit happen sequentially on it. Pause and
// Resume may be called from any goroutine.
type Monitor struct {
	table         string
	pollingColumn string
	intervals     Intervals

	source      cdc.RowSource
	sink        cdc.EventSink
	cursor      *Cursor
	gaps        *GapTracker
	checkpoints CheckpointSaver
	limiter     BatchLimiter
	log         hclog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

// NewMonitor builds a Monitor from opts.
func NewMonitor(opts Options) *Monitor {
	log := opts.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	m := &Monitor{
		table:         opts.Table,
		pollingColumn: opts.PollingColumn,
		intervals:     opts.Intervals,
		source:        opts.Source,
		sink:          opts.Sink,
		cursor:        NewCursor(opts.Source),
		gaps:          NewGapTracker(opts.WaitingTimeoutMS),
		checkpoints:   opts.Checkpoints,
		limiter:       opts.Limiter,
		log:           log.With("table", opts.Table),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// GetTableName returns the name of the table being monitored.
func (m *Monitor) GetTableName() string { return m.table }

// LastReadValue exposes the watermark for external checkpoint persistence.
func (m *Monitor) LastReadValue() string { return m.cursor.LastReadValue() }

// SetLastReadValue restores a checkpointed watermark. Restoring before
// MonitorTable starts also skips the initial MAX() discovery.
func (m *Monitor) SetLastReadValue(s string) error { return m.cursor.SetLastReadValue(s) }

// Pause makes the loop block at the top of the next cycle until Resume.
func (m *Monitor) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// Resume releases a paused loop. Broadcast wakes every waiter; in practice
// there is a single one.
func (m *Monitor) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.cond.Broadcast()
}

// MonitorTable initializes the watermark and runs the poll loop until ctx is
// cancelled. Initialization failures are fatal and returned as *InitError;
// errors inside a cycle are logged and the cycle is treated as empty.
func (m *Monitor) MonitorTable(ctx context.Context) error {
	if err := m.cursor.Initialize(ctx); err != nil {
		return err
	}
	m.log.Info("starting poll loop", "watermark", m.cursor.Get(),
		"pollInterval", m.intervals.Poll, "retryInterval", m.intervals.Retry)

	// Wake a paused loop when the context ends.
	stop := context.AfterFunc(ctx, func() { m.cond.Broadcast() })
	defer stop()

	for {
		if err := m.awaitResume(ctx); err != nil {
			m.log.Info("stopping poll loop", "watermark", m.cursor.Get())
			return err
		}

		gapRetry := m.pollOnce(ctx)

		select {
		case <-ctx.Done():
			m.log.Info("stopping poll loop", "watermark", m.cursor.Get())
			return ctx.Err()
		case <-time.After(m.intervals.After(gapRetry)):
		}
	}
}

// awaitResume blocks while the monitor is paused. Cancellation wins over a
// pending pause.
func (m *Monitor) awaitResume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.paused {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.cond.Wait()
	}
	return ctx.Err()
}

// pollOnce executes one cycle: one range query, zero or more emissions.
// It reports whether the cycle ended early on a suspected gap, in which case
// the caller waits the retry interval instead of the poll interval.
func (m *Monitor) pollOnce(ctx context.Context) (gapRetry bool) {
	limit := 0
	if m.limiter != nil {
		limit = int(m.limiter.GetBatchSize())
	}

	batch, err := m.source.FetchSince(ctx, m.cursor.Get(), limit)
	if err != nil {
		m.log.Error("poll query failed, treating cycle as empty",
			"error", &CycleError{Err: err})
		return false
	}

	for i := 0; i < batch.Len(); i++ {
		v, err := WatermarkAt(batch.Columns, batch.Rows[i], m.pollingColumn)
		if err != nil {
			m.log.Error("row decode failed, abandoning cycle",
				"error", &CycleError{Err: err})
			return false
		}

		if m.gaps.Observe(m.cursor.Get(), v, time.Now()) == Suspend {
			m.log.Debug("missing record suspected, suspending batch",
				"expected", m.gaps.Expected(), "retryIn", m.intervals.Retry)
			return true
		}

		event := cdc.RowEvent{
			Table:     m.table,
			Watermark: v,
			Data:      DecodeRow(batch.Columns, batch.Rows[i]),
		}
		if err := m.sink.Publish(ctx, event); err != nil {
			m.log.Error("publish failed, cursor not advanced",
				"watermark", v, "error", err)
			return false
		}
		m.cursor.Advance(v)
	}

	if m.checkpoints != nil && batch.Len() > 0 {
		if err := m.checkpoints.Save(ctx, m.cursor.Get()); err != nil {
			m.log.Error("failed to save checkpoint", "error", err)
		}
	}
	return false
}
