// Package ingester wires configuration, database, locks, sink and per-table
// monitors into a running service.
package ingester

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/rowmark/rowmark/internal/config"
	"github.com/rowmark/rowmark/internal/db"
	"github.com/rowmark/rowmark/internal/locking"
	"github.com/rowmark/rowmark/internal/logging"
	"github.com/rowmark/rowmark/internal/poller"
	"github.com/rowmark/rowmark/internal/sink"
	"github.com/rowmark/rowmark/pkg/cdc"
)

// Ingester runs one watermark poll loop per configured table.
type Ingester struct {
	cfg *config.Config
	log hclog.Logger

	conn    *sql.DB
	sink    cdc.EventSink
	lockers *locking.LockerFactory
}

var _ cdc.TableMonitorFactory = (*Ingester)(nil)

// New returns an Ingester for the given configuration.
func New(cfg *config.Config) *Ingester {
	return &Ingester{cfg: cfg, log: logging.GetLogger()}
}

// Start connects to the database and the sink, acquires per-table locks and
// runs one monitor goroutine per table until ctx is cancelled or a monitor
// fails to initialize its watermark.
func (ing *Ingester) Start(ctx context.Context) error {
	conn, err := db.Connect(ctx, ing.cfg.DBConnectionString)
	if err != nil {
		return err
	}
	defer conn.Close()
	ing.conn = conn

	eventSink, err := ing.buildSink()
	if err != nil {
		return err
	}
	defer eventSink.Close()
	ing.sink = eventSink

	if ing.cfg.LockingEnabled() {
		ing.lockers = locking.NewLockerFactory(
			ing.cfg.Lock.Type,
			ing.cfg.Lock.ConnectionString,
			ing.cfg.Lock.ContainerName,
			ing.cfg.DBConnectionString,
		)
		if locked, err := ing.lockers.LockedTables(ctx, ing.cfg.Tables); err == nil && len(locked) > 0 {
			ing.log.Info("tables held by other instances", "tables", locked)
		}
	}

	// Initialization failures terminate the whole run; everything after
	// the loop starts is isolated per cycle inside the monitors.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(ing.cfg.Tables))
	started := 0

	for _, table := range ing.cfg.Tables {
		release, ok := ing.acquireLock(runCtx, table)
		if !ok {
			continue
		}

		monitor, err := ing.CreateMonitor(runCtx, table)
		if err != nil {
			if release != nil {
				release()
			}
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to create monitor for %s: %w", table, err)
		}

		started++
		wg.Add(1)
		go func(tName string, rel func()) {
			defer wg.Done()
			if rel != nil {
				defer rel()
			}
			if err := monitor.MonitorTable(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("monitor for %s failed: %w", tName, err)
				cancel()
			}
		}(table, release)
	}

	if started == 0 {
		return fmt.Errorf("no tables available to monitor")
	}
	ing.log.Info("ingester started", "tables", started)

	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

// CreateMonitor builds a monitor for one table: row source, durable
// checkpoints, batch sizing and the poll loop. It implements
// cdc.TableMonitorFactory.
func (ing *Ingester) CreateMonitor(ctx context.Context, tableName string) (cdc.TableMonitor, error) {
	source, err := db.NewTableSource(ctx, ing.conn, ing.cfg.Schema, tableName, ing.cfg.Polling.Column)
	if err != nil {
		return nil, err
	}

	opts := poller.Options{
		Table:            tableName,
		PollingColumn:    ing.cfg.Polling.Column,
		Intervals:        poller.NewIntervals(ing.cfg.Polling.IntervalSeconds, ing.cfg.Polling.RetryIntervalMS),
		WaitingTimeoutMS: ing.cfg.Polling.WaitingTimeoutMS,
		Source:           source,
		Sink:             ing.sink,
		Logger:           ing.log,
	}

	var store *db.CheckpointStore
	if !ing.cfg.Checkpoint.Disabled {
		store = db.NewCheckpointStore(ing.conn, tableName, ing.cfg.Checkpoint.Table)
		if err := store.EnsureTable(ctx); err != nil {
			return nil, err
		}
		opts.Checkpoints = store
	}

	sizer := db.NewBatchSizer(ing.conn, ing.cfg.Schema, tableName, ing.cfg.Polling.Column, ing.cfg.Sink.MaxMessageBytes)
	if err := sizer.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start batch sizer for %s: %w", tableName, err)
	}
	opts.Limiter = sizer

	monitor := poller.NewMonitor(opts)

	if store != nil {
		watermark, ok, err := store.Load(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := monitor.SetLastReadValue(strconv.FormatInt(watermark, 10)); err != nil {
				return nil, err
			}
		}
	}
	return monitor, nil
}

// acquireLock takes the table's distributed lock when locking is enabled.
// It returns a release func (nil when locking is disabled) and whether the
// table may be monitored by this instance.
func (ing *Ingester) acquireLock(ctx context.Context, table string) (func(), bool) {
	if ing.lockers == nil {
		return nil, true
	}
	lockName := ing.lockers.GetLockName(table)
	locker, err := ing.lockers.CreateLocker(lockName)
	if err != nil {
		ing.log.Error("failed to create locker", "table", table, "error", err)
		return nil, false
	}
	leaseID, err := locker.AcquireLock(ctx, lockName)
	if err != nil {
		ing.log.Error("failed to acquire lock", "table", table, "error", err)
		return nil, false
	}
	if leaseID == "" {
		ing.log.Info("table already locked, skipping", "table", table)
		return nil, false
	}
	locker.StartLockRenewal(ctx, lockName)

	release := func() {
		if err := locker.ReleaseLock(context.Background(), lockName, leaseID); err != nil {
			ing.log.Error("failed to release lock", "table", table, "error", err)
		}
	}
	return release, true
}

func (ing *Ingester) buildSink() (cdc.EventSink, error) {
	switch ing.cfg.Sink.Type {
	case "servicebus":
		return sink.NewServiceBusSink(ing.cfg.Sink.ConnectionString, ing.cfg.Sink.Queue)
	default:
		return sink.NewConsoleSink(ing.log), nil
	}
}
