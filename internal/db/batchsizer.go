package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rowmark/rowmark/internal/logging"
)

const (
	defaultSampleSize       = 100
	defaultBufferFactor     = 0.2 // 20% safety margin
	defaultResampleInterval = 1 * time.Hour
	defaultBatchSize        = 100
	minBatchSize            = 50
	maxBatchSize            = 1000

	// Service Bus SKU message size limits.
	StandardSKULimit = 256 * 1024  // 256KB
	PremiumSKULimit  = 1024 * 1024 // 1MB
)

// BatchSizer derives how many rows one poll cycle may fetch from the sink's
// maximum message size, by sampling recent rows and measuring their JSON
// encoding. It resamples periodically in the background.
type BatchSizer struct {
	batchSize atomic.Int32

	conn             *sql.DB
	schema           string
	tableName        string
	watermarkColumn  string
	maxMessageSize   int
	sampleSize       int
	bufferFactor     float64
	resampleInterval time.Duration

	// For monitoring/metrics
	lastSampleTime atomic.Int64
	lastSampleSize atomic.Int32
	lastAvgRowSize atomic.Int32
}

// BatchSizerOption allows customizing the BatchSizer.
type BatchSizerOption func(*BatchSizer)

// WithSampleSize sets the number of rows to sample.
func WithSampleSize(size int) BatchSizerOption {
	return func(bs *BatchSizer) { bs.sampleSize = size }
}

// WithBufferFactor sets the safety margin factor.
func WithBufferFactor(factor float64) BatchSizerOption {
	return func(bs *BatchSizer) { bs.bufferFactor = factor }
}

// WithResampleInterval sets how often the batch size is recalculated.
func WithResampleInterval(interval time.Duration) BatchSizerOption {
	return func(bs *BatchSizer) { bs.resampleInterval = interval }
}

// NewBatchSizer creates a BatchSizer for one monitored table.
func NewBatchSizer(conn *sql.DB, schema, tableName, watermarkColumn string, maxMessageSize int, opts ...BatchSizerOption) *BatchSizer {
	if schema == "" {
		schema = "dbo"
	}
	bs := &BatchSizer{
		conn:             conn,
		schema:           schema,
		tableName:        tableName,
		watermarkColumn:  watermarkColumn,
		maxMessageSize:   maxMessageSize,
		sampleSize:       defaultSampleSize,
		bufferFactor:     defaultBufferFactor,
		resampleInterval: defaultResampleInterval,
	}
	for _, opt := range opts {
		opt(bs)
	}
	return bs
}

// Start performs the initial sampling and begins background resampling.
func (bs *BatchSizer) Start(ctx context.Context) error {
	if err := bs.updateBatchSize(ctx); err != nil {
		return fmt.Errorf("initial batch size calculation failed: %w", err)
	}
	go bs.monitor(ctx)
	return nil
}

// GetBatchSize returns the current batch size, never zero.
func (bs *BatchSizer) GetBatchSize() int32 {
	size := bs.batchSize.Load()
	if size <= 0 {
		return defaultBatchSize
	}
	return size
}

func (bs *BatchSizer) store(size int32) {
	bs.batchSize.Store(size)
	logging.GetLogger().Debug("batch size updated",
		"table", bs.tableName, "batchSize", size)
}

// updateBatchSize samples the most recent rows and recalculates the batch
// size from their average encoded size.
func (bs *BatchSizer) updateBatchSize(ctx context.Context) error {
	log := logging.GetLogger()

	query := fmt.Sprintf("SELECT TOP(%d) * FROM %s.%s ORDER BY %s DESC",
		bs.sampleSize, bs.schema, bs.tableName, bs.watermarkColumn)

	rows, err := bs.conn.QueryContext(ctx, query)
	if err != nil {
		log.Info("failed to sample table, using default batch size",
			"table", bs.tableName, "error", err)
		bs.store(defaultBatchSize)
		return nil
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		log.Info("failed to read sample columns, using default batch size",
			"table", bs.tableName, "error", err)
		bs.store(defaultBatchSize)
		return nil
	}

	var totalSize int64
	var count int32
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			log.Info("failed to scan sample row, skipping",
				"table", bs.tableName, "error", err)
			continue
		}

		// Measure the row the way the sink will see it.
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[strings.ToLower(col)] = v
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			continue
		}
		totalSize += int64(len(encoded))
		count++
	}

	if count == 0 {
		bs.store(defaultBatchSize)
		log.Info("no rows to sample, using default batch size",
			"table", bs.tableName, "batchSize", defaultBatchSize)
		return nil
	}

	avgSize := float64(totalSize) / float64(count)
	effectiveSize := avgSize * (1 + bs.bufferFactor)
	maxRecords := int32(float64(bs.maxMessageSize) / effectiveSize)

	newBatchSize := maxRecords
	switch {
	case newBatchSize < minBatchSize:
		newBatchSize = minBatchSize
	case newBatchSize > maxBatchSize:
		newBatchSize = maxBatchSize
	}

	bs.store(newBatchSize)
	bs.lastSampleTime.Store(time.Now().Unix())
	bs.lastSampleSize.Store(count)
	bs.lastAvgRowSize.Store(int32(avgSize))

	log.Info("batch size recalculated",
		"table", bs.tableName,
		"sampleSize", count,
		"avgRowSize", int64(avgSize),
		"batchSize", newBatchSize)
	return nil
}

// monitor periodically updates the batch size until ctx is cancelled.
func (bs *BatchSizer) monitor(ctx context.Context) {
	ticker := time.NewTicker(bs.resampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := bs.updateBatchSize(ctx); err != nil {
				logging.GetLogger().Error("failed to update batch size",
					"table", bs.tableName, "error", err)
			}
		}
	}
}

// BatchSizerMetrics contains current metrics about the batch sizer.
type BatchSizerMetrics struct {
	CurrentBatchSize int32
	LastSampleTime   time.Time
	LastSampleSize   int32
	AvgRowSize       int32
	MaxMessageSize   int
	BufferFactor     float64
}

// GetMetrics returns current batch sizing metrics.
func (bs *BatchSizer) GetMetrics() BatchSizerMetrics {
	return BatchSizerMetrics{
		CurrentBatchSize: bs.batchSize.Load(),
		LastSampleTime:   time.Unix(bs.lastSampleTime.Load(), 0),
		LastSampleSize:   bs.lastSampleSize.Load(),
		AvgRowSize:       bs.lastAvgRowSize.Load(),
		MaxMessageSize:   bs.maxMessageSize,
		BufferFactor:     bs.bufferFactor,
	}
}
