package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rowmark/rowmark/internal/logging"
)

// Default checkpoint table name.
const defaultCheckpointTableName = "cdc_offsets"

// CheckpointStore persists each table's last-read watermark in a SQL table
// so a restarted poller resumes where it left off.
type CheckpointStore struct {
	conn            *sql.DB
	tableName       string
	checkpointTable string
}

// NewCheckpointStore returns a store for one monitored table. An empty
// checkpointTable selects the default.
func NewCheckpointStore(conn *sql.DB, tableName, checkpointTable string) *CheckpointStore {
	if checkpointTable == "" {
		checkpointTable = defaultCheckpointTableName
	}
	return &CheckpointStore{
		conn:            conn,
		tableName:       tableName,
		checkpointTable: checkpointTable,
	}
}

// EnsureTable creates the checkpoint table if it does not exist.
func (c *CheckpointStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
    IF NOT EXISTS (SELECT * FROM sys.tables WHERE name = '%s')
    BEGIN
        CREATE TABLE %s (
            table_name NVARCHAR(255) PRIMARY KEY,
            last_watermark BIGINT NOT NULL,
            updated_at DATETIME DEFAULT GETDATE()
        );
    END`, c.checkpointTable, c.checkpointTable)

	if _, err := c.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", c.checkpointTable, err)
	}
	return nil
}

// Load retrieves the stored watermark for the monitored table. ok is false
// when no checkpoint has been written yet.
func (c *CheckpointStore) Load(ctx context.Context) (int64, bool, error) {
	var watermark int64
	query := fmt.Sprintf("SELECT last_watermark FROM %s WHERE table_name = @tableName", c.checkpointTable)
	err := c.conn.QueryRowContext(ctx, query, sql.Named("tableName", c.tableName)).Scan(&watermark)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint for %s: %w", c.tableName, err)
	}
	logging.GetLogger().Info("resuming from checkpoint", "table", c.tableName, "watermark", watermark)
	return watermark, true, nil
}

// Save upserts the watermark for the monitored table.
func (c *CheckpointStore) Save(ctx context.Context, watermark int64) error {
	query := fmt.Sprintf(`
    MERGE INTO %s AS target
    USING (VALUES (@tableName, @watermark, GETDATE())) AS source (table_name, last_watermark, updated_at)
    ON target.table_name = source.table_name
    WHEN MATCHED THEN
        UPDATE SET last_watermark = source.last_watermark, updated_at = source.updated_at
    WHEN NOT MATCHED THEN
        INSERT (table_name, last_watermark, updated_at)
        VALUES (source.table_name, source.last_watermark, source.updated_at);`, c.checkpointTable)

	_, err := c.conn.ExecContext(ctx, query,
		sql.Named("tableName", c.tableName), sql.Named("watermark", watermark))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", c.tableName, err)
	}
	return nil
}
