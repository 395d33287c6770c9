package locking

import (
	"context"
	"fmt"
	"strings"

	"github.com/rowmark/rowmark/internal/utils"
)

// DistributedLocker serializes ownership of a monitored table across poller
// instances: only the lease holder runs the table's poll loop.
type DistributedLocker interface {
	// AcquireLock tries to acquire the lock and returns a lease ID.
	// An empty lease ID with a nil error means the lock is held elsewhere.
	AcquireLock(ctx context.Context, lockName string) (string, error)

	// ReleaseLock releases the lock associated with the lease ID.
	ReleaseLock(ctx context.Context, lockName string, leaseID string) error

	// RenewLock extends the held lease.
	RenewLock(ctx context.Context, lockName string) error

	// StartLockRenewal renews the lease in the background until ctx ends.
	StartLockRenewal(ctx context.Context, lockName string)

	// LockedTables reports which of the given tables are currently locked.
	LockedTables(ctx context.Context, tableNames []string) ([]string, error)
}

// LockerFactory creates DistributedLockers based on the configured provider.
type LockerFactory struct {
	lockerType         string
	connectionString   string
	containerName      string
	dbConnectionString string
}

// NewLockerFactory initializes a new LockerFactory.
func NewLockerFactory(lockerType, connectionString, containerName, dbConnectionString string) *LockerFactory {
	return &LockerFactory{
		lockerType:         lockerType,
		connectionString:   connectionString,
		containerName:      containerName,
		dbConnectionString: dbConnectionString,
	}
}

// CreateLocker creates a DistributedLocker for the given lock name.
func (f *LockerFactory) CreateLocker(lockName string) (DistributedLocker, error) {
	switch f.lockerType {
	case "azure_blob":
		return NewBlobLocker(f.connectionString, f.containerName, lockName)
	default:
		return nil, fmt.Errorf("unsupported lock type: %s", f.lockerType)
	}
}

// GetLockName returns the lock name for a table. Blob locks are namespaced
// under the database server's name so two servers with identical table names
// do not contend.
func (f *LockerFactory) GetLockName(tableName string) string {
	if f.lockerType != "azure_blob" {
		return tableName
	}
	if f.dbConnectionString != "" {
		serverName, err := utils.ExtractServerNameFromConnectionString(f.dbConnectionString)
		if err == nil && serverName != "" {
			return strings.ToLower(serverName) + "/" + blobLockName(tableName)
		}
	}
	return blobLockName(tableName)
}

// LockedTables reports which of the given tables are currently locked.
func (f *LockerFactory) LockedTables(ctx context.Context, tableNames []string) ([]string, error) {
	switch f.lockerType {
	case "azure_blob":
		locker, err := NewBlobLocker(f.connectionString, f.containerName, "probe")
		if err != nil {
			return nil, fmt.Errorf("failed to create blob locker: %w", err)
		}
		return locker.LockedTables(ctx, tableNames)
	default:
		return nil, fmt.Errorf("unsupported lock type: %s", f.lockerType)
	}
}

func blobLockName(tableName string) string {
	return tableName + ".lock"
}
