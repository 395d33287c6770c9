package locking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/lease"

	"github.com/rowmark/rowmark/internal/logging"
)

const (
	// Leases are infinite; staleness is judged from the blob's last
	// modification instead.
	infiniteLease = int32(-1)

	// A held lease whose blob has not been touched for this long is
	// considered abandoned and broken on acquire.
	staleAfter = 2 * time.Minute

	renewInterval = 30 * time.Second
)

// BlobLocker implements DistributedLocker on an Azure Blob lease. Each lock
// is an empty blob; holding its lease means owning the lock.
type BlobLocker struct {
	containerName string
	lockName      string

	azblobClient    *azblob.Client
	blobLeaseClient *lease.BlobClient
}

// NewBlobLocker ensures the container and lock blob exist and returns a
// locker bound to them.
func NewBlobLocker(connectionString, containerName, lockName string) (*BlobLocker, error) {
	azblobClient, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	_, err = azblobClient.CreateContainer(context.TODO(), containerName, nil)
	if err != nil && !strings.Contains(err.Error(), "ContainerAlreadyExists") {
		return nil, fmt.Errorf("failed to create or check container: %w", err)
	}

	blockblobClient, err := blockblob.NewClientFromConnectionString(connectionString, containerName, lockName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create block blob client: %w", err)
	}
	_, err = blockblobClient.UploadBuffer(context.TODO(), []byte{}, nil)
	if err != nil && !strings.Contains(err.Error(), "BlobAlreadyExists") && !strings.Contains(err.Error(), "lease") {
		return nil, fmt.Errorf("failed to ensure lock blob exists: %w", err)
	}

	blobLeaseClient, err := lease.NewBlobClient(blockblobClient, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob lease client: %w", err)
	}

	return &BlobLocker{
		containerName:   containerName,
		lockName:        lockName,
		azblobClient:    azblobClient,
		blobLeaseClient: blobLeaseClient,
	}, nil
}

// AcquireLock tries to acquire the blob lease. A lease held by someone else
// is broken first when it has gone stale; otherwise an empty lease ID is
// returned and the caller should skip the table.
func (bl *BlobLocker) AcquireLock(ctx context.Context, lockName string) (string, error) {
	log := logging.GetLogger()

	resp, err := bl.blobLeaseClient.AcquireLease(ctx, infiniteLease, nil)
	if err == nil {
		log.Info("lock acquired", "lock", bl.lockName, "leaseID", *resp.LeaseID)
		return *resp.LeaseID, nil
	}
	if !strings.Contains(err.Error(), "lease") {
		return "", fmt.Errorf("failed to acquire lock %s: %w", bl.lockName, err)
	}

	// Someone holds the lease. Break it only when stale.
	blobClient := bl.azblobClient.ServiceClient().NewContainerClient(bl.containerName).NewBlobClient(bl.lockName)
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get properties of lock blob %s: %w", bl.lockName, err)
	}
	lockAge := time.Since(*props.LastModified)
	if lockAge <= staleAfter {
		log.Info("lock held elsewhere, skipping", "lock", bl.lockName, "ageMinutes", lockAge.Minutes())
		return "", nil
	}

	log.Info("breaking stale lock", "lock", bl.lockName, "ageMinutes", lockAge.Minutes())
	if _, err := bl.blobLeaseClient.BreakLease(ctx, nil); err != nil {
		return "", fmt.Errorf("failed to break stale lease for %s: %w", bl.lockName, err)
	}
	time.Sleep(time.Second)

	resp, err = bl.blobLeaseClient.AcquireLease(ctx, infiniteLease, nil)
	if err != nil {
		return "", fmt.Errorf("failed to acquire lease after breaking for %s: %w", bl.lockName, err)
	}
	log.Info("lock acquired after breaking stale lease", "lock", bl.lockName)
	return *resp.LeaseID, nil
}

// RenewLock extends the held lease and refreshes the blob's last-modified
// time so the lock does not read as stale.
func (bl *BlobLocker) RenewLock(ctx context.Context, lockName string) error {
	if _, err := bl.blobLeaseClient.RenewLease(ctx, nil); err != nil {
		return fmt.Errorf("failed to renew lock %s: %w", lockName, err)
	}
	return nil
}

// ReleaseLock releases the held lease.
func (bl *BlobLocker) ReleaseLock(ctx context.Context, lockName string, leaseID string) error {
	if _, err := bl.blobLeaseClient.ReleaseLease(ctx, nil); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", bl.lockName, err)
	}
	logging.GetLogger().Info("lock released", "lock", bl.lockName)
	return nil
}

// StartLockRenewal renews the lease periodically until ctx is cancelled.
func (bl *BlobLocker) StartLockRenewal(ctx context.Context, lockName string) {
	log := logging.GetLogger()
	go func() {
		ticker := time.NewTicker(renewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := bl.RenewLock(ctx, lockName); err != nil {
					log.Error("failed to renew lock", "lock", lockName, "error", err)
				}
			case <-ctx.Done():
				log.Debug("stopping lock renewal", "lock", lockName)
				return
			}
		}
	}()
}

// LockedTables reports which of the given tables currently have a live lock.
func (bl *BlobLocker) LockedTables(ctx context.Context, tableNames []string) ([]string, error) {
	log := logging.GetLogger()
	lockedTables := []string{}
	containerClient := bl.azblobClient.ServiceClient().NewContainerClient(bl.containerName)

	for _, tableName := range tableNames {
		lockName := blobLockName(tableName)
		blobClient := containerClient.NewBlobClient(lockName)

		props, err := blobClient.GetProperties(ctx, nil)
		if err != nil {
			if strings.Contains(err.Error(), "BlobNotFound") {
				continue
			}
			log.Error("failed to get lock blob properties", "lock", lockName, "error", err)
			continue
		}

		if props.LeaseStatus == nil || props.LeaseState == nil {
			continue
		}
		if *props.LeaseStatus != "locked" || *props.LeaseState != "leased" {
			continue
		}
		if time.Since(*props.LastModified) <= staleAfter {
			lockedTables = append(lockedTables, tableName)
		}
	}
	return lockedTables, nil
}
