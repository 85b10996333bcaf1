package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PurgeDeleted removes keychain items that were soft-deleted before cutoff.
// Deletion stamps the row version with the deletion time.
func PurgeDeleted(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM keychain_items
		 WHERE deleted = true
		   AND version < $1
	`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge deleted items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge deleted items: %w", err)
	}
	return n, nil
}

// StartSoftDeleteCleaner purges soft-deleted keychain items older than
// retention every interval until ctx is done. A non-positive interval
// leaves the cleaner off.
func StartSoftDeleteCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	if interval <= 0 {
		log.Warn("soft-delete cleaner disabled", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := PurgeDeleted(ctx, db, time.Now().Add(-retention))
				if err != nil {
					log.Error("failed to clean soft-deleted keychain items", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned soft-deleted keychain items", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
