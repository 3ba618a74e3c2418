package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/anthonydavila469-creator/billdock/internal/service"
)

// staleLockAge is how old a sync lock may be before a new run may steal it.
// A crashed sync must not block the user's mailbox forever.
const staleLockAge = 15 * time.Minute

// AcquireSyncLock takes the per-user advisory lock. It returns false when
// another sync holds a fresh lock; the caller treats that as a skip.
func (s *SQLiteStorage) AcquireSyncLock(ctx context.Context, userID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_locks (user_id, acquired_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET acquired_at = excluded.acquired_at
		WHERE acquired_at < ?`,
		userID, now, now.Add(-staleLockAge))
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check sync lock result: %w", err)
	}
	return affected > 0, nil
}

// ReleaseSyncLock drops the per-user advisory lock.
func (s *SQLiteStorage) ReleaseSyncLock(ctx context.Context, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}

// SaveSyncLog appends one sync run's aggregate stats.
func (s *SQLiteStorage) SaveSyncLog(ctx context.Context, log *service.SyncLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if log == nil {
		return fmt.Errorf("%w: log", ErrNilParameter)
	}
	if err := validateString(log.UserID, "log.UserID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (user_id, started_at, finished_at, fetched, skipped,
			processed, auto_accepted, needs_review, rejected, duplicates, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.UserID,
		log.StartedAt,
		log.FinishedAt,
		log.Fetched,
		log.Skipped,
		log.Processed,
		log.AutoAccepted,
		log.NeedsReview,
		log.Rejected,
		log.Duplicates,
		log.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync log: %w", err)
	}
	return nil
}
