package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const lockRetryInterval = 100 * time.Millisecond

// EnvironmentLockKey is the lock serializing deploys to one environment.
func EnvironmentLockKey(application, environment string) string {
	return "environment/" + application + "/" + environment
}

// AcquireLock inserts key with value, retrying until timeout while another
// holder owns it.
func AcquireLock(ctx context.Context, db *sql.DB, key, value string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	logrus.Debugf("Attempting to acquire lock: key=%s, value=%s, timeout=%s", key, value, timeout)

	for {
		res, err := db.ExecContext(ctx, `
			INSERT INTO locks (k, v) VALUES (?, ?)
			ON CONFLICT(k) DO NOTHING
		`, key, value)
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if n, err := res.RowsAffected(); err == nil && n == 1 {
			logrus.Debugf("Lock acquired successfully: key=%s, value=%s", key, value)
			return nil
		}

		if !time.Now().Add(lockRetryInterval).Before(deadline) {
			break
		}

		logrus.Infof("Lock %s is held by another deploy, retrying in %s...", key, lockRetryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	holder, _ := LockHolder(ctx, db, key)
	logrus.Errorf("Failed to acquire lock %s within %s (held by %s)", key, timeout, holder)
	return fmt.Errorf("failed to acquire lock %s within %s: held by %s", key, timeout, holder)
}

// LockHolder returns the value stored under key, or "" when unlocked.
func LockHolder(ctx context.Context, db *sql.DB, key string) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT v FROM locks WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// ReleaseLock deletes key if it is still held with value.
func ReleaseLock(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM locks where k = ? AND v = ?
	`, key, value)

	if err == nil {
		logrus.Debugf("Lock released successfully: key=%s, value=%s", key, value)
	} else {
		logrus.Errorf("Failed to release lock %s: %v", key, err)
	}

	return err
}

// ForceReleaseLock deletes key whoever holds it and returns the previous
// holder, or "" when it was not held. It recovers locks left behind by a
// deploy that died before releasing.
func ForceReleaseLock(ctx context.Context, db *sql.DB, key string) (string, error) {
	holder, err := LockHolder(ctx, db, key)
	if err != nil {
		return "", fmt.Errorf("failed to read lock %s: %w", key, err)
	}
	if holder == "" {
		return "", nil
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM locks WHERE k = ? AND v = ?`, key, holder); err != nil {
		return "", fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	logrus.Warnf("Lock %s forcibly released from %s", key, holder)
	return holder, nil
}
