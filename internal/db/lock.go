package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrLockHeld is returned when another process holds the advisory lock.
var ErrLockHeld = errors.New("advisory lock held by another session")

// WithAdvisoryLock runs fn while holding a session-level Postgres advisory
// lock on key. On other databases fn runs unguarded.
func WithAdvisoryLock(ctx context.Context, d *gorm.DB, key int64, fn func(context.Context) error) error {
	if !IsPostgres(d) {
		return fn(ctx)
	}

	// The lock belongs to one connection, so pin it for the whole run.
	return d.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var ok bool
		if err := conn.Raw(`SELECT pg_try_advisory_lock(?)`, key).Scan(&ok).Error; err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		if !ok {
			return ErrLockHeld
		}
		defer conn.Exec(`SELECT pg_advisory_unlock(?)`, key)

		return fn(ctx)
	})
}
