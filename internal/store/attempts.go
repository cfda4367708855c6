// ABOUTME: Append-only login attempt ledger backed by SQLite
// ABOUTME: Supports sliding-window failure counts keyed on the (email, IP) pair

package store

import (
	"context"
	"fmt"
	"time"
)

// RecordLoginAttempt appends one attempt to the ledger.
func (s *SQLiteStore) RecordLoginAttempt(ctx context.Context, attempt *LoginAttempt) error {
	success := 0
	if attempt.Success {
		success = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_attempts (id, email, ip, success, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, attempt.ID, attempt.Email, attempt.IP, success,
		attempt.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting login attempt: %w", err)
	}

	s.logger.Debug("recorded login attempt", "email", attempt.Email, "success", attempt.Success)
	return nil
}

// CountLoginFailures counts failed attempts for the (email, IP) pair since
// the given time. Scoping to the exact pair keeps one origin's failures from
// locking an account out everywhere else.
func (s *SQLiteStore) CountLoginFailures(ctx context.Context, email, ip string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE success = 0
		  AND created_at >= ?
		  AND email = ?
		  AND ip = ?
	`, since.UTC().Format(time.RFC3339), email, ip).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting login failures: %w", err)
	}
	return count, nil
}

// PruneLoginAttempts removes ledger entries older than the given time.
func (s *SQLiteStore) PruneLoginAttempts(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM login_attempts WHERE created_at < ?
	`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("pruning login attempts: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("pruned login attempts", "count", rowsAffected)
	}
	return nil
}
