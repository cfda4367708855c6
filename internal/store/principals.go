// ABOUTME: Principal persistence operations for the SQLite store
// ABOUTME: Handles account creation, lookup, password updates, and soft deletion

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreatePrincipal inserts a new principal.
// Returns ErrEmailExists if a principal with the same email already exists.
func (s *SQLiteStore) CreatePrincipal(ctx context.Context, p *Principal) error {
	query := `
		INSERT INTO principals (id, email, display_name, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.Email,
		p.DisplayName,
		p.Role,
		p.PasswordHash,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting principal: %w", err)
	}

	s.logger.Debug("created principal", "id", p.ID, "role", p.Role)
	return nil
}

const principalColumns = `id, email, display_name, role, password_hash, created_at, last_login_at, deleted_at`

func scanPrincipal(row *sql.Row) (*Principal, error) {
	var p Principal
	var createdAt string
	var lastLoginAt, deletedAt sql.NullString

	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.PasswordHash,
		&createdAt, &lastLoginAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning principal: %w", err)
	}

	p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if lastLoginAt.Valid {
		t, err := time.Parse(time.RFC3339, lastLoginAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_login_at: %w", err)
		}
		p.LastLoginAt = &t
	}
	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339, deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing deleted_at: %w", err)
		}
		p.DeletedAt = &t
	}

	return &p, nil
}

// GetPrincipal retrieves an active principal by ID.
// Returns ErrPrincipalNotFound if the principal doesn't exist or was deleted.
func (s *SQLiteStore) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	return scanPrincipal(row)
}

// GetPrincipalByEmail retrieves an active principal by email.
// Returns ErrPrincipalNotFound if no active principal has this email.
func (s *SQLiteStore) GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE email = ? AND deleted_at IS NULL
	`, email)
	return scanPrincipal(row)
}

// UpdatePrincipalPassword replaces a principal's password hash.
// Returns ErrPrincipalNotFound if the principal doesn't exist or was deleted.
func (s *SQLiteStore) UpdatePrincipalPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE principals SET password_hash = ?
		WHERE id = ? AND deleted_at IS NULL
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrincipalNotFound
	}

	s.logger.Info("updated principal password", "id", id)
	return nil
}

// TouchPrincipalLogin records the time of a successful login.
func (s *SQLiteStore) TouchPrincipalLogin(ctx context.Context, id string, when time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE principals SET last_login_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, when.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating last_login_at: %w", err)
	}
	return nil
}

// SoftDeletePrincipal marks a principal as deleted and removes its sessions.
// Returns ErrPrincipalNotFound if the principal doesn't exist or is already deleted.
func (s *SQLiteStore) SoftDeletePrincipal(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `
		UPDATE principals SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	if err != nil {
		return fmt.Errorf("deleting principal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrincipalNotFound
	}

	// Deleted principals must not keep live sessions
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE principal_id = ?`, id); err != nil {
		return fmt.Errorf("deleting principal sessions: %w", err)
	}

	s.logger.Info("soft-deleted principal", "id", id)
	return nil
}

// ListPrincipals returns all active principals ordered by creation time.
func (s *SQLiteStore) ListPrincipals(ctx context.Context) ([]*Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying principals: %w", err)
	}
	defer rows.Close()

	var principals []*Principal
	for rows.Next() {
		var p Principal
		var createdAt string
		var lastLoginAt, deletedAt sql.NullString

		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.PasswordHash,
			&createdAt, &lastLoginAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("scanning principal row: %w", err)
		}

		p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if lastLoginAt.Valid {
			t, err := time.Parse(time.RFC3339, lastLoginAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing last_login_at: %w", err)
			}
			p.LastLoginAt = &t
		}

		principals = append(principals, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating principal rows: %w", err)
	}
	return principals, nil
}

// CountPrincipals returns the number of active principals.
func (s *SQLiteStore) CountPrincipals(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM principals WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting principals: %w", err)
	}
	return count, nil
}
