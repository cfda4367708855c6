// ABOUTME: Secret persistence operations for the SQLite store
// ABOUTME: Upsert semantics keyed on (name, scope); scope '' means global

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertSecret creates or replaces a secret keyed by (name, scope).
// On update the created_at timestamp and ID of the existing row are kept.
func (s *SQLiteStore) UpsertSecret(ctx context.Context, secret *Secret) error {
	sensitive := 0
	if secret.Sensitive {
		sensitive = 1
	}

	query := `
		INSERT INTO secrets (id, name, value, scope, sensitive, description, created_at, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, scope) DO UPDATE SET
			value = excluded.value,
			sensitive = excluded.sensitive,
			description = excluded.description,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`

	var updatedBy any
	if secret.UpdatedBy != nil {
		updatedBy = *secret.UpdatedBy
	}

	_, err := s.db.ExecContext(ctx, query,
		secret.ID,
		secret.Name,
		secret.Value,
		secret.Scope,
		sensitive,
		secret.Description,
		secret.CreatedAt.UTC().Format(time.RFC3339),
		secret.UpdatedAt.UTC().Format(time.RFC3339),
		updatedBy,
	)
	if err != nil {
		return fmt.Errorf("upserting secret: %w", err)
	}

	s.logger.Debug("upserted secret", "name", secret.Name, "scope", secret.Scope)
	return nil
}

func scanSecret(scan func(dest ...any) error) (*Secret, error) {
	var secret Secret
	var sensitive int
	var createdAt, updatedAt string
	var updatedBy sql.NullString

	err := scan(&secret.ID, &secret.Name, &secret.Value, &secret.Scope,
		&sensitive, &secret.Description, &createdAt, &updatedAt, &updatedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning secret: %w", err)
	}

	secret.Sensitive = sensitive != 0

	secret.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	secret.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if updatedBy.Valid {
		secret.UpdatedBy = &updatedBy.String
	}

	return &secret, nil
}

const secretColumns = `id, name, value, scope, sensitive, description, created_at, updated_at, updated_by`

// GetSecretByName retrieves a secret by (name, scope).
// Returns ErrNotFound if no such secret exists.
func (s *SQLiteStore) GetSecretByName(ctx context.Context, name, scope string) (*Secret, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+secretColumns+`
		FROM secrets
		WHERE name = ? AND scope = ?
	`, name, scope)
	return scanSecret(row.Scan)
}

// DeleteSecretByName removes a secret by (name, scope).
// Returns ErrNotFound if no such secret exists.
func (s *SQLiteStore) DeleteSecretByName(ctx context.Context, name, scope string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM secrets WHERE name = ? AND scope = ?`, name, scope)
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted secret", "name", name, "scope", scope)
	return nil
}

// ListSecrets returns secrets for the given scope ordered by name.
// An empty scope returns secrets from all scopes.
func (s *SQLiteStore) ListSecrets(ctx context.Context, scope string) ([]*Secret, error) {
	query := `
		SELECT ` + secretColumns + `
		FROM secrets
		ORDER BY scope, name
	`
	args := []any{}
	if scope != "" {
		query = `
			SELECT ` + secretColumns + `
			FROM secrets
			WHERE scope = ?
			ORDER BY name
		`
		args = append(args, scope)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying secrets: %w", err)
	}
	defer rows.Close()

	var secrets []*Secret
	for rows.Next() {
		secret, err := scanSecret(rows.Scan)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating secret rows: %w", err)
	}
	return secrets, nil
}
