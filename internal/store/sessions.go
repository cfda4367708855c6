// ABOUTME: Session persistence operations for the SQLite store
// ABOUTME: Sessions are live only while unexpired; lookups filter on expiry

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (id, principal_id, created_at, expires_at, ip, user_agent)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.PrincipalID,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
		nullString(session.IP),
		nullString(session.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "principal_id", session.PrincipalID)
	return nil
}

// GetSession retrieves a live session by ID.
// Returns ErrSessionNotFound if the session doesn't exist or has expired.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var session Session
	var createdAt, expiresAt string
	var ip, userAgent sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, principal_id, created_at, expires_at, ip, user_agent
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`, id, now).Scan(&session.ID, &session.PrincipalID, &createdAt, &expiresAt, &ip, &userAgent)

	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if ip.Valid {
		session.IP = ip.String
	}
	if userAgent.Valid {
		session.UserAgent = userAgent.String
	}

	return &session, nil
}

// DeleteSession removes a session. Deleting a nonexistent session is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return nil
}
