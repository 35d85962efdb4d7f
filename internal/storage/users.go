package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"event-invitations/internal/models"
)

// AddUser inserts a new user. A taken phone number yields ErrDuplicate.
func (s *Storage) AddUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, phone, role, passcode_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Phone, u.Role, u.PasscodeHash, u.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByPhone retrieves a user by phone number
func (s *Storage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.getUser(ctx, `WHERE phone = ?`, phone)
}

func (s *Storage) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, role, passcode_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.PasscodeHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// AddSession persists a newly issued session
func (s *Storage) AddSession(ctx context.Context, rec models.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, role, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Role, rec.IssuedAt.UTC(), rec.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id
func (s *Storage) GetSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	var (
		rec     models.SessionRecord
		revoked sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, role, issued_at, expires_at, revoked_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.UserID, &rec.Role, &rec.IssuedAt, &rec.ExpiresAt, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	rec.IssuedAt = rec.IssuedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.RevokedAt = nullTime(revoked)
	return &rec, nil
}

// RevokeSession marks a session as revoked. Revoking twice keeps the first timestamp.
func (s *Storage) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
