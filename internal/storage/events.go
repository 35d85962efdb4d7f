package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"event-invitations/internal/models"
)

const eventColumns = `id, owner_id, title, type, description, location, starts_at, guest_count, status, created_at`

// AddEvent inserts a new event
func (s *Storage) AddEvent(ctx context.Context, e models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Title, e.Type, e.Description, e.Location,
		e.StartsAt.UTC(), e.GuestCount, e.Status, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by id
func (s *Storage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// GetEventsByOwner returns the owner's events, soonest first
func (s *Storage) GetEventsByOwner(ctx context.Context, ownerID string) ([]models.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE owner_id = ? ORDER BY starts_at, rowid`, ownerID)
}

// GetEventsForStaff returns events the user is assigned to as staff
func (s *Storage) GetEventsForStaff(ctx context.Context, userID string) ([]models.Event, error) {
	return s.queryEvents(ctx, `
		SELECT e.id, e.owner_id, e.title, e.type, e.description, e.location, e.starts_at, e.guest_count, e.status, e.created_at
		FROM events e
		JOIN event_staff st ON st.event_id = e.id
		WHERE st.user_id = ?
		ORDER BY e.starts_at, e.rowid`, userID)
}

// UpdateEventStatus moves an event from one of the allowed statuses to next.
// It returns ErrNotFound when the event does not exist or is not in an allowed status.
func (s *Storage) UpdateEventStatus(ctx context.Context, id string, next models.EventStatus, from ...models.EventStatus) error {
	query := `UPDATE events SET status = ? WHERE id = ?`
	args := []any{next, id}
	if len(from) > 0 {
		query += ` AND status IN (` + placeholders(len(from)) + `)`
		for _, st := range from {
			args = append(args, st)
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
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

// CompleteEventsStartedBefore marks every active event that started before
// cutoff as completed and returns how many were updated
func (s *Storage) CompleteEventsStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET status = ?
		WHERE status = ? AND starts_at < ?`,
		models.EventCompleted, models.EventActive, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to complete events: %w", err)
	}
	return res.RowsAffected()
}

// AddEventStaff assigns a user as staff of an event. Re-assigning is a no-op.
func (s *Storage) AddEventStaff(ctx context.Context, eventID, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO event_staff (event_id, user_id) VALUES (?, ?)`, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to add event staff: %w", err)
	}
	return nil
}

// IsEventStaff reports whether the user is assigned to the event
func (s *Storage) IsEventStaff(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_staff WHERE event_id = ? AND user_id = ?)`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check event staff: %w", err)
	}
	return exists, nil
}

func (s *Storage) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Type, &e.Description, &e.Location,
		&e.StartsAt, &e.GuestCount, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.StartsAt = e.StartsAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
