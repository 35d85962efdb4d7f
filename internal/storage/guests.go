package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"event-invitations/internal/models"
)

const guestColumns = `id, event_id, name, phone, email, rsvp_status, invited_at, responded_at, companions, max_companions, removed_at`

// GuestMutation decides the next state of a guest inside the storage
// transaction. checkedIn reports whether a check-in record exists.
type GuestMutation func(current models.Guest, checkedIn bool) (models.Guest, error)

// AddGuest inserts a new guest
func (s *Storage) AddGuest(ctx context.Context, g models.Guest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guests (`+guestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.EventID, g.Name, g.Phone, g.Email, g.RSVPStatus, g.InvitedAt.UTC(),
		utcPtr(g.RespondedAt), g.Companions, g.MaxCompanions, utcPtr(g.RemovedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert guest: %w", err)
	}
	return nil
}

// GetGuest retrieves a guest by id, including soft-removed guests
func (s *Storage) GetGuest(ctx context.Context, id string) (*models.Guest, error) {
	g, err := scanGuest(s.db.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	return g, nil
}

// GetGuestsByEvent returns the event's guest list ordered by invitation time.
// Soft-removed guests are excluded.
func (s *Storage) GetGuestsByEvent(ctx context.Context, eventID string) ([]models.Guest, error) {
	return s.queryGuests(ctx, `
		SELECT `+guestColumns+` FROM guests
		WHERE event_id = ? AND removed_at IS NULL
		ORDER BY invited_at, rowid`, eventID)
}

// GetGuestByPhone retrieves the listed guest with the given phone in an event
func (s *Storage) GetGuestByPhone(ctx context.Context, eventID, phone string) (*models.Guest, error) {
	g, err := scanGuest(s.db.QueryRowContext(ctx, `
		SELECT `+guestColumns+` FROM guests
		WHERE event_id = ? AND phone = ? AND removed_at IS NULL
		ORDER BY invited_at, rowid
		LIMIT 1`, eventID, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest by phone: %w", err)
	}
	return g, nil
}

// GetInvitationsByPhone returns every listed guest record with the phone whose
// event is active, most recently invited first
func (s *Storage) GetInvitationsByPhone(ctx context.Context, phone string) ([]models.Guest, error) {
	return s.queryGuests(ctx, `
		SELECT g.id, g.event_id, g.name, g.phone, g.email, g.rsvp_status, g.invited_at,
		       g.responded_at, g.companions, g.max_companions, g.removed_at
		FROM guests g
		JOIN events e ON e.id = g.event_id
		WHERE g.phone = ? AND g.removed_at IS NULL AND e.status = ?
		ORDER BY g.invited_at DESC, g.rowid DESC`, phone, models.EventActive)
}

// RemoveGuest deletes a guest. Guests of an active event, and guests that
// responded or checked in, are only marked as removed so that historical
// records stay intact. It reports whether the removal was soft.
func (s *Storage) RemoveGuest(ctx context.Context, id string, now time.Time) (soft bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := scanGuest(tx.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get guest: %w", err)
		}
		if g.Removed() {
			return ErrNotFound
		}

		checkedIn, err := checkInExists(ctx, tx, id)
		if err != nil {
			return err
		}

		var status models.EventStatus
		if err := tx.QueryRowContext(ctx, `SELECT status FROM events WHERE id = ?`, g.EventID).Scan(&status); err != nil {
			return fmt.Errorf("failed to get event status: %w", err)
		}

		if status == models.EventActive || g.HasResponded() || checkedIn {
			soft = true
			_, err = tx.ExecContext(ctx, `UPDATE guests SET removed_at = ? WHERE id = ?`, now.UTC(), id)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id)
		}
		if err != nil {
			return fmt.Errorf("failed to remove guest: %w", err)
		}
		return nil
	})
	return soft, err
}

// UpdateGuestRSVP applies mutate to the stored guest in one transaction.
// Writes resolve last-write-wins on responded_at: when the stored response is
// newer than the mutated one, nothing is written and the stored guest is returned.
func (s *Storage) UpdateGuestRSVP(ctx context.Context, id string, mutate GuestMutation) (*models.Guest, error) {
	var result *models.Guest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanGuest(tx.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get guest: %w", err)
		}
		if current.Removed() {
			return ErrNotFound
		}

		checkedIn, err := checkInExists(ctx, tx, id)
		if err != nil {
			return err
		}

		next, err := mutate(*current, checkedIn)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE guests
			SET rsvp_status = ?, responded_at = ?, companions = ?
			WHERE id = ? AND (responded_at IS NULL OR responded_at <= ?)`,
			next.RSVPStatus, utcPtr(next.RespondedAt), next.Companions,
			id, utcPtr(next.RespondedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to update rsvp: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			s.log.Debug().Str("guest_id", id).Msg("Discarded stale RSVP write")
			result = current
			return nil
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) queryGuests(ctx context.Context, query string, args ...any) ([]models.Guest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query guests: %w", err)
	}
	defer rows.Close()

	guests := make([]models.Guest, 0)
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		guests = append(guests, *g)
	}
	return guests, rows.Err()
}

func scanGuest(row rowScanner) (*models.Guest, error) {
	var (
		g                    models.Guest
		respondedAt, removed sql.NullTime
	)
	err := row.Scan(&g.ID, &g.EventID, &g.Name, &g.Phone, &g.Email, &g.RSVPStatus,
		&g.InvitedAt, &respondedAt, &g.Companions, &g.MaxCompanions, &removed)
	if err != nil {
		return nil, err
	}
	g.InvitedAt = g.InvitedAt.UTC()
	g.RespondedAt = nullTime(respondedAt)
	g.RemovedAt = nullTime(removed)
	return &g, nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
