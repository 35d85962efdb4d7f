package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"event-invitations/internal/models"
)

// InsertCheckIn records the guest's arrival. precondition runs against the
// stored guest inside the same transaction; its error aborts the insert.
// A second check-in for the guest fails with ErrAlreadyCheckedIn through the
// unique constraint on checkins.guest_id.
func (s *Storage) InsertCheckIn(ctx context.Context, guestID, staffID string, at time.Time, precondition func(models.Guest) error) (*models.CheckInRecord, error) {
	var rec *models.CheckInRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := scanGuest(tx.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = ?`, guestID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get guest: %w", err)
		}
		if g.Removed() {
			return ErrNotFound
		}

		if precondition != nil {
			if err := precondition(*g); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO checkins (guest_id, event_id, checked_in_at, staff_id)
			VALUES (?, ?, ?, ?)`,
			guestID, g.EventID, at.UTC(), staffID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyCheckedIn
			}
			return fmt.Errorf("failed to insert check-in: %w", err)
		}

		rec = &models.CheckInRecord{
			GuestID:     guestID,
			EventID:     g.EventID,
			CheckedInAt: at.UTC(),
			StaffID:     staffID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetCheckIn retrieves the check-in record of a guest
func (s *Storage) GetCheckIn(ctx context.Context, guestID string) (*models.CheckInRecord, error) {
	var rec models.CheckInRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT guest_id, event_id, checked_in_at, staff_id
		FROM checkins WHERE guest_id = ?`, guestID,
	).Scan(&rec.GuestID, &rec.EventID, &rec.CheckedInAt, &rec.StaffID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}
	rec.CheckedInAt = rec.CheckedInAt.UTC()
	return &rec, nil
}

// IsCheckedIn reports whether a check-in record exists for the guest
func (s *Storage) IsCheckedIn(ctx context.Context, guestID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM checkins WHERE guest_id = ?)`, guestID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check check-in: %w", err)
	}
	return exists, nil
}

func checkInExists(ctx context.Context, tx *sql.Tx, guestID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM checkins WHERE guest_id = ?)`, guestID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check check-in: %w", err)
	}
	return exists, nil
}
