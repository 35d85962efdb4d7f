package storage

import (
	"context"
	"fmt"

	"event-invitations/internal/models"
)

// CountGuests derives the RSVP and arrival counts of an event from the guest
// list and the check-in ledger in a single read
func (s *Storage) CountGuests(ctx context.Context, eventID string) (models.Counts, error) {
	var c models.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN g.rsvp_status = 'confirmed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN g.rsvp_status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN g.rsvp_status = 'declined' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN g.rsvp_status = 'confirmed' AND c.guest_id IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN g.rsvp_status = 'confirmed' THEN 1 + g.companions ELSE 0 END), 0)
		FROM guests g
		LEFT JOIN checkins c ON c.guest_id = g.id
		WHERE g.event_id = ? AND g.removed_at IS NULL`, eventID,
	).Scan(&c.Invited, &c.Confirmed, &c.Pending, &c.Declined, &c.CheckedIn, &c.ExpectedAttendees)
	if err != nil {
		return models.Counts{}, fmt.Errorf("failed to count guests: %w", err)
	}
	return c, nil
}
