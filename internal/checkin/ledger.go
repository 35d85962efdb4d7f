// Package checkin records guest arrivals.
//
// The ledger trusts its caller to have authorized the scanning staff member
// against the event; it only enforces that the guest confirmed and that each
// guest is checked in at most once.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/storage"
)

// Store is the persistence the ledger needs
type Store interface {
	InsertCheckIn(ctx context.Context, guestID, staffID string, at time.Time, precondition func(models.Guest) error) (*models.CheckInRecord, error)
	IsCheckedIn(ctx context.Context, guestID string) (bool, error)
	GetCheckIn(ctx context.Context, guestID string) (*models.CheckInRecord, error)
}

type Ledger struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewLedger creates a new check-in ledger
func NewLedger(store Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("component", "checkin").Logger(),
		now:   time.Now,
	}
}

// CheckIn records the first successful scan of a confirmed guest. A repeated
// scan fails with an already-checked-in error rather than succeeding silently.
func (l *Ledger) CheckIn(ctx context.Context, guestID, staffID string) (*models.CheckInRecord, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return nil, apperrors.Validation("guestId", "guestId is required")
	}

	rec, err := l.store.InsertCheckIn(ctx, guestID, strings.TrimSpace(staffID), l.now(), func(g models.Guest) error {
		if g.RSVPStatus != models.RSVPConfirmed {
			return apperrors.NotConfirmed(g.ID)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperrors.NotFound("guest %s not found", guestID)
	case errors.Is(err, storage.ErrAlreadyCheckedIn):
		l.log.Warn().Str("guest_id", guestID).Str("staff_id", staffID).Msg("Duplicate scan rejected")
		return nil, apperrors.AlreadyCheckedIn(guestID)
	case errors.Is(err, apperrors.ErrNotConfirmed):
		return nil, err
	default:
		return nil, fmt.Errorf("failed to check in guest: %w", err)
	}

	l.log.Info().
		Str("guest_id", rec.GuestID).
		Str("event_id", rec.EventID).
		Str("staff_id", rec.StaffID).
		Msg("Guest checked in")
	return rec, nil
}

// IsCheckedIn reports whether the guest has arrived
func (l *Ledger) IsCheckedIn(ctx context.Context, guestID string) (bool, error) {
	ok, err := l.store.IsCheckedIn(ctx, guestID)
	if err != nil {
		return false, fmt.Errorf("failed to look up check-in: %w", err)
	}
	return ok, nil
}

// Record returns the check-in record of the guest
func (l *Ledger) Record(ctx context.Context, guestID string) (*models.CheckInRecord, error) {
	rec, err := l.store.GetCheckIn(ctx, guestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("guest %s is not checked in", guestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up check-in: %w", err)
	}
	return rec, nil
}
