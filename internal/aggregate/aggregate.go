// Package aggregate derives event-level figures from the guest list and the
// check-in ledger. Nothing here is cached; every call reads storage.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/storage"
)

type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CountGuests(ctx context.Context, eventID string) (models.Counts, error)
}

type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// GetCounts recomputes the event's counts.
// confirmed+pending+declined always equals invited and checkedIn never exceeds confirmed.
func (a *Aggregator) GetCounts(ctx context.Context, eventID string) (models.Counts, error) {
	if _, err := a.store.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Counts{}, apperrors.NotFound("event %s not found", eventID)
		}
		return models.Counts{}, fmt.Errorf("failed to load event: %w", err)
	}

	c, err := a.store.CountGuests(ctx, eventID)
	if err != nil {
		return models.Counts{}, fmt.Errorf("failed to count guests: %w", err)
	}
	if c.Confirmed+c.Pending+c.Declined != c.Invited || c.CheckedIn > c.Confirmed {
		return models.Counts{}, fmt.Errorf("inconsistent counts for event %s: %+v", eventID, c)
	}
	return c, nil
}
