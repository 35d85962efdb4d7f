// Package registry keeps the guest list of each event.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/phone"
	"event-invitations/internal/storage"
	"event-invitations/internal/validation"
)

// Store is the persistence the registry needs
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	AddGuest(ctx context.Context, g models.Guest) error
	GetGuest(ctx context.Context, id string) (*models.Guest, error)
	GetGuestsByEvent(ctx context.Context, eventID string) ([]models.Guest, error)
	GetGuestByPhone(ctx context.Context, eventID, phone string) (*models.Guest, error)
	RemoveGuest(ctx context.Context, id string, now time.Time) (bool, error)
}

type Registry struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewRegistry creates a new guest registry
func NewRegistry(store Store, log zerolog.Logger) *Registry {
	return &Registry{
		store: store,
		log:   log.With().Str("component", "registry").Logger(),
		now:   time.Now,
	}
}

// AddGuest invites a new guest to an event. The guest starts as pending.
func (r *Registry) AddGuest(ctx context.Context, eventID string, in models.GuestInput) (*models.Guest, error) {
	guest, err := r.newGuest(ctx, eventID, in)
	if err != nil {
		return nil, err
	}
	return r.insert(ctx, guest)
}

// newGuest validates in and builds the pending guest without storing it
func (r *Registry) newGuest(ctx context.Context, eventID string, in models.GuestInput) (models.Guest, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = phone.Normalize(in.Phone)
	if err := validation.Struct(in); err != nil {
		return models.Guest{}, err
	}

	event, err := r.store.GetEvent(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Guest{}, apperrors.NotFound("event %s not found", eventID)
	}
	if err != nil {
		return models.Guest{}, fmt.Errorf("failed to load event: %w", err)
	}
	if event.Status == models.EventCancelled {
		return models.Guest{}, apperrors.Validation("eventId", "event %s is cancelled", eventID)
	}

	return models.Guest{
		ID:            uuid.NewString(),
		EventID:       eventID,
		Name:          in.Name,
		Phone:         in.Phone,
		Email:         in.Email,
		RSVPStatus:    models.RSVPPending,
		InvitedAt:     r.now().UTC(),
		MaxCompanions: in.MaxCompanions,
	}, nil
}

func (r *Registry) insert(ctx context.Context, guest models.Guest) (*models.Guest, error) {
	if err := r.store.AddGuest(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to add guest: %w", err)
	}

	r.log.Info().Str("event_id", guest.EventID).Str("guest_id", guest.ID).Msg("Guest added")
	return &guest, nil
}

// ListGuests returns the event's guests in invitation order
func (r *Registry) ListGuests(ctx context.Context, eventID string) ([]models.Guest, error) {
	if _, err := r.store.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("event %s not found", eventID)
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	guests, err := r.store.GetGuestsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	return guests, nil
}

// GetGuest retrieves a listed guest
func (r *Registry) GetGuest(ctx context.Context, guestID string) (*models.Guest, error) {
	g, err := r.store.GetGuest(ctx, guestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("guest %s not found", guestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guest: %w", err)
	}
	if g.Removed() {
		return nil, apperrors.NotFound("guest %s not found", guestID)
	}
	return g, nil
}

// RemoveGuest takes a guest off the list. Guests with a response or a
// check-in stay in storage as removed.
func (r *Registry) RemoveGuest(ctx context.Context, guestID string) error {
	soft, err := r.store.RemoveGuest(ctx, guestID, r.now())
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("guest %s not found", guestID)
	}
	if err != nil {
		return fmt.Errorf("failed to remove guest: %w", err)
	}

	r.log.Info().Str("guest_id", guestID).Bool("soft", soft).Msg("Guest removed")
	return nil
}

// RegisterRespondent resolves the guest behind a public RSVP link. A known
// phone number maps to the existing guest; otherwise the respondent is added.
// A new respondent is stored only if admit, when given, accepts it.
func (r *Registry) RegisterRespondent(ctx context.Context, eventID string, in models.GuestInput, admit func(models.Guest) error) (*models.Guest, error) {
	event, err := r.store.GetEvent(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("event %s not found", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if event.Status != models.EventActive {
		return nil, apperrors.Validation("eventId", "event %s is not accepting responses", eventID)
	}

	number := phone.Normalize(in.Phone)
	if number != "" {
		existing, err := r.store.GetGuestByPhone(ctx, eventID, number)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up respondent: %w", err)
		}
	}

	// public respondents cannot grant themselves companions
	in.MaxCompanions = 0
	guest, err := r.newGuest(ctx, eventID, in)
	if err != nil {
		return nil, err
	}
	if admit != nil {
		if err := admit(guest); err != nil {
			return nil, err
		}
	}
	return r.insert(ctx, guest)
}
