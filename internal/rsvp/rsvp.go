// Package rsvp governs how a guest's response to an invitation may change.
//
// A guest starts as pending and may answer confirmed or declined. Answers are
// revocable (confirmed <-> declined, or a repeat of the same answer) until the
// guest is checked in; after that the response is frozen.
package rsvp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/storage"
)

// Submission is a guest's answer
type Submission struct {
	Response   models.RSVPStatus `json:"rsvpStatus"`
	Companions *int              `json:"actualCompanions,omitempty"`
}

// Store is the persistence the state machine needs
type Store interface {
	UpdateGuestRSVP(ctx context.Context, id string, mutate storage.GuestMutation) (*models.Guest, error)
}

type Machine struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewMachine creates a new RSVP state machine over store
func NewMachine(store Store, log zerolog.Logger) *Machine {
	return &Machine{
		store: store,
		log:   log.With().Str("component", "rsvp").Logger(),
		now:   time.Now,
	}
}

// CanTransition reports whether a guest in state from may answer to.
func CanTransition(from, to models.RSVPStatus, checkedIn bool) bool {
	if checkedIn {
		return false
	}
	if to != models.RSVPConfirmed && to != models.RSVPDeclined {
		return false
	}
	return from.Valid()
}

// Transition computes the guest's state after sub is applied at now.
// It never mutates storage.
func Transition(g models.Guest, checkedIn bool, sub Submission, now time.Time) (models.Guest, error) {
	if sub.Response != models.RSVPConfirmed && sub.Response != models.RSVPDeclined {
		return g, apperrors.Validation("rsvpStatus", "rsvpStatus must be confirmed or declined")
	}
	if checkedIn {
		return g, apperrors.InvalidTransition("guest %s is already checked in; the response can no longer change", g.ID)
	}
	if !CanTransition(g.RSVPStatus, sub.Response, checkedIn) {
		return g, apperrors.InvalidTransition("guest %s cannot move from %s to %s", g.ID, g.RSVPStatus, sub.Response)
	}

	companions := 0
	if sub.Companions != nil {
		companions = *sub.Companions
	}
	if companions < 0 {
		return g, apperrors.Validation("actualCompanions", "actualCompanions cannot be negative")
	}
	if companions > g.MaxCompanions {
		return g, apperrors.Validation("actualCompanions", "actualCompanions exceeds the maximum of %d", g.MaxCompanions)
	}
	if sub.Response == models.RSVPDeclined {
		companions = 0
	}

	at := now.UTC()
	g.RSVPStatus = sub.Response
	g.Companions = companions
	g.RespondedAt = &at
	return g, nil
}

// SubmitRSVP records the guest's answer. Event-level counts are derived on
// read and are not touched here.
func (m *Machine) SubmitRSVP(ctx context.Context, guestID string, sub Submission) (*models.Guest, error) {
	now := m.now()
	var previous models.RSVPStatus

	g, err := m.store.UpdateGuestRSVP(ctx, guestID, func(current models.Guest, checkedIn bool) (models.Guest, error) {
		previous = current.RSVPStatus
		return Transition(current, checkedIn, sub, now)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("guest %s not found", guestID)
	}
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to submit rsvp: %w", err)
	}

	m.log.Info().
		Str("guest_id", guestID).
		Str("from", string(previous)).
		Str("to", string(g.RSVPStatus)).
		Int("companions", g.Companions).
		Msg("RSVP recorded")
	return g, nil
}
