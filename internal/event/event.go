// Package event manages the lifecycle of invitations: draft, active,
// completed and cancelled.
package event

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
	"event-invitations/internal/storage"
	"event-invitations/internal/validation"
)

type Store interface {
	AddEvent(ctx context.Context, e models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetEventsByOwner(ctx context.Context, ownerID string) ([]models.Event, error)
	GetEventsForStaff(ctx context.Context, userID string) ([]models.Event, error)
	UpdateEventStatus(ctx context.Context, id string, next models.EventStatus, from ...models.EventStatus) error
	CompleteEventsStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	AddEventStaff(ctx context.Context, eventID, userID string) error
	IsEventStaff(ctx context.Context, eventID, userID string) (bool, error)
}

// Service applies lifecycle rules to events
type Service struct {
	store    Store
	log      zerolog.Logger
	location *time.Location
	now      func() time.Time
}

// NewService creates an event service. Dates are read in loc.
func NewService(store Store, loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:    store,
		log:      log.With().Str("component", "event").Logger(),
		location: loc,
		now:      time.Now,
	}
}

// transitions lists, for each target status, the statuses it may be reached from
var transitions = map[models.EventStatus][]models.EventStatus{
	models.EventActive:    {models.EventDraft},
	models.EventCompleted: {models.EventActive},
	models.EventCancelled: {models.EventDraft, models.EventActive, models.EventCompleted},
}

// Create stores a new draft event owned by ownerID
func (s *Service) Create(ctx context.Context, ownerID string, in models.EventInput) (*models.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	startsAt, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.Time, s.location)
	if err != nil {
		return nil, apperrors.Validation("date", "date and time do not form a valid moment")
	}

	e := models.Event{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Type:        in.Type,
		Description: strings.TrimSpace(in.Description),
		Location:    in.Location,
		StartsAt:    startsAt.UTC(),
		GuestCount:  in.GuestCount,
		Status:      models.EventDraft,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.AddEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.log.Info().Str("event_id", e.ID).Str("owner_id", ownerID).Msg("Event created")
	return &e, nil
}

// Get retrieves an event
func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("event %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return e, nil
}

// List returns the events the user owns or works at
func (s *Service) List(ctx context.Context, userID string, role models.Role) ([]models.Event, error) {
	var (
		events []models.Event
		err    error
	)
	if role == models.RoleStaff {
		events, err = s.store.GetEventsForStaff(ctx, userID)
	} else {
		events, err = s.store.GetEventsByOwner(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Publish opens a draft event for responses
func (s *Service) Publish(ctx context.Context, id, userID string) (*models.Event, error) {
	return s.transition(ctx, id, userID, models.EventActive)
}

// Complete closes an active event
func (s *Service) Complete(ctx context.Context, id, userID string) (*models.Event, error) {
	return s.transition(ctx, id, userID, models.EventCompleted)
}

// Cancel cancels the event from any state other than cancelled
func (s *Service) Cancel(ctx context.Context, id, userID string) (*models.Event, error) {
	return s.transition(ctx, id, userID, models.EventCancelled)
}

func (s *Service) transition(ctx context.Context, id, userID string, next models.EventStatus) (*models.Event, error) {
	e, err := s.Owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	from := transitions[next]
	if !allowed(e.Status, from) {
		return nil, apperrors.InvalidTransition("event %s cannot move from %s to %s", id, e.Status, next)
	}

	err = s.store.UpdateEventStatus(ctx, id, next, from...)
	if errors.Is(err, storage.ErrNotFound) {
		// status changed between the read and the write
		return nil, apperrors.InvalidTransition("event %s cannot move to %s", id, next)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	s.log.Info().Str("event_id", id).Str("from", string(e.Status)).Str("to", string(next)).Msg("Event status changed")
	e.Status = next
	return e, nil
}

// CompleteElapsed completes every active event that started more than after ago
func (s *Service) CompleteElapsed(ctx context.Context, after time.Duration) (int64, error) {
	n, err := s.store.CompleteEventsStartedBefore(ctx, s.now().Add(-after))
	if err != nil {
		return 0, fmt.Errorf("failed to complete elapsed events: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("Completed elapsed events")
	}
	return n, nil
}

// Owned returns the event if userID owns it
func (s *Service) Owned(ctx context.Context, id, userID string) (*models.Event, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != userID {
		return nil, apperrors.Forbidden("only the event owner can do this")
	}
	return e, nil
}

// AssignStaff lets a staff user scan guests of the event
func (s *Service) AssignStaff(ctx context.Context, eventID, ownerID, staffID string) error {
	if _, err := s.Owned(ctx, eventID, ownerID); err != nil {
		return err
	}

	u, err := s.store.GetUser(ctx, staffID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("user %s not found", staffID)
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if u.Role != models.RoleStaff {
		return apperrors.Validation("userId", "user %s is not staff", staffID)
	}

	if err := s.store.AddEventStaff(ctx, eventID, staffID); err != nil {
		return fmt.Errorf("failed to assign staff: %w", err)
	}
	s.log.Info().Str("event_id", eventID).Str("staff_id", staffID).Msg("Staff assigned")
	return nil
}

// CanOperate reports whether the user is the owner or assigned staff of the event
func (s *Service) CanOperate(ctx context.Context, eventID, userID string) (bool, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return false, err
	}
	if e.OwnerID == userID {
		return true, nil
	}
	ok, err := s.store.IsEventStaff(ctx, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check staff: %w", err)
	}
	return ok, nil
}

// RunCompletionSweeper completes elapsed events every interval until ctx is done
func (s *Service) RunCompletionSweeper(ctx context.Context, interval, after time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Completion sweeper stopping")
			return
		case <-ticker.C:
			if _, err := s.CompleteElapsed(ctx, after); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Msg("Completion sweep failed")
			}
		}
	}
}

func allowed(status models.EventStatus, from []models.EventStatus) bool {
	for _, f := range from {
		if f == status {
			return true
		}
	}
	return false
}
