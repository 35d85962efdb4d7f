package rsvp

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/storage"
	"event-invitations/internal/storage/storagetest"
)

func intPtr(v int) *int { return &v }

func TestCanTransition(t *testing.T) {
	statuses := []models.RSVPStatus{models.RSVPPending, models.RSVPConfirmed, models.RSVPDeclined}
	for _, from := range statuses {
		for _, to := range statuses {
			want := to != models.RSVPPending
			assert.Equal(t, want, CanTransition(from, to, false), "%s -> %s", from, to)
			assert.False(t, CanTransition(from, to, true), "%s -> %s after check-in", from, to)
		}
	}
}

func TestTransition(t *testing.T) {
	now := storagetest.Now
	pending := models.Guest{ID: "g1", RSVPStatus: models.RSVPPending, MaxCompanions: 2}

	t.Run("confirm with companions", func(t *testing.T) {
		g, err := Transition(pending, false, Submission{Response: models.RSVPConfirmed, Companions: intPtr(2)}, now)
		require.NoError(t, err)
		assert.Equal(t, models.RSVPConfirmed, g.RSVPStatus)
		assert.Equal(t, 2, g.Companions)
		require.NotNil(t, g.RespondedAt)
		assert.True(t, g.RespondedAt.Equal(now))
	})

	t.Run("decline drops companions", func(t *testing.T) {
		confirmed := pending
		confirmed.RSVPStatus = models.RSVPConfirmed
		confirmed.Companions = 2

		g, err := Transition(confirmed, false, Submission{Response: models.RSVPDeclined}, now)
		require.NoError(t, err)
		assert.Equal(t, models.RSVPDeclined, g.RSVPStatus)
		assert.Equal(t, 0, g.Companions)
	})

	t.Run("too many companions", func(t *testing.T) {
		g, err := Transition(pending, false, Submission{Response: models.RSVPConfirmed, Companions: intPtr(3)}, now)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Equal(t, pending, g)
	})

	t.Run("negative companions", func(t *testing.T) {
		_, err := Transition(pending, false, Submission{Response: models.RSVPConfirmed, Companions: intPtr(-1)}, now)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("pending is not an answer", func(t *testing.T) {
		_, err := Transition(pending, false, Submission{Response: models.RSVPPending}, now)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("frozen after check-in", func(t *testing.T) {
		confirmed := pending
		confirmed.RSVPStatus = models.RSVPConfirmed

		_, err := Transition(confirmed, true, Submission{Response: models.RSVPConfirmed}, now)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		_, err = Transition(confirmed, true, Submission{Response: models.RSVPDeclined}, now)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})
}

func newTestMachine(t *testing.T) (*Machine, *storage.Storage, models.Guest) {
	t.Helper()
	s := storagetest.New(t)
	owner := storagetest.User(t, s, models.RoleOrganizer)
	event := storagetest.Event(t, s, owner.ID, models.EventActive)

	g := models.Guest{
		ID: uuid.NewString(), EventID: event.ID, Name: "Dana", Phone: "972501234567",
		RSVPStatus: models.RSVPPending, InvitedAt: storagetest.Now, MaxCompanions: 1,
	}
	require.NoError(t, s.AddGuest(context.Background(), g))

	m := NewMachine(s, zerolog.Nop())
	clock := storagetest.Now
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return m, s, g
}

func TestSubmitRSVPRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, s, g := newTestMachine(t)

	confirmed, err := m.SubmitRSVP(ctx, g.ID, Submission{Response: models.RSVPConfirmed, Companions: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, models.RSVPConfirmed, confirmed.RSVPStatus)

	declined, err := m.SubmitRSVP(ctx, g.ID, Submission{Response: models.RSVPDeclined})
	require.NoError(t, err)
	assert.Equal(t, models.RSVPDeclined, declined.RSVPStatus)
	assert.True(t, declined.RespondedAt.After(*confirmed.RespondedAt))

	stored, err := s.GetGuest(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPDeclined, stored.RSVPStatus)
	assert.Equal(t, 0, stored.Companions)
}

func TestSubmitRSVPAfterCheckIn(t *testing.T) {
	ctx := context.Background()
	m, s, g := newTestMachine(t)

	_, err := m.SubmitRSVP(ctx, g.ID, Submission{Response: models.RSVPConfirmed})
	require.NoError(t, err)
	_, err = s.InsertCheckIn(ctx, g.ID, "", storagetest.Now.Add(time.Hour), nil)
	require.NoError(t, err)

	for _, resp := range []models.RSVPStatus{models.RSVPConfirmed, models.RSVPDeclined} {
		_, err = m.SubmitRSVP(ctx, g.ID, Submission{Response: resp})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, resp)
	}

	stored, err := s.GetGuest(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPConfirmed, stored.RSVPStatus)
}

func TestSubmitRSVPCompanionLimitLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	m, s, g := newTestMachine(t)

	_, err := m.SubmitRSVP(ctx, g.ID, Submission{Response: models.RSVPConfirmed, Companions: intPtr(2)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	stored, err := s.GetGuest(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPPending, stored.RSVPStatus)
	assert.Nil(t, stored.RespondedAt)
}

func TestSubmitRSVPUnknownGuest(t *testing.T) {
	m, _, _ := newTestMachine(t)

	_, err := m.SubmitRSVP(context.Background(), "missing", Submission{Response: models.RSVPConfirmed})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
