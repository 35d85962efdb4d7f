package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-invitations/internal/models"
)

var baseTime = time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	s, err := NewStorage(context.Background(), dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedEvent(t *testing.T, s *Storage) models.Event {
	t.Helper()
	ctx := context.Background()
	owner := models.User{ID: "owner-1", Name: "Anat", Phone: "972500000001", Role: models.RoleOrganizer, PasscodeHash: []byte("x"), CreatedAt: baseTime}
	require.NoError(t, s.AddUser(ctx, owner))

	e := models.Event{
		ID: "event-1", OwnerID: owner.ID, Title: "Wedding", Type: models.EventWedding,
		Location: "Ness Ziona", StartsAt: baseTime.Add(48 * time.Hour), GuestCount: 3,
		Status: models.EventActive, CreatedAt: baseTime,
	}
	require.NoError(t, s.AddEvent(ctx, e))
	return e
}

func seedGuest(t *testing.T, s *Storage, eventID, id string, invitedAt time.Time) models.Guest {
	t.Helper()
	g := models.Guest{
		ID: id, EventID: eventID, Name: "Guest " + id, Phone: "97250" + id,
		RSVPStatus: models.RSVPPending, InvitedAt: invitedAt, MaxCompanions: 2,
	}
	require.NoError(t, s.AddGuest(context.Background(), g))
	return g
}

func confirm(at time.Time) GuestMutation {
	return func(g models.Guest, _ bool) (models.Guest, error) {
		g.RSVPStatus = models.RSVPConfirmed
		g.RespondedAt = &at
		return g, nil
	}
}

func TestGuestsOrderedByInvitation(t *testing.T) {
	s := newTestStorage(t)
	e := seedEvent(t, s)

	seedGuest(t, s, e.ID, "c", baseTime.Add(2*time.Minute))
	seedGuest(t, s, e.ID, "a", baseTime)
	seedGuest(t, s, e.ID, "b", baseTime)

	guests, err := s.GetGuestsByEvent(context.Background(), e.ID)
	require.NoError(t, err)

	ids := make([]string, 0, len(guests))
	for _, g := range guests {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRemoveGuest(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	e := seedEvent(t, s)

	t.Run("soft delete while the event is active", func(t *testing.T) {
		seedGuest(t, s, e.ID, "pending", baseTime)

		soft, err := s.RemoveGuest(ctx, "pending", baseTime)
		require.NoError(t, err)
		assert.True(t, soft)

		g, err := s.GetGuest(ctx, "pending")
		require.NoError(t, err)
		assert.True(t, g.Removed())
	})

	t.Run("soft delete after response", func(t *testing.T) {
		seedGuest(t, s, e.ID, "answered", baseTime)
		_, err := s.UpdateGuestRSVP(ctx, "answered", confirm(baseTime.Add(time.Minute)))
		require.NoError(t, err)

		soft, err := s.RemoveGuest(ctx, "answered", baseTime.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, soft)

		g, err := s.GetGuest(ctx, "answered")
		require.NoError(t, err)
		assert.True(t, g.Removed())

		guests, err := s.GetGuestsByEvent(ctx, e.ID)
		require.NoError(t, err)
		assert.Empty(t, guests)

		_, err = s.RemoveGuest(ctx, "answered", baseTime.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("hard delete without response once the event is over", func(t *testing.T) {
		seedGuest(t, s, e.ID, "fresh", baseTime)
		require.NoError(t, s.UpdateEventStatus(ctx, e.ID, models.EventCompleted, models.EventActive))

		soft, err := s.RemoveGuest(ctx, "fresh", baseTime)
		require.NoError(t, err)
		assert.False(t, soft)

		_, err = s.GetGuest(ctx, "fresh")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateGuestRSVPLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	e := seedEvent(t, s)
	seedGuest(t, s, e.ID, "g1", baseTime)

	newer := baseTime.Add(10 * time.Minute)
	_, err := s.UpdateGuestRSVP(ctx, "g1", confirm(newer))
	require.NoError(t, err)

	older := baseTime.Add(5 * time.Minute)
	got, err := s.UpdateGuestRSVP(ctx, "g1", func(g models.Guest, _ bool) (models.Guest, error) {
		g.RSVPStatus = models.RSVPDeclined
		g.RespondedAt = &older
		return g, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.RSVPConfirmed, got.RSVPStatus)

	stored, err := s.GetGuest(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.RSVPConfirmed, stored.RSVPStatus)
	require.NotNil(t, stored.RespondedAt)
	assert.True(t, stored.RespondedAt.Equal(newer))
}

func TestUpdateGuestRSVPMutationError(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	e := seedEvent(t, s)
	seedGuest(t, s, e.ID, "g1", baseTime)

	boom := errors.New("rejected")
	_, err := s.UpdateGuestRSVP(ctx, "g1", func(models.Guest, bool) (models.Guest, error) {
		return models.Guest{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.UpdateGuestRSVP(ctx, "missing", confirm(baseTime))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertCheckIn(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	e := seedEvent(t, s)
	seedGuest(t, s, e.ID, "g1", baseTime)
	_, err := s.UpdateGuestRSVP(ctx, "g1", confirm(baseTime))
	require.NoError(t, err)

	rec, err := s.InsertCheckIn(ctx, "g1", "staff-1", baseTime.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, e.ID, rec.EventID)

	_, err = s.InsertCheckIn(ctx, "g1", "staff-2", baseTime.Add(2*time.Hour), nil)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	stored, err := s.GetCheckIn(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "staff-1", stored.StaffID)

	var seen bool
	_, err = s.UpdateGuestRSVP(ctx, "g1", func(g models.Guest, checkedIn bool) (models.Guest, error) {
		seen = checkedIn
		return g, nil
	})
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestInsertCheckInConcurrentScans(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	e := seedEvent(t, s)
	seedGuest(t, s, e.ID, "g1", baseTime)
	_, err := s.UpdateGuestRSVP(ctx, "g1", confirm(baseTime))
	require.NoError(t, err)

	const scans = 25
	var wg sync.WaitGroup
	var successes, dupes, unexpected int32
	wg.Add(scans)
	for i := 0; i < scans; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.InsertCheckIn(ctx, "g1", fmt.Sprintf("device-%d", i), baseTime.Add(time.Hour), nil)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, ErrAlreadyCheckedIn):
				atomic.AddInt32(&dupes, 1)
			default:
				t.Logf("unexpected error: %v", err)
				atomic.AddInt32(&unexpected, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
	assert.EqualValues(t, scans-1, dupes)
	assert.EqualValues(t, 0, unexpected)

	var rows int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkins WHERE guest_id = ?`, "g1").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestCountGuests(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	e := seedEvent(t, s)
	for _, id := range []string{"a", "b", "c", "d"} {
		seedGuest(t, s, e.ID, id, baseTime)
	}

	_, err := s.UpdateGuestRSVP(ctx, "a", func(g models.Guest, _ bool) (models.Guest, error) {
		at := baseTime
		g.RSVPStatus = models.RSVPConfirmed
		g.RespondedAt = &at
		g.Companions = 2
		return g, nil
	})
	require.NoError(t, err)
	_, err = s.UpdateGuestRSVP(ctx, "b", confirm(baseTime))
	require.NoError(t, err)
	_, err = s.UpdateGuestRSVP(ctx, "c", func(g models.Guest, _ bool) (models.Guest, error) {
		at := baseTime
		g.RSVPStatus = models.RSVPDeclined
		g.RespondedAt = &at
		return g, nil
	})
	require.NoError(t, err)
	_, err = s.InsertCheckIn(ctx, "a", "", baseTime, nil)
	require.NoError(t, err)

	_, err = s.RemoveGuest(ctx, "d", baseTime)
	require.NoError(t, err)

	counts, err := s.CountGuests(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{
		Invited: 3, Confirmed: 2, Pending: 0, Declined: 1, CheckedIn: 1, ExpectedAttendees: 4,
	}, counts)

	empty, err := s.CountGuests(ctx, "no-such-event")
	require.NoError(t, err)
	assert.Equal(t, models.Counts{}, empty)
}

func TestEventStatusAndSweep(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	e := seedEvent(t, s)

	err := s.UpdateEventStatus(ctx, e.ID, models.EventActive, models.EventDraft)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CompleteEventsStartedBefore(ctx, e.StartsAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = s.CompleteEventsStartedBefore(ctx, e.StartsAt.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventCompleted, got.Status)
	assert.True(t, got.StartsAt.Equal(e.StartsAt))
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	seedEvent(t, s)

	err := s.AddUser(ctx, models.User{ID: "dup", Name: "Dup", Phone: "972500000001", Role: models.RoleStaff, PasscodeHash: []byte("x"), CreatedAt: baseTime})
	assert.ErrorIs(t, err, ErrDuplicate)

	rec := models.SessionRecord{ID: "s1", UserID: "owner-1", Role: models.RoleOrganizer, IssuedAt: baseTime, ExpiresAt: baseTime.Add(time.Hour)}
	require.NoError(t, s.AddSession(ctx, rec))

	require.NoError(t, s.RevokeSession(ctx, "s1", baseTime.Add(time.Minute)))
	require.NoError(t, s.RevokeSession(ctx, "s1", baseTime.Add(2*time.Minute)))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.RevokedAt.Equal(baseTime.Add(time.Minute)))

	assert.ErrorIs(t, s.RevokeSession(ctx, "missing", baseTime), ErrNotFound)
}
