package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-invitations/internal/models"
	"event-invitations/internal/registry"
	"event-invitations/internal/rsvp"
	"event-invitations/internal/storage"
	"event-invitations/internal/storage/storagetest"
	"event-invitations/internal/whatsapp"
)

type sentMessage struct {
	phone, text string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeMessenger) SendText(_ context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{phone, text})
	return nil
}

func (f *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func TestParseReply(t *testing.T) {
	two := 2
	tests := []struct {
		text string
		want rsvp.Submission
		ok   bool
	}{
		{"Yes!", rsvp.Submission{Response: models.RSVPConfirmed}, true},
		{"yes, 2", rsvp.Submission{Response: models.RSVPConfirmed, Companions: &two}, true},
		{"✅", rsvp.Submission{Response: models.RSVPConfirmed}, true},
		{"כן מגיעים", rsvp.Submission{Response: models.RSVPConfirmed}, true},
		{"No", rsvp.Submission{Response: models.RSVPDeclined}, true},
		{"Sorry, not coming", rsvp.Submission{Response: models.RSVPDeclined}, true},
		{"לא מגיע", rsvp.Submission{Response: models.RSVPDeclined}, true},
		{"I know the place", rsvp.Submission{}, false},
		{"what time?", rsvp.Submission{}, false},
		{"   ", rsvp.Submission{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseReply(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestReplies(t *testing.T) (*RSVPHandler, *fakeMessenger, *storage.Storage, *registry.Registry, models.Event) {
	t.Helper()
	s := storagetest.New(t)
	owner := storagetest.User(t, s, models.RoleOrganizer)
	event := storagetest.Event(t, s, owner.ID, models.EventActive)

	messenger := &fakeMessenger{}
	h := NewRSVPHandler(messenger, s, rsvp.NewMachine(s, zerolog.Nop()), time.UTC, zerolog.Nop())
	return h, messenger, s, registry.NewRegistry(s, zerolog.Nop()), event
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	h, messenger, s, reg, event := newTestReplies(t)

	g, err := reg.AddGuest(ctx, event.ID, models.GuestInput{Name: "Dana", Phone: "0501234567", MaxCompanions: 1})
	require.NoError(t, err)

	t.Run("confirm with companion", func(t *testing.T) {
		require.NoError(t, h.HandleMessage(ctx, whatsapp.Incoming{Phone: "972501234567", Text: "Yes 1"}))

		stored, err := s.GetGuest(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RSVPConfirmed, stored.RSVPStatus)
		assert.Equal(t, 1, stored.Companions)

		msg := messenger.last(t)
		assert.Equal(t, "972501234567", msg.phone)
		assert.Contains(t, msg.text, "confirmed")
	})

	t.Run("too many companions", func(t *testing.T) {
		require.NoError(t, h.HandleMessage(ctx, whatsapp.Incoming{Phone: "972501234567", Text: "yes 4"}))
		assert.Contains(t, messenger.last(t).text, "up to 1 companions")

		stored, err := s.GetGuest(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Companions)
	})

	t.Run("after check-in", func(t *testing.T) {
		_, err := s.InsertCheckIn(ctx, g.ID, "", storagetest.Now, nil)
		require.NoError(t, err)

		require.NoError(t, h.HandleMessage(ctx, whatsapp.Incoming{Phone: "972501234567", Text: "no"}))
		assert.Contains(t, messenger.last(t).text, "already checked in")

		stored, err := s.GetGuest(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RSVPConfirmed, stored.RSVPStatus)
	})

	t.Run("ignored messages", func(t *testing.T) {
		before := len(messenger.sent)

		require.NoError(t, h.HandleMessage(ctx, whatsapp.Incoming{Phone: "972509999999", Text: "yes"}))
		require.NoError(t, h.HandleMessage(ctx, whatsapp.Incoming{Phone: "972501234567", Text: "where is the hall?"}))

		assert.Len(t, messenger.sent, before)
	})
}

func TestSendInvitation(t *testing.T) {
	ctx := context.Background()
	h, messenger, _, reg, event := newTestReplies(t)

	g, err := reg.AddGuest(ctx, event.ID, models.GuestInput{Name: "Dana", Phone: "0501234567", MaxCompanions: 2})
	require.NoError(t, err)

	require.NoError(t, h.SendInvitation(ctx, *g, event))

	msg := messenger.last(t)
	assert.Equal(t, "972501234567", msg.phone)
	assert.Contains(t, msg.text, "Dear Dana")
	assert.Contains(t, msg.text, event.Location)
	assert.Contains(t, msg.text, event.StartsAt.Format("02.01.2006 15:04"))
	assert.Contains(t, msg.text, "up to 2 companions")
}
