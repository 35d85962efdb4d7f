package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/phone"
	"event-invitations/internal/rsvp"
	"event-invitations/internal/whatsapp"
)

// Messenger delivers text messages to a phone number
type Messenger interface {
	SendText(ctx context.Context, phoneNumber, text string) error
}

// InvitationStore finds the invitations a phone number may answer
type InvitationStore interface {
	GetInvitationsByPhone(ctx context.Context, phone string) ([]models.Guest, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// Responder records RSVP answers
type Responder interface {
	SubmitRSVP(ctx context.Context, guestID string, sub rsvp.Submission) (*models.Guest, error)
}

// RSVPHandler turns WhatsApp replies into RSVP submissions and sends invitations
type RSVPHandler struct {
	messenger Messenger
	store     InvitationStore
	responder Responder
	location  *time.Location
	log       zerolog.Logger
}

// NewRSVPHandler creates a new RSVP handler. Event times in messages are shown in loc.
func NewRSVPHandler(messenger Messenger, store InvitationStore, responder Responder, loc *time.Location, log zerolog.Logger) *RSVPHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &RSVPHandler{
		messenger: messenger,
		store:     store,
		responder: responder,
		location:  loc,
		log:       log.With().Str("component", "rsvp-replies").Logger(),
	}
}

var (
	acceptWords  = []string{"yes", "yep", "yeah", "accept", "attending", "coming", "כן", "מגיע", "מגיעה", "מגיעים", "✅"}
	declineWords = []string{"no", "nope", "decline", "declining", "לא", "❌"}

	// checked before the single words so that "not coming" is a decline
	declinePhrases = []string{"not coming", "can't come", "cannot come", "won't come", "can't make it", "לא מגיע", "לא מגיעה", "לא מגיעים", "לא נגיע"}
)

// ParseReply reads an RSVP answer from free text. A number in an accepting
// reply is taken as the count of companions.
func ParseReply(text string) (rsvp.Submission, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return rsvp.Submission{}, false
	}

	for _, p := range declinePhrases {
		if strings.Contains(text, p) {
			return rsvp.Submission{Response: models.RSVPDeclined}, true
		}
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
	})

	var (
		accept, decline bool
		companions      *int
	)
	for _, w := range words {
		switch {
		case matchesAny(w, declineWords...):
			decline = true
		case matchesAny(w, acceptWords...):
			accept = true
		default:
			if n, err := strconv.Atoi(w); err == nil && companions == nil {
				companions = &n
			}
		}
	}

	switch {
	case decline:
		return rsvp.Submission{Response: models.RSVPDeclined}, true
	case accept:
		return rsvp.Submission{Response: models.RSVPConfirmed, Companions: companions}, true
	}
	return rsvp.Submission{}, false
}

// HandleMessage processes an incoming WhatsApp message. Messages from numbers
// without an invitation to an active event, and messages that are not an
// answer, are ignored.
func (h *RSVPHandler) HandleMessage(ctx context.Context, msg whatsapp.Incoming) error {
	sub, ok := ParseReply(msg.Text)
	if !ok {
		return nil
	}

	number := phone.Normalize(msg.Phone)
	invitations, err := h.store.GetInvitationsByPhone(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to look up invitations: %w", err)
	}
	if len(invitations) == 0 {
		h.log.Debug().Str("phone", number).Msg("Reply from unknown number ignored")
		return nil
	}
	invitation := invitations[0]

	event, err := h.store.GetEvent(ctx, invitation.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	guest, err := h.responder.SubmitRSVP(ctx, invitation.ID, sub)
	var reply string
	switch {
	case err == nil:
		reply = h.confirmation(*guest, *event)
	case errors.Is(err, apperrors.ErrInvalidTransition):
		reply = fmt.Sprintf("You are already checked in at %s, so your answer can no longer be changed. Enjoy the event!", event.Title)
	case errors.Is(err, apperrors.ErrValidation) && sub.Companions != nil:
		reply = fmt.Sprintf("Your invitation to %s allows up to %d companions. Please reply YES with a number up to %d.",
			event.Title, invitation.MaxCompanions, invitation.MaxCompanions)
	default:
		return fmt.Errorf("failed to submit rsvp: %w", err)
	}

	if err := h.messenger.SendText(ctx, number, reply); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func (h *RSVPHandler) confirmation(g models.Guest, e models.Event) string {
	if g.RSVPStatus == models.RSVPDeclined {
		return fmt.Sprintf("Thank you for letting us know. We're sorry you won't be able to join us at %s.", e.Title)
	}
	msg := fmt.Sprintf("Wonderful! Your attendance at %s on %s is confirmed.",
		e.Title, e.StartsAt.In(h.location).Format("02.01.2006 15:04"))
	if g.Companions > 0 {
		msg += fmt.Sprintf(" We've saved %d seats for your companions.", g.Companions)
	}
	return msg + " See you there!"
}

// SendInvitation sends the event invitation to the guest
func (h *RSVPHandler) SendInvitation(ctx context.Context, g models.Guest, e models.Event) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\nDear %s,\n\nYou are invited to %s.\n\n", e.Title, g.Name, e.Title)
	fmt.Fprintf(&b, "Date: %s\n", e.StartsAt.In(h.location).Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Location: %s\n", e.Location)
	if e.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", e.Description)
	}
	b.WriteString("\nReply with:\n✅ *YES* to accept\n❌ *NO* to decline")
	if g.MaxCompanions > 0 {
		fmt.Fprintf(&b, "\nYou may bring up to %d companions: reply YES and the number, e.g. \"YES 2\".", g.MaxCompanions)
	}

	if err := h.messenger.SendText(ctx, g.Phone, b.String()); err != nil {
		return fmt.Errorf("failed to send invitation: %w", err)
	}
	h.log.Info().Str("guest_id", g.ID).Str("event_id", e.ID).Msg("Invitation sent")
	return nil
}

// matchesAny reports whether word equals any of the keywords
func matchesAny(word string, keywords ...string) bool {
	for _, keyword := range keywords {
		if word == keyword {
			return true
		}
	}
	return false
}
