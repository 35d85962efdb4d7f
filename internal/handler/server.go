// Package handler exposes the invitation services over HTTP and WhatsApp.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"event-invitations/internal/aggregate"
	"event-invitations/internal/apperrors"
	"event-invitations/internal/checkin"
	"event-invitations/internal/event"
	"event-invitations/internal/models"
	"event-invitations/internal/registry"
	"event-invitations/internal/rsvp"
	"event-invitations/internal/session"
)

// Inviter delivers an invitation to a guest
type Inviter interface {
	SendInvitation(ctx context.Context, g models.Guest, e models.Event) error
}

// Services are the dependencies of the HTTP server
type Services struct {
	Sessions *session.Manager
	Events   *event.Service
	Registry *registry.Registry
	RSVP     *rsvp.Machine
	Ledger   *checkin.Ledger
	Passes   *checkin.Passes
	Counts   *aggregate.Aggregator
	// Inviter is nil when no delivery channel is configured.
	Inviter Inviter
	Ping    func(ctx context.Context) error
}

type Server struct {
	sessions *session.Manager
	events   *event.Service
	registry *registry.Registry
	rsvp     *rsvp.Machine
	ledger   *checkin.Ledger
	passes   *checkin.Passes
	counts   *aggregate.Aggregator
	inviter  Inviter
	ping     func(ctx context.Context) error
	log      zerolog.Logger
	now      func() time.Time
}

func NewServer(svc Services, log zerolog.Logger) *Server {
	return &Server{
		sessions: svc.Sessions,
		events:   svc.Events,
		registry: svc.Registry,
		rsvp:     svc.RSVP,
		ledger:   svc.Ledger,
		passes:   svc.Passes,
		counts:   svc.Counts,
		inviter:  svc.Inviter,
		ping:     svc.Ping,
		log:      log.With().Str("component", "http").Logger(),
		now:      time.Now,
	}
}

// Routes returns the HTTP handler for the API
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /auth/signup", s.handleSignup)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("POST /auth/logout", s.authed(s.handleLogout))

	mux.Handle("POST /events", s.organizer(s.handleCreateEvent))
	mux.Handle("GET /events", s.authed(s.handleListEvents))
	mux.Handle("GET /events/{eventId}", s.authed(s.handleGetEvent))
	mux.Handle("POST /events/{eventId}/publish", s.organizer(s.handleEventTransition(s.events.Publish)))
	mux.Handle("POST /events/{eventId}/complete", s.organizer(s.handleEventTransition(s.events.Complete)))
	mux.Handle("POST /events/{eventId}/cancel", s.organizer(s.handleEventTransition(s.events.Cancel)))
	mux.Handle("POST /events/{eventId}/staff", s.organizer(s.handleAssignStaff))
	mux.HandleFunc("GET /events/{eventId}/calendar.ics", s.handleCalendar)

	mux.Handle("POST /events/{eventId}/guests", s.organizer(s.handleAddGuest))
	mux.Handle("GET /events/{eventId}/guests", s.authed(s.handleListGuests))
	mux.Handle("POST /events/{eventId}/guests/{guestId}/invite", s.organizer(s.handleInvite))
	mux.HandleFunc("POST /events/{eventId}/rsvp", s.handlePublicRSVP)

	mux.Handle("DELETE /guests/{guestId}", s.organizer(s.handleRemoveGuest))
	mux.HandleFunc("PATCH /guests/{guestId}/rsvp", s.handleSubmitRSVP)
	mux.HandleFunc("GET /guests/{guestId}/qr.png", s.handleGuestQR)
	mux.Handle("GET /guests/{guestId}/checkin", s.authed(s.handleCheckInStatus))

	mux.Handle("POST /checkin", s.authed(s.handleCheckIn))

	return accessLog(s.log, recoverer(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("Health check failed")
			SendError(w, r, apperrors.Unavailable("storage is unavailable"))
			return
		}
	}
	SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
