package handler

import (
	"net/http"
	"strconv"
	"time"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/qr"
	"event-invitations/internal/rsvp"
)

type publicRSVPRequest struct {
	Name       string            `json:"name"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email"`
	Response   models.RSVPStatus `json:"rsvpStatus"`
	Companions *int              `json:"actualCompanions"`
}

type checkInStatusResponse struct {
	GuestID   string                `json:"guestId"`
	CheckedIn bool                  `json:"checkedIn"`
	Record    *models.CheckInRecord `json:"record,omitempty"`
}

// handleAddGuest handles POST /events/{eventId}/guests
func (s *Server) handleAddGuest(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	if _, err := s.events.Owned(r.Context(), eventID, currentSession(r).UserID); err != nil {
		SendError(w, r, err)
		return
	}

	var in models.GuestInput
	if err := decodeJSON(r, &in); err != nil {
		SendError(w, r, err)
		return
	}

	g, err := s.registry.AddGuest(r.Context(), eventID, in)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, g)
}

// handleListGuests handles GET /events/{eventId}/guests
func (s *Server) handleListGuests(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	if err := s.requireOperator(r.Context(), eventID, currentSession(r).UserID); err != nil {
		SendError(w, r, err)
		return
	}

	guests, err := s.registry.ListGuests(r.Context(), eventID)
	if err != nil {
		SendError(w, r, err)
		return
	}
	if guests == nil {
		guests = []models.Guest{}
	}
	SendJSON(w, http.StatusOK, guests)
}

// handleInvite handles POST /events/{eventId}/guests/{guestId}/invite
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	if s.inviter == nil {
		SendError(w, r, apperrors.Unavailable("invitation delivery is not enabled"))
		return
	}

	e, err := s.events.Owned(r.Context(), r.PathValue("eventId"), currentSession(r).UserID)
	if err != nil {
		SendError(w, r, err)
		return
	}
	if e.Status != models.EventActive {
		SendError(w, r, apperrors.Validation("eventId", "event must be active to send invitations"))
		return
	}

	g, err := s.registry.GetGuest(r.Context(), r.PathValue("guestId"))
	if err != nil {
		SendError(w, r, err)
		return
	}
	if g.EventID != e.ID {
		SendError(w, r, apperrors.NotFound("guest %s not found in event %s", g.ID, e.ID))
		return
	}

	if err := s.inviter.SendInvitation(r.Context(), *g, *e); err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusAccepted, g)
}

// handlePublicRSVP handles POST /events/{eventId}/rsvp
func (s *Server) handlePublicRSVP(w http.ResponseWriter, r *http.Request) {
	var req publicRSVPRequest
	if err := decodeJSON(r, &req); err != nil {
		SendError(w, r, err)
		return
	}
	sub := rsvp.Submission{Response: req.Response, Companions: req.Companions}

	// a new respondent whose answer would be rejected is never stored
	admit := func(g models.Guest) error {
		_, err := rsvp.Transition(g, false, sub, time.Now())
		return err
	}
	g, err := s.registry.RegisterRespondent(r.Context(), r.PathValue("eventId"), models.GuestInput{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	}, admit)
	if err != nil {
		SendError(w, r, err)
		return
	}

	g, err = s.rsvp.SubmitRSVP(r.Context(), g.ID, sub)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, g)
}

// handleRemoveGuest handles DELETE /guests/{guestId}
func (s *Server) handleRemoveGuest(w http.ResponseWriter, r *http.Request) {
	g, err := s.registry.GetGuest(r.Context(), r.PathValue("guestId"))
	if err != nil {
		SendError(w, r, err)
		return
	}
	if _, err := s.events.Owned(r.Context(), g.EventID, currentSession(r).UserID); err != nil {
		SendError(w, r, err)
		return
	}

	if err := s.registry.RemoveGuest(r.Context(), g.ID); err != nil {
		SendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmitRSVP handles PATCH /guests/{guestId}/rsvp
func (s *Server) handleSubmitRSVP(w http.ResponseWriter, r *http.Request) {
	var sub rsvp.Submission
	if err := decodeJSON(r, &sub); err != nil {
		SendError(w, r, err)
		return
	}

	g, err := s.rsvp.SubmitRSVP(r.Context(), r.PathValue("guestId"), sub)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, g)
}

// handleGuestQR handles GET /guests/{guestId}/qr.png
func (s *Server) handleGuestQR(w http.ResponseWriter, r *http.Request) {
	g, err := s.registry.GetGuest(r.Context(), r.PathValue("guestId"))
	if err != nil {
		SendError(w, r, err)
		return
	}

	size := qr.DefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			SendError(w, r, apperrors.Validation("size", "size must be between 64 and 1024"))
			return
		}
		size = n
	}

	payload := g.ID
	if signed, _ := strconv.ParseBool(r.URL.Query().Get("signed")); signed {
		if !s.passes.CanSign() {
			SendError(w, r, apperrors.Unavailable("signed passes are not enabled"))
			return
		}
		e, err := s.events.Get(r.Context(), g.EventID)
		if err != nil {
			SendError(w, r, err)
			return
		}
		if payload, err = s.passes.Issue(*g, *e); err != nil {
			SendError(w, r, err)
			return
		}
	}

	png, err := qr.PNG(payload, size)
	if err != nil {
		SendError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleCheckInStatus handles GET /guests/{guestId}/checkin
func (s *Server) handleCheckInStatus(w http.ResponseWriter, r *http.Request) {
	g, err := s.registry.GetGuest(r.Context(), r.PathValue("guestId"))
	if err != nil {
		SendError(w, r, err)
		return
	}
	if err := s.requireOperator(r.Context(), g.EventID, currentSession(r).UserID); err != nil {
		SendError(w, r, err)
		return
	}

	ok, err := s.ledger.IsCheckedIn(r.Context(), g.ID)
	if err != nil {
		SendError(w, r, err)
		return
	}
	resp := checkInStatusResponse{GuestID: g.ID, CheckedIn: ok}
	if ok {
		if resp.Record, err = s.ledger.Record(r.Context(), g.ID); err != nil {
			SendError(w, r, err)
			return
		}
	}
	SendJSON(w, http.StatusOK, resp)
}
