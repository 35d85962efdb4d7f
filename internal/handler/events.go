package handler

import (
	"bytes"
	"context"
	"net/http"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/calendar"
	"event-invitations/internal/models"
)

type eventResponse struct {
	*models.Event
	Counts models.Counts `json:"counts"`
}

type assignStaffRequest struct {
	UserID string `json:"userId"`
}

// handleCreateEvent handles POST /events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.EventInput
	if err := decodeJSON(r, &in); err != nil {
		SendError(w, r, err)
		return
	}

	e, err := s.events.Create(r.Context(), currentSession(r).UserID, in)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, e)
}

// handleListEvents handles GET /events
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	events, err := s.events.List(r.Context(), sess.UserID, sess.Role)
	if err != nil {
		SendError(w, r, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	SendJSON(w, http.StatusOK, events)
}

// handleGetEvent handles GET /events/{eventId}
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	if err := s.requireOperator(r.Context(), eventID, currentSession(r).UserID); err != nil {
		SendError(w, r, err)
		return
	}

	e, err := s.events.Get(r.Context(), eventID)
	if err != nil {
		SendError(w, r, err)
		return
	}
	counts, err := s.counts.GetCounts(r.Context(), eventID)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, eventResponse{Event: e, Counts: counts})
}

type eventTransition func(ctx context.Context, id, userID string) (*models.Event, error)

// handleEventTransition handles POST /events/{eventId}/{publish,complete,cancel}
func (s *Server) handleEventTransition(apply eventTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := apply(r.Context(), r.PathValue("eventId"), currentSession(r).UserID)
		if err != nil {
			SendError(w, r, err)
			return
		}
		SendJSON(w, http.StatusOK, e)
	}
}

// handleAssignStaff handles POST /events/{eventId}/staff
func (s *Server) handleAssignStaff(w http.ResponseWriter, r *http.Request) {
	var req assignStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		SendError(w, r, err)
		return
	}
	if req.UserID == "" {
		SendError(w, r, apperrors.Validation("userId", "userId is required"))
		return
	}

	if err := s.events.AssignStaff(r.Context(), r.PathValue("eventId"), currentSession(r).UserID, req.UserID); err != nil {
		SendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCalendar handles GET /events/{eventId}/calendar.ics
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.Get(r.Context(), r.PathValue("eventId"))
	if err != nil {
		SendError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := calendar.Encode(&buf, *e, s.now()); err != nil {
		SendError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="event.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// requireOperator fails unless userID owns or staffs the event
func (s *Server) requireOperator(ctx context.Context, eventID, userID string) error {
	ok, err := s.events.CanOperate(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden("not an organizer or staff member of this event")
	}
	return nil
}
