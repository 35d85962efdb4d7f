package handler

import (
	"net/http"

	"event-invitations/internal/apperrors"
)

type checkInRequest struct {
	// Payload is the scanned QR content: a guest id or a signed pass.
	Payload string `json:"payload"`
	GuestID string `json:"guestId"`
	// StaffID attributes the scan to another operator of the event.
	// Defaults to the session user.
	StaffID string `json:"staffId"`
}

// handleCheckIn handles POST /checkin
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		SendError(w, r, err)
		return
	}
	raw := req.Payload
	if raw == "" {
		raw = req.GuestID
	}

	scan, err := s.passes.Resolve(raw)
	if err != nil {
		SendError(w, r, err)
		return
	}

	g, err := s.registry.GetGuest(r.Context(), scan.GuestID)
	if err != nil {
		SendError(w, r, err)
		return
	}
	if scan.Signed && scan.EventID != g.EventID {
		SendError(w, r, apperrors.Validation("payload", "pass does not belong to this guest's event"))
		return
	}

	sess := currentSession(r)
	if err := s.requireOperator(r.Context(), g.EventID, sess.UserID); err != nil {
		SendError(w, r, err)
		return
	}

	staffID := sess.UserID
	if req.StaffID != "" && req.StaffID != sess.UserID {
		ok, err := s.events.CanOperate(r.Context(), g.EventID, req.StaffID)
		if err != nil {
			SendError(w, r, err)
			return
		}
		if !ok {
			SendError(w, r, apperrors.Validation("staffId", "staffId is not an organizer or staff member of this event"))
			return
		}
		staffID = req.StaffID
	}

	rec, err := s.ledger.CheckIn(r.Context(), g.ID, staffID)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, rec)
}
