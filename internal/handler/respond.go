package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"event-invitations/internal/apperrors"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
}

// SendJSON writes data as a JSON response
func SendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// SendError maps err onto its HTTP status and error body. Internal errors are
// logged and replaced by a generic message.
func SendError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	body := errorBody{Kind: apperrors.KindInternal, Message: "internal server error"}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		body = errorBody{Kind: appErr.Kind, Message: appErr.Message, Field: appErr.Field}
		hlog.FromRequest(r).Debug().Err(err).Int("status", status).Msg("Request rejected")
	} else {
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
	}

	SendJSON(w, status, map[string]errorBody{"error": body})
}

// decodeJSON reads a single JSON object from the request body into v
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Validation("", "invalid JSON body: %v", err)
	}
	return nil
}
