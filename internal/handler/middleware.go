package handler

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/session"
)

// accessLog attaches log to every request and writes one line per response
func accessLog(log zerolog.Logger, next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("http request")
	})(next)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	return hlog.NewHandler(log)(h)
}

// recoverer turns a panic into a 500 response
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				hlog.FromRequest(r).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered")
				SendJSON(w, http.StatusInternalServerError, map[string]errorBody{
					"error": {Kind: apperrors.KindInternal, Message: "internal server error"},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authed requires a valid bearer session and carries it in the request context
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			SendError(w, r, apperrors.Unauthorized("missing bearer token"))
			return
		}

		sess, err := s.sessions.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			SendError(w, r, err)
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", sess.UserID)
		})
		next(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// organizer restricts next to organizer sessions
func (s *Server) organizer(next http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		if sess.Role != models.RoleOrganizer {
			SendError(w, r, apperrors.Forbidden("organizer role required"))
			return
		}
		next(w, r)
	})
}

// currentSession returns the session attached by authed
func currentSession(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}
