// Package session issues and checks login sessions.
//
// A Session is created at login, carried explicitly through the request
// context and invalidated at logout or expiry. There is no process-wide
// "current user".
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
	"event-invitations/internal/phone"
	"event-invitations/internal/storage"
	"event-invitations/internal/validation"
)

const issuer = "event-invitations"

// Session is an authenticated caller
type Session struct {
	ID        string      `json:"-"`
	UserID    string      `json:"userId"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type Store interface {
	AddUser(ctx context.Context, u models.User) error
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	AddSession(ctx context.Context, rec models.SessionRecord) error
	GetSession(ctx context.Context, id string) (*models.SessionRecord, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
}

type Config struct {
	Secret []byte
	TTL    time.Duration
}

type Manager struct {
	store Store
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

func NewManager(store Store, cfg Config, log zerolog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "session").Logger(),
		now:   time.Now,
	}
}

// SignupInput registers an organizer or staff user
type SignupInput struct {
	Name     string      `json:"name" validate:"required"`
	Phone    string      `json:"phone" validate:"required"`
	Passcode string      `json:"passcode" validate:"required,min=6,max=72"`
	Role     models.Role `json:"role" validate:"required,oneof=organizer staff"`
}

// Signup creates a user account
func (m *Manager) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = phone.Normalize(in.Phone)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Passcode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash passcode: %w", err)
	}

	u := models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Phone:        in.Phone,
		Role:         in.Role,
		PasscodeHash: hash,
		CreatedAt:    m.now().UTC(),
	}
	if err := m.store.AddUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.Validation("phone", "phone is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	m.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("User signed up")
	return &u, nil
}

type claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

// Login verifies the passcode and opens a new session. It returns the bearer token.
func (m *Manager) Login(ctx context.Context, phoneNumber, passcode string) (string, *Session, error) {
	u, err := m.store.GetUserByPhone(ctx, phone.Normalize(phoneNumber))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, apperrors.Unauthorized("invalid phone or passcode")
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword(u.PasscodeHash, []byte(passcode)) != nil {
		return "", nil, apperrors.Unauthorized("invalid phone or passcode")
	}

	now := m.now().UTC()
	rec := models.SessionRecord{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Role:      u.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}
	if err := m.store.AddSession(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rec.ID,
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(rec.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
		Role: u.Role,
	}).SignedString(m.cfg.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}

	m.log.Info().Str("user_id", u.ID).Str("session_id", rec.ID).Msg("Session opened")
	return token, &Session{ID: rec.ID, UserID: u.ID, Role: u.Role, ExpiresAt: rec.ExpiresAt}, nil
}

// Authenticate resolves a bearer token into a live session
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Unauthorized("session has expired")
		}
		return nil, apperrors.Unauthorized("invalid session token")
	}

	rec, err := m.store.GetSession(ctx, c.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.Unauthorized("unknown session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if rec.RevokedAt != nil {
		return nil, apperrors.Unauthorized("session has ended")
	}
	if rec.UserID != c.Subject {
		return nil, apperrors.Unauthorized("invalid session token")
	}

	return &Session{ID: rec.ID, UserID: rec.UserID, Role: rec.Role, ExpiresAt: rec.ExpiresAt}, nil
}

// Logout invalidates the session
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if err := m.store.RevokeSession(ctx, s.ID, m.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Unauthorized("unknown session")
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	m.log.Info().Str("user_id", s.UserID).Str("session_id", s.ID).Msg("Session closed")
	return nil
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx, if any
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
