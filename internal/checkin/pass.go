package checkin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"event-invitations/internal/apperrors"
	"event-invitations/internal/models"
)

const passIssuer = "event-invitations/checkin"

// PassConfig controls what a scanned QR payload may contain
type PassConfig struct {
	// Secret signs passes. Without it only bare guest ids are usable.
	Secret []byte
	// Grace is how long after the event start a pass remains valid.
	Grace time.Duration
	// RequireSigned rejects bare guest ids.
	RequireSigned bool
	Now           func() time.Time
}

type passClaims struct {
	jwt.RegisteredClaims
	EventID string `json:"event_id"`
	GuestID string `json:"guest_id"`
}

// Passes issues and resolves QR payloads
type Passes struct {
	cfg PassConfig
}

// NewPasses creates a pass issuer/verifier
func NewPasses(cfg PassConfig) *Passes {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Passes{cfg: cfg}
}

// CanSign reports whether signed passes are available
func (p *Passes) CanSign() bool {
	return len(p.cfg.Secret) > 0
}

// Issue signs a pass bound to the guest and its event. It expires Grace after
// the event starts.
func (p *Passes) Issue(g models.Guest, e models.Event) (string, error) {
	if !p.CanSign() {
		return "", errors.New("signed passes are not configured")
	}
	if g.EventID != e.ID {
		return "", fmt.Errorf("guest %s does not belong to event %s", g.ID, e.ID)
	}

	now := p.cfg.Now()
	claims := passClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    passIssuer,
			Subject:   g.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(e.StartsAt.Add(p.cfg.Grace)),
		},
		EventID: e.ID,
		GuestID: g.ID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign pass: %w", err)
	}
	return token, nil
}

// Payload is a resolved scan
type Payload struct {
	GuestID string
	// EventID is set only for signed passes.
	EventID string
	Signed  bool
}

// Resolve turns a scanned QR payload into a guest id. Surrounding whitespace
// is ignored. Bare ids are accepted unless RequireSigned is set.
func (p *Passes) Resolve(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, apperrors.Validation("guestId", "scan payload is empty")
	}

	if strings.Count(raw, ".") != 2 {
		if p.cfg.RequireSigned {
			return Payload{}, apperrors.Validation("guestId", "a signed pass is required")
		}
		return Payload{GuestID: raw}, nil
	}

	if !p.CanSign() {
		return Payload{}, apperrors.Validation("guestId", "signed passes are not accepted")
	}

	var claims passClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(passIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.cfg.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, apperrors.Validation("guestId", "pass has expired")
		}
		return Payload{}, apperrors.Validation("guestId", "pass is invalid")
	}
	if claims.GuestID == "" || claims.EventID == "" || claims.Subject != claims.GuestID {
		return Payload{}, apperrors.Validation("guestId", "pass is invalid")
	}

	return Payload{GuestID: claims.GuestID, EventID: claims.EventID, Signed: true}, nil
}
