package models

import "time"

// Guest represents an invitee of a single event
type Guest struct {
	ID            string     `json:"id"`
	EventID       string     `json:"eventId"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email,omitempty"`
	RSVPStatus    RSVPStatus `json:"rsvpStatus"`
	InvitedAt     time.Time  `json:"invitedAt"`
	RespondedAt   *time.Time `json:"respondedAt,omitempty"`
	Companions    int        `json:"actualCompanions"`
	MaxCompanions int        `json:"maxCompanions"`
	RemovedAt     *time.Time `json:"-"`
}

// HasResponded reports whether the guest ever answered the invitation
func (g Guest) HasResponded() bool {
	return g.RespondedAt != nil
}

// Removed reports whether the guest was soft-removed from the list
func (g Guest) Removed() bool {
	return g.RemovedAt != nil
}

// RSVPStatus represents the attendance confirmation status
type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "pending"
	RSVPConfirmed RSVPStatus = "confirmed"
	RSVPDeclined  RSVPStatus = "declined"
)

// Valid reports whether s is one of the known statuses
func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPPending, RSVPConfirmed, RSVPDeclined:
		return true
	}
	return false
}

// GuestInput carries the fields an organizer or respondent supplies for a new guest
type GuestInput struct {
	Name          string `json:"name" validate:"required"`
	Phone         string `json:"phone" validate:"required"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	MaxCompanions int    `json:"maxCompanions,omitempty" validate:"gte=0,lte=20"`
}
