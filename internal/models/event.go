package models

import "time"

// Event is an invitation owned by an organizer
type Event struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"ownerId"`
	Title       string      `json:"title"`
	Type        EventType   `json:"type"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location"`
	StartsAt    time.Time   `json:"startsAt"`
	GuestCount  int         `json:"guestCount"`
	Status      EventStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// EventType classifies an event
type EventType string

const (
	EventWedding    EventType = "wedding"
	EventBirthday   EventType = "birthday"
	EventGraduation EventType = "graduation"
	EventCorporate  EventType = "corporate"
	EventOther      EventType = "other"
)

// EventStatus is the lifecycle state of an event
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Terminal reports whether no further lifecycle transition is possible.
// A completed event can still be cancelled.
func (s EventStatus) Terminal() bool {
	return s == EventCancelled
}

// EventInput is the organizer-supplied data for a new event.
// Date and Time are parsed in the server's configured location.
type EventInput struct {
	Title       string    `json:"title" validate:"required"`
	Type        EventType `json:"type" validate:"required,oneof=wedding birthday graduation corporate other"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location" validate:"required"`
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string    `json:"time" validate:"required,datetime=15:04"`
	GuestCount  int       `json:"guestCount" validate:"gte=0"`
}

// Counts are derived per request from the guest list and check-in ledger
type Counts struct {
	Invited           int `json:"invited"`
	Confirmed         int `json:"confirmed"`
	Pending           int `json:"pending"`
	Declined          int `json:"declined"`
	CheckedIn         int `json:"checkedIn"`
	ExpectedAttendees int `json:"expectedAttendees"`
}
