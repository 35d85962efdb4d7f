package models

import "time"

// CheckInRecord marks a guest's arrival. At most one exists per guest.
type CheckInRecord struct {
	GuestID     string    `json:"guestId"`
	EventID     string    `json:"eventId"`
	CheckedInAt time.Time `json:"checkedInAt"`
	StaffID     string    `json:"staffId,omitempty"`
}
