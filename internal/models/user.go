package models

import "time"

// Role decides what a signed-in user may do
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleStaff     Role = "staff"
)

// User is an organizer or a staff member who scans guests in
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	PasscodeHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionRecord is the persisted side of a login session
type SessionRecord struct {
	ID        string
	UserID    string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}
