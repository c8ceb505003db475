// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Role is a capability tag that can be granted to a user account.
//
// One email address may hold BOTH roles. Each role is granted by its own
// signup call, and each (user, role) pair exists at most once.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleAttendee
}

// User represents a registered account.
//
// WHY PasswordHash HAS json:"-"?
// The hash must never leave the server, not even in an admin listing.
// The "-" tag makes encoding/json skip the field entirely.
type User struct {
	ID           string    `json:"userId"    db:"user_id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"` // unique across all users
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// RoleAssignment links a user to one role.
type RoleAssignment struct {
	UserID    string    `json:"userId"    db:"user_id"`
	Role      Role      `json:"role"      db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Principal is the authenticated identity returned by a successful login.
type Principal struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}
