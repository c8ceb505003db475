package model

import "time"

// Date and time layouts used for events. Dates and times are kept as text
// in storage so the calendar value round-trips exactly, with no time zone
// conversion along the way.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Event is owned by the organizer who created it.
// Only that organizer may update or delete it.
type Event struct {
	ID          string    `json:"eventId"     db:"event_id"`
	Name        string    `json:"name"        db:"name"`
	Date        string    `json:"date"        db:"date"` // yyyy-mm-dd
	Time        string    `json:"time"        db:"time"` // hh:mm, 24h
	Description string    `json:"description" db:"description"`
	OrganizerID string    `json:"organizerId" db:"organizer_id"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}

// EventPatch carries a partial update. A nil field is left unchanged.
type EventPatch struct {
	Name        *string
	Date        *string
	Time        *string
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Name == nil && p.Date == nil && p.Time == nil && p.Description == nil
}

// Apply copies every set field of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
}

// Registration records that an attendee signed up for an event.
// At most one Registration exists per (EventID, AttendeeID).
type Registration struct {
	ID         string    `json:"id"         db:"id"`
	EventID    string    `json:"eventId"    db:"event_id"`
	AttendeeID string    `json:"attendeeId" db:"attendee_id"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}

// Attendee is a registration joined with the attendee's public profile.
type Attendee struct {
	RegistrationID string    `json:"id"`
	EventID        string    `json:"eventId"`
	AttendeeID     string    `json:"attendeeId"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	RegisteredAt   time.Time `json:"registeredAt"`
}
