package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

// CreateRegistration links an attendee to an event.
//
// UNIQUE(event_id, attendee_id) makes the second of two racing requests
// fail here even if both passed the service's pre-check, and the foreign
// key catches an event deleted in between.
func (db *DB) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	reg.ID = uuid.NewString()
	reg.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, attendee_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		reg.ID, reg.EventID, reg.AttendeeID, reg.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Conflict("already registered for this event")
		case isForeignKeyViolation(err):
			return apperror.NotFound("event", reg.EventID)
		}
		return fmt.Errorf("sqlite: inserting registration: %w", err)
	}
	return nil
}

// RegistrationExists reports whether attendeeID is registered for eventID.
func (db *DB) RegistrationExists(ctx context.Context, eventID, attendeeID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM registrations WHERE event_id = ? AND attendee_id = ?
		 )`,
		eventID, attendeeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking registration: %w", err)
	}
	return exists, nil
}

// ListAttendees returns everyone registered for eventID in sign-up order.
func (db *DB) ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.event_id, r.attendee_id, u.name, u.email, r.created_at
		 FROM registrations r
		 JOIN users u ON u.user_id = r.attendee_id
		 WHERE r.event_id = ?
		 ORDER BY r.created_at, r.id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing attendees of %s: %w", eventID, err)
	}
	defer rows.Close()

	attendees := []model.Attendee{}
	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.RegistrationID, &a.EventID, &a.AttendeeID, &a.Name, &a.Email, &a.RegisteredAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating attendees: %w", err)
	}
	return attendees, nil
}

// ListEventsForAttendee returns the events attendeeID registered for.
func (db *DB) ListEventsForAttendee(ctx context.Context, attendeeID string) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT e.event_id, e.name, e.date, e.time, e.description, e.organizer_id, e.created_at
		 FROM events e
		 JOIN registrations r ON r.event_id = e.event_id
		 WHERE r.attendee_id = ?
		 ORDER BY r.created_at, e.event_id`,
		attendeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events for attendee %s: %w", attendeeID, err)
	}
	return scanEvents(rows)
}
