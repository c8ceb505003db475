package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

// CreateRegistration inserts (event, attendee). UNIQUE(event_id, attendee_id)
// is the final word on duplicates.
func (db *DB) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	reg.ID = uuid.NewString()

	const q = `INSERT INTO registrations (id, event_id, attendee_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	err := db.pool.QueryRow(ctx, q, reg.ID, reg.EventID, reg.AttendeeID).Scan(&reg.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Conflict("already registered for this event")
		case isForeignKeyViolation(err), isInvalidID(err):
			return apperror.NotFound("event", reg.EventID)
		}
		return fmt.Errorf("postgres: insert registration: %w", err)
	}
	return nil
}

// RegistrationExists reports whether attendeeID is registered for eventID.
func (db *DB) RegistrationExists(ctx context.Context, eventID, attendeeID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND attendee_id = $2)`
	var exists bool
	if err := db.pool.QueryRow(ctx, q, eventID, attendeeID).Scan(&exists); err != nil {
		if isInvalidID(err) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: check registration: %w", err)
	}
	return exists, nil
}

// ListAttendees returns eventID's attendees in sign-up order.
func (db *DB) ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error) {
	const q = `SELECT r.id, r.event_id, r.attendee_id, u.name, u.email, r.created_at
		FROM registrations r
		JOIN users u ON u.user_id = r.attendee_id
		WHERE r.event_id = $1
		ORDER BY r.created_at, r.id`
	rows, err := db.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list attendees of %s: %w", eventID, err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Attendee, error) {
		var a model.Attendee
		err := row.Scan(&a.RegistrationID, &a.EventID, &a.AttendeeID, &a.Name, &a.Email, &a.RegisteredAt)
		return a, err
	})
	if err != nil && !isInvalidID(err) {
		return nil, fmt.Errorf("postgres: collect attendees: %w", err)
	}
	if list == nil {
		list = []model.Attendee{}
	}
	return list, nil
}

// ListEventsForAttendee returns the events attendeeID registered for.
func (db *DB) ListEventsForAttendee(ctx context.Context, attendeeID string) ([]model.Event, error) {
	const q = `SELECT e.event_id, e.name, e.date, e.time, e.description, e.organizer_id, e.created_at
		FROM events e
		JOIN registrations r ON r.event_id = e.event_id
		WHERE r.attendee_id = $1
		ORDER BY r.created_at, e.event_id`
	rows, err := db.pool.Query(ctx, q, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events for attendee %s: %w", attendeeID, err)
	}
	return collectEvents(rows)
}
