package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

const eventColumns = `event_id, name, date, time, description, organizer_id, created_at`

// CreateEvent inserts event, owned by event.OrganizerID.
// It sets event.ID and event.CreatedAt in place.
func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Name,
		event.Date,
		event.Time,
		event.Description,
		event.OrganizerID,
		event.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("organizer", event.OrganizerID)
		}
		return fmt.Errorf("sqlite: inserting event: %w", err)
	}
	return nil
}

// ListEventsByOrganizer returns only organizerID's events, newest first.
func (db *DB) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE organizer_id = ?
		 ORDER BY created_at DESC, event_id`,
		organizerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events of %s: %w", organizerID, err)
	}
	return scanEvents(rows)
}

// GetEventByID looks an event up by id alone.
func (db *DB) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_id = ?`,
		id,
	).Scan(&e.ID, &e.Name, &e.Date, &e.Time, &e.Description, &e.OrganizerID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("sqlite: getting event %s: %w", id, err)
	}
	return &e, nil
}

// UpdateEvent applies patch to the event only if organizerID owns it.
//
// COALESCE(?, col) keeps the current value when the parameter is NULL,
// and a nil *string is bound as NULL, so unset patch fields are untouched.
// The owner filter is in the WHERE clause: another organizer's request
// simply matches nothing, and the caller sees 0 rows affected.
func (db *DB) UpdateEvent(ctx context.Context, organizerID, eventID string, patch model.EventPatch) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE events SET
			name        = COALESCE(?, name),
			date        = COALESCE(?, date),
			time        = COALESCE(?, time),
			description = COALESCE(?, description)
		 WHERE event_id = ? AND organizer_id = ?`,
		patch.Name,
		patch.Date,
		patch.Time,
		patch.Description,
		eventID,
		organizerID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: updating event %s: %w", eventID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

// DeleteEvent removes the event if organizerID owns it. Registrations go
// with it through ON DELETE CASCADE.
//
// Filtering on both ids in one statement makes the ownership check and the
// delete atomic; zero rows means "not yours or not there", and both are
// reported as not found.
func (db *DB) DeleteEvent(ctx context.Context, organizerID, eventID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM events WHERE event_id = ? AND organizer_id = ?`,
		eventID, organizerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %s: %w", eventID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("event", eventID)
	}
	return nil
}

// scanEvents drains rows into a slice and closes them.
// An empty result is an empty, non-nil slice so it encodes as [] not null.
func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Time, &e.Description, &e.OrganizerID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}
	return events, nil
}
