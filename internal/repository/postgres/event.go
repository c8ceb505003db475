package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

const eventColumns = `event_id, name, date, time, description, organizer_id, created_at`

// CreateEvent inserts event and fills in its id and creation time.
func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	event.ID = uuid.NewString()

	const q = `INSERT INTO events (event_id, name, date, time, description, organizer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := db.pool.QueryRow(ctx, q,
		event.ID, event.Name, event.Date, event.Time, event.Description, event.OrganizerID,
	).Scan(&event.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidID(err) {
			return apperror.NotFound("organizer", event.OrganizerID)
		}
		return fmt.Errorf("postgres: insert event: %w", err)
	}
	return nil
}

// ListEventsByOrganizer returns organizerID's events, newest first.
func (db *DB) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer_id = $1 ORDER BY created_at DESC, event_id`,
		organizerID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events of %s: %w", organizerID, err)
	}
	return collectEvents(rows)
}

// GetEventByID looks an event up by id alone.
func (db *DB) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: get event %s: %w", id, err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanEvent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("postgres: get event %s: %w", id, err)
	}
	return &e, nil
}

// UpdateEvent patches the event only where both ids match and returns the
// number of rows changed.
func (db *DB) UpdateEvent(ctx context.Context, organizerID, eventID string, patch model.EventPatch) (int64, error) {
	const q = `UPDATE events SET
			name        = COALESCE($1, name),
			date        = COALESCE($2, date),
			time        = COALESCE($3, time),
			description = COALESCE($4, description)
		WHERE event_id = $5 AND organizer_id = $6`
	tag, err := db.pool.Exec(ctx, q,
		patch.Name, patch.Date, patch.Time, patch.Description, eventID, organizerID,
	)
	if err != nil {
		if isInvalidID(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: update event %s: %w", eventID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteEvent removes organizerID's event; anything else is not found.
func (db *DB) DeleteEvent(ctx context.Context, organizerID, eventID string) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM events WHERE event_id = $1 AND organizer_id = $2`, eventID, organizerID)
	if err != nil && !isInvalidID(err) {
		return fmt.Errorf("postgres: delete event %s: %w", eventID, err)
	}
	if err != nil || tag.RowsAffected() == 0 {
		return apperror.NotFound("event", eventID)
	}
	return nil
}

func scanEvent(row pgx.CollectableRow) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Date, &e.Time, &e.Description, &e.OrganizerID, &e.CreatedAt)
	return e, err
}

// collectEvents always returns a non-nil slice so empty lists encode as [].
func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		if isInvalidID(err) {
			return []model.Event{}, nil
		}
		return nil, fmt.Errorf("postgres: collect events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}
