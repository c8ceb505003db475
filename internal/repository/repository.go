// Package repository declares the storage contracts the service layer depends on.
//
// Services accept these interfaces, never a concrete backend, so the same
// service code runs on the embedded SQLite store, on PostgreSQL, and on the
// in-memory fakes used by service tests.
//
// ERROR CONTRACT (every implementation):
//   - missing row               → apperror.ErrNotFound
//   - unique constraint         → apperror.ErrDuplicate (which is an ErrConflict)
//   - foreign key to a missing row → apperror.ErrNotFound
package repository

import (
	"context"

	"github.com/sakif/vem/internal/model"
)

// UserRepository is the credential store.
type UserRepository interface {
	// CreateUser inserts user together with its first role in one
	// transaction: both rows persist or neither does. It sets user.ID and
	// user.CreatedAt. A taken email fails with apperror.ErrDuplicate.
	CreateUser(ctx context.Context, user *model.User, role model.Role) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RoleRepository is the role registry.
type RoleRepository interface {
	// AssignRole grants role to an existing user. Granting a role twice
	// fails with apperror.ErrDuplicate.
	AssignRole(ctx context.Context, userID string, role model.Role) error
	// RolesOf fails with apperror.ErrNotFound when the user holds no roles.
	RolesOf(ctx context.Context, userID string) ([]model.Role, error)
}

// EventRepository is the owner-scoped event store.
type EventRepository interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	ListEventsByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error)
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	// UpdateEvent applies patch to the event matching BOTH ids and returns
	// the number of rows changed. A foreign organizer changes zero rows.
	UpdateEvent(ctx context.Context, organizerID, eventID string, patch model.EventPatch) (int64, error)
	// DeleteEvent fails with apperror.ErrNotFound unless eventID is one of
	// organizerID's events.
	DeleteEvent(ctx context.Context, organizerID, eventID string) error
}

// RegistrationRepository is the attendee ↔ event map.
type RegistrationRepository interface {
	// CreateRegistration fails with apperror.ErrConflict when the pair is
	// already registered and apperror.ErrNotFound when the event is gone.
	CreateRegistration(ctx context.Context, reg *model.Registration) error
	RegistrationExists(ctx context.Context, eventID, attendeeID string) (bool, error)
	// ListAttendees returns an empty slice for an event nobody registered for.
	ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error)
	ListEventsForAttendee(ctx context.Context, attendeeID string) ([]model.Event, error)
}

// Store is everything a backend provides. Both sqlite.DB and postgres.DB
// satisfy it.
type Store interface {
	UserRepository
	RoleRepository
	EventRepository
	RegistrationRepository
	Close() error
}
