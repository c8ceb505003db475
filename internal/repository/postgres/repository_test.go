package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

// TESTING AGAINST A REAL POSTGRES:
// These tests need a disposable database, e.g.
//
//	docker run --rm -e POSTGRES_PASSWORD=pg -p 5432:5432 postgres:16
//	TEST_DATABASE_URL=postgres://postgres:pg@localhost:5432/postgres?sslmode=disable go test ./internal/repository/postgres/
//
// Without TEST_DATABASE_URL they are skipped. Every test starts from empty
// tables, so do not point this at a database you care about.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := New(context.Background(), dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.pool.Exec(context.Background(),
		`TRUNCATE registrations, events, user_roles, users CASCADE`)
	require.NoError(t, err)
	return db
}

func createTestUser(t *testing.T, db *DB, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Name: "Test User", Email: email, PasswordHash: "$2a$04$hash"}
	require.NoError(t, db.CreateUser(context.Background(), u, role))
	return u
}

func createTestEvent(t *testing.T, db *DB, organizerID, name string) *model.Event {
	t.Helper()
	e := &model.Event{
		Name:        name,
		Date:        "2025-12-13",
		Time:        "12:45",
		Description: "Framework walkthrough",
		OrganizerID: organizerID,
	}
	require.NoError(t, db.CreateEvent(context.Background(), e))
	return e
}

// =========================================================================
// USERS AND ROLES
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "alice@mail.co", model.RoleOrganizer)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	roles, err := db.RolesOf(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleOrganizer}, roles)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dup@mail.co", model.RoleOrganizer)

	err := db.CreateUser(context.Background(),
		&model.User{Name: "Again", Email: "dup@mail.co", PasswordHash: "hash"}, model.RoleAttendee)
	assert.ErrorIs(t, err, apperror.ErrDuplicate)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestCreateUser_RollsBackWhenRoleInsertFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.CreateUser(ctx, &model.User{Name: "Half", Email: "half@mail.co", PasswordHash: "hash"}, model.Role("admin"))
	require.Error(t, err)

	_, err = db.GetUserByEmail(ctx, "half@mail.co")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "user row survived a failed signup")
}

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	created := createTestUser(t, db, "bob@mail.co", model.RoleAttendee)

	byEmail, err := db.GetUserByEmail(ctx, "bob@mail.co")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, created.PasswordHash, byEmail.PasswordHash)

	byID, err := db.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@mail.co", byID.Email)
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetUserByEmail(ctx, "nobody@mail.co")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		_, err := db.GetUserByID(ctx, id)
		assert.ErrorIs(t, err, apperror.ErrNotFound, "id %q", id)
	}
}

func TestAssignRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "both@mail.co", model.RoleOrganizer)

	require.NoError(t, db.AssignRole(ctx, u.ID, model.RoleAttendee))
	roles, err := db.RolesOf(ctx, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Role{model.RoleOrganizer, model.RoleAttendee}, roles)

	err = db.AssignRole(ctx, u.ID, model.RoleAttendee)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	err = db.AssignRole(ctx, uuid.NewString(), model.RoleAttendee)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRolesOf_NoRoles(t *testing.T) {
	db := newTestDB(t)

	_, err := db.RolesOf(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// EVENTS
// =========================================================================

func TestEvents_OwnerScoped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "a@mail.co", model.RoleOrganizer)
	b := createTestUser(t, db, "b@mail.co", model.RoleOrganizer)
	e := createTestEvent(t, db, a.ID, "ExFrame overview")
	assert.NotEmpty(t, e.ID)

	mine, err := db.ListEventsByOrganizer(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, e.ID, mine[0].ID)

	theirs, err := db.ListEventsByOrganizer(ctx, b.ID)
	require.NoError(t, err)
	assert.NotNil(t, theirs)
	assert.Empty(t, theirs)

	renamed := "Hijacked event"
	n, err := db.UpdateEvent(ctx, b.ID, e.ID, model.EventPatch{Name: &renamed})
	require.NoError(t, err)
	assert.Zero(t, n)

	err = db.DeleteEvent(ctx, b.ID, e.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	got, err := db.GetEventByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "ExFrame overview", got.Name)
}

func TestUpdateEvent_PatchKeepsUnsetFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	org := createTestUser(t, db, "org@mail.co", model.RoleOrganizer)
	e := createTestEvent(t, db, org.ID, "Meetup one")

	newTime := "18:30"
	n, err := db.UpdateEvent(ctx, org.ID, e.ID, model.EventPatch{Time: &newTime})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := db.GetEventByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "18:30", got.Time)
	assert.Equal(t, "Meetup one", got.Name)
	assert.Equal(t, "2025-12-13", got.Date)
}

func TestDeleteEvent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	org := createTestUser(t, db, "org@mail.co", model.RoleOrganizer)
	e := createTestEvent(t, db, org.ID, "Meetup one")

	require.NoError(t, db.DeleteEvent(ctx, org.ID, e.ID))

	_, err := db.GetEventByID(ctx, e.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = db.DeleteEvent(ctx, org.ID, "not-a-uuid")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCreateEvent_UnknownOrganizer(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateEvent(context.Background(), &model.Event{
		Name: "Orphan event", Date: "2025-12-13", Time: "12:45", OrganizerID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// REGISTRATIONS
// =========================================================================

func TestRegistrations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	org := createTestUser(t, db, "org@mail.co", model.RoleOrganizer)
	att := createTestUser(t, db, "att@mail.co", model.RoleAttendee)
	e := createTestEvent(t, db, org.ID, "Meetup one")

	empty, err := db.ListAttendees(ctx, e.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	reg := &model.Registration{EventID: e.ID, AttendeeID: att.ID}
	require.NoError(t, db.CreateRegistration(ctx, reg))
	assert.NotEmpty(t, reg.ID)

	ok, err := db.RegistrationExists(ctx, e.ID, att.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	err = db.CreateRegistration(ctx, &model.Registration{EventID: e.ID, AttendeeID: att.ID})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	attendees, err := db.ListAttendees(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, att.ID, attendees[0].AttendeeID)
	assert.Equal(t, "att@mail.co", attendees[0].Email)

	events, err := db.ListEventsForAttendee(ctx, att.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ID)
}

func TestCreateRegistration_UnknownEvent(t *testing.T) {
	db := newTestDB(t)
	att := createTestUser(t, db, "att@mail.co", model.RoleAttendee)

	err := db.CreateRegistration(context.Background(),
		&model.Registration{EventID: uuid.NewString(), AttendeeID: att.ID})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteEvent_CascadesRegistrations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	org := createTestUser(t, db, "org@mail.co", model.RoleOrganizer)
	att := createTestUser(t, db, "att@mail.co", model.RoleAttendee)
	e := createTestEvent(t, db, org.ID, "Meetup one")
	require.NoError(t, db.CreateRegistration(ctx, &model.Registration{EventID: e.ID, AttendeeID: att.ID}))

	require.NoError(t, db.DeleteEvent(ctx, org.ID, e.ID))

	ok, err := db.RegistrationExists(ctx, e.ID, att.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	events, err := db.ListEventsForAttendee(ctx, att.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

// =========================================================================
// CONNECTION
// =========================================================================

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Ping(context.Background()))

	// newTestDB already migrated once.
	require.NoError(t, migrate(context.Background(), db.pool))
}
