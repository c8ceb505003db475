package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

func validInput(name string) EventInput {
	return EventInput{
		Name:        name,
		Date:        "2025-12-13",
		Time:        "12:45",
		Description: "A walk through the framework",
	}
}

func createEvent(t *testing.T, svc *EventService, organizerID, name string) *model.Event {
	t.Helper()
	e, err := svc.Create(context.Background(), organizerID, validInput(name))
	require.NoError(t, err)
	return e
}

func ptr(s string) *string { return &s }

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate_Success(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)

	e := createEvent(t, svc, org, "  ExFrame overview  ")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "ExFrame overview", e.Name, "name is trimmed")
	assert.Equal(t, org, e.OrganizerID)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*EventInput)
		field string
	}{
		{"short name", func(in *EventInput) { in.Name = "abc" }, "name"},
		{"short description", func(in *EventInput) { in.Description = "hey" }, "description"},
		{"bad date", func(in *EventInput) { in.Date = "13-12-2025" }, "date"},
		{"impossible date", func(in *EventInput) { in.Date = "2025-02-30" }, "date"},
		{"bad time", func(in *EventInput) { in.Time = "25:00" }, "time"},
		{"single digit hour", func(in *EventInput) { in.Time = "9:30" }, "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestEventService(t)
			in := validInput("Valid name")
			tt.edit(&in)

			_, err := svc.Create(context.Background(), "org", in)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr), "want *AppError, got %v", err)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

// =========================================================================
// OWNERSHIP TESTS
// =========================================================================

func TestListByOrganizer_Isolation(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	a := seedUser(t, store, "a@mail.co", model.RoleOrganizer)
	b := seedUser(t, store, "b@mail.co", model.RoleOrganizer)
	createEvent(t, svc, a, "A's event")
	createEvent(t, svc, b, "B's event")

	events, err := svc.ListByOrganizer(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "A's event", events[0].Name)
}

func TestUpdate_Owner(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	e := createEvent(t, svc, org, "Original")

	got, err := svc.Update(context.Background(), org, e.ID, model.EventPatch{Time: ptr("18:30")})
	require.NoError(t, err)

	assert.Equal(t, "18:30", got.Time)
	assert.Equal(t, "Original", got.Name, "unpatched fields unchanged")

	stored, _ := store.GetEventByID(context.Background(), e.ID)
	assert.Equal(t, "18:30", stored.Time)
}

func TestUpdate_OtherOrganizerIsNotFound(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	a := seedUser(t, store, "a@mail.co", model.RoleOrganizer)
	b := seedUser(t, store, "b@mail.co", model.RoleOrganizer)
	e := createEvent(t, svc, a, "Original")

	_, err := svc.Update(context.Background(), b, e.ID, model.EventPatch{Name: ptr("Hijacked")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	stored, _ := store.GetEventByID(context.Background(), e.ID)
	assert.Equal(t, "Original", stored.Name)
}

func TestUpdate_MissingEvent(t *testing.T) {
	svc, _, _ := newTestEventService(t)

	_, err := svc.Update(context.Background(), "org", "missing", model.EventPatch{Name: ptr("Whatever")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdate_EmptyPatch(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	e := createEvent(t, svc, org, "Original")

	_, err := svc.Update(context.Background(), org, e.ID, model.EventPatch{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUpdate_InvalidPatch(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	e := createEvent(t, svc, org, "Original")

	_, err := svc.Update(context.Background(), org, e.ID, model.EventPatch{Date: ptr("tomorrow")})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestDelete_Owner(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	e := createEvent(t, svc, org, "Doomed")

	require.NoError(t, svc.Delete(context.Background(), org, e.ID))

	_, err := store.GetEventByID(context.Background(), e.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDelete_OtherOrganizer(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	a := seedUser(t, store, "a@mail.co", model.RoleOrganizer)
	b := seedUser(t, store, "b@mail.co", model.RoleOrganizer)
	e := createEvent(t, svc, a, "Survivor")

	err := svc.Delete(context.Background(), b, e.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = store.GetEventByID(context.Background(), e.ID)
	assert.NoError(t, err)
}

// =========================================================================
// REGISTRATION TESTS
// =========================================================================

func TestRegister_OnceThenConflict(t *testing.T) {
	svc, store, notifier := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	att := seedUser(t, store, "att@mail.co", model.RoleAttendee)
	e := createEvent(t, svc, org, "Meetup!")

	reg, err := svc.Register(context.Background(), att, e.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ID)

	_, err = svc.Register(context.Background(), att, e.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	require.Len(t, notifier.sent, 1, "only the successful registration is confirmed")
	assert.Equal(t, "att@mail.co", notifier.sent[0].To)
	assert.Equal(t, "Meetup!", notifier.sent[0].EventName)
	assert.Equal(t, "2025-12-13", notifier.sent[0].Date)
}

func TestRegister_UnknownEvent(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	att := seedUser(t, store, "att@mail.co", model.RoleAttendee)

	_, err := svc.Register(context.Background(), att, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRegister_MailFailureKeepsRegistration(t *testing.T) {
	svc, store, notifier := newTestEventService(t)
	notifier.err = errors.New("smtp down")
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	att := seedUser(t, store, "att@mail.co", model.RoleAttendee)
	e := createEvent(t, svc, org, "Meetup!")

	_, err := svc.Register(context.Background(), att, e.ID)
	require.NoError(t, err)

	ok, _ := store.RegistrationExists(context.Background(), e.ID, att)
	assert.True(t, ok)
}

func TestRegister_NilNotifier(t *testing.T) {
	store := newFakeStore()
	svc := NewEventService(store, store, store, nil, testLogger())
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	att := seedUser(t, store, "att@mail.co", model.RoleAttendee)
	e := createEvent(t, svc, org, "Meetup!")

	_, err := svc.Register(context.Background(), att, e.ID)
	assert.NoError(t, err)
}

func TestListAttendees(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	other := seedUser(t, store, "other@mail.co", model.RoleOrganizer)
	att := seedUser(t, store, "att@mail.co", model.RoleAttendee)
	e := createEvent(t, svc, org, "Meetup!")
	_, err := svc.Register(context.Background(), att, e.ID)
	require.NoError(t, err)

	t.Run("owner sees attendees", func(t *testing.T) {
		list, err := svc.ListAttendees(context.Background(), org, e.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, att, list[0].AttendeeID)
	})

	t.Run("other organizer is forbidden", func(t *testing.T) {
		_, err := svc.ListAttendees(context.Background(), other, e.ID)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("missing event", func(t *testing.T) {
		_, err := svc.ListAttendees(context.Background(), org, "missing")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestListAttendees_EmptyIsNotAnError(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	e := createEvent(t, svc, org, "Nobody came")

	list, err := svc.ListAttendees(context.Background(), org, e.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListForAttendee(t *testing.T) {
	svc, store, _ := newTestEventService(t)
	org := seedUser(t, store, "org@mail.co", model.RoleOrganizer)
	att := seedUser(t, store, "att@mail.co", model.RoleAttendee)
	joined := createEvent(t, svc, org, "Joined event")
	createEvent(t, svc, org, "Skipped event")

	_, err := svc.Register(context.Background(), att, joined.ID)
	require.NoError(t, err)

	events, err := svc.ListForAttendee(context.Background(), att)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, joined.ID, events[0].ID)
}
