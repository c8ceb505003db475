package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/auth"
	"github.com/sakif/vem/internal/mail"
	"github.com/sakif/vem/internal/model"
	"github.com/sakif/vem/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore keeps everything in maps and honours the same error contract as
// the SQL backends (Duplicate on unique keys, NotFound on missing rows), so
// the services can be tested without a database. A mutex makes it safe for
// the concurrency tests.

type fakeStore struct {
	mu     sync.Mutex
	nextID int

	users  map[string]model.User         // by id
	roles  map[string][]model.Role       // by user id
	events map[string]model.Event        // by id
	regs   map[string]model.Registration // by event id + "/" + attendee id

	// failWith, when set, is returned by every method.
	failWith error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]model.User),
		roles:  make(map[string][]model.Role),
		events: make(map[string]model.Event),
		regs:   make(map[string]model.Registration),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateUser(_ context.Context, u *model.User, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Duplicate("user", "email", u.Email)
		}
	}
	u.ID = f.id("user")
	u.CreatedAt = time.Now()
	f.users[u.ID] = *u
	f.roles[u.ID] = []model.Role{role}
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperror.NotFoundMessage("user not found with email " + email)
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (f *fakeStore) AssignRole(_ context.Context, userID string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[userID]; !ok {
		return apperror.NotFound("user", userID)
	}
	if slices.Contains(f.roles[userID], role) {
		return apperror.Duplicate("role", "name", string(role))
	}
	f.roles[userID] = append(f.roles[userID], role)
	return nil
}

func (f *fakeStore) RolesOf(_ context.Context, userID string) ([]model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	roles := f.roles[userID]
	if len(roles) == 0 {
		return nil, apperror.NotFound("roles for user", userID)
	}
	return slices.Clone(roles), nil
}

func (f *fakeStore) CreateEvent(_ context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	e.ID = f.id("event")
	e.CreatedAt = time.Now()
	f.events[e.ID] = *e
	return nil
}

func (f *fakeStore) ListEventsByOrganizer(_ context.Context, organizerID string) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.Event{}
	for _, e := range f.events {
		if e.OrganizerID == organizerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	e, ok := f.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	return &e, nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, organizerID, eventID string, patch model.EventPatch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	e, ok := f.events[eventID]
	if !ok || e.OrganizerID != organizerID {
		return 0, nil
	}
	patch.Apply(&e)
	f.events[eventID] = e
	return 1, nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, organizerID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	e, ok := f.events[eventID]
	if !ok || e.OrganizerID != organizerID {
		return apperror.NotFound("event", eventID)
	}
	delete(f.events, eventID)
	for k, r := range f.regs {
		if r.EventID == eventID {
			delete(f.regs, k)
		}
	}
	return nil
}

func (f *fakeStore) CreateRegistration(_ context.Context, r *model.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.events[r.EventID]; !ok {
		return apperror.NotFound("event", r.EventID)
	}
	key := r.EventID + "/" + r.AttendeeID
	if _, dup := f.regs[key]; dup {
		return apperror.Conflict("already registered for this event")
	}
	r.ID = f.id("reg")
	r.CreatedAt = time.Now()
	f.regs[key] = *r
	return nil
}

func (f *fakeStore) RegistrationExists(_ context.Context, eventID, attendeeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	_, ok := f.regs[eventID+"/"+attendeeID]
	return ok, nil
}

func (f *fakeStore) ListAttendees(_ context.Context, eventID string) ([]model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.Attendee{}
	for _, r := range f.regs {
		if r.EventID != eventID {
			continue
		}
		u := f.users[r.AttendeeID]
		out = append(out, model.Attendee{
			RegistrationID: r.ID,
			EventID:        r.EventID,
			AttendeeID:     r.AttendeeID,
			Name:           u.Name,
			Email:          u.Email,
			RegisteredAt:   r.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeStore) ListEventsForAttendee(_ context.Context, attendeeID string) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.Event{}
	for _, r := range f.regs {
		if r.AttendeeID == attendeeID {
			out = append(out, f.events[r.EventID])
		}
	}
	return out, nil
}

// =========================================================================
// FAKE NOTIFIER
// =========================================================================

type fakeNotifier struct {
	mu   sync.Mutex
	sent []mail.Confirmation
	err  error
}

func (n *fakeNotifier) SendRegistrationConfirmation(_ context.Context, c mail.Confirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, c)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestIdentityService(t *testing.T) (*IdentityService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", "http://localhost:3000", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	svc := NewIdentityService(store, store, auth.NewPasswordServiceForTest(), tokens, testLogger())
	return svc, store
}

func newTestEventService(t *testing.T) (*EventService, *fakeStore, *fakeNotifier) {
	t.Helper()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	return NewEventService(store, store, store, notifier, testLogger()), store, notifier
}

// seedUser puts a user with the given roles straight into the store.
func seedUser(t *testing.T, store *fakeStore, email string, roles ...model.Role) string {
	t.Helper()
	u := &model.User{Name: "Seeded", Email: email, PasswordHash: "x"}
	if err := store.CreateUser(context.Background(), u, roles[0]); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	for _, r := range roles[1:] {
		if err := store.AssignRole(context.Background(), u.ID, r); err != nil {
			t.Fatalf("seeding role: %v", err)
		}
	}
	return u.ID
}
