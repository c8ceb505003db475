package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/mail"
	"github.com/sakif/vem/internal/model"
	"github.com/sakif/vem/internal/repository"
)

// MinEventTextLength applies to event names and descriptions.
const MinEventTextLength = 5

// ConfirmationSender is told about every successful registration.
// *mail.Notifier implements it.
type ConfirmationSender interface {
	SendRegistrationConfirmation(ctx context.Context, c mail.Confirmation) error
}

// EventInput is the full set of fields for a new event.
type EventInput struct {
	Name        string
	Date        string // yyyy-mm-dd
	Time        string // hh:mm
	Description string
}

// EventService owns event CRUD and attendee registration.
//
// OWNERSHIP RULES:
//   - an organizer only ever sees, changes or deletes their own events
//   - changing or deleting someone else's event looks exactly like the
//     event not existing (404), so ids of foreign events are not confirmed
//   - listing attendees of someone else's event is 403
type EventService struct {
	events        repository.EventRepository
	registrations repository.RegistrationRepository
	users         repository.UserRepository
	notifier      ConfirmationSender
	logger        *slog.Logger
}

// NewEventService creates an EventService. notifier may be nil, in which
// case no confirmation mail is sent.
func NewEventService(
	events repository.EventRepository,
	registrations repository.RegistrationRepository,
	users repository.UserRepository,
	notifier ConfirmationSender,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		events:        events,
		registrations: registrations,
		users:         users,
		notifier:      notifier,
		logger:        logger,
	}
}

// Create validates in and stores it as organizerID's event.
func (s *EventService) Create(ctx context.Context, organizerID string, in EventInput) (*model.Event, error) {
	event := &model.Event{
		Name:        strings.TrimSpace(in.Name),
		Date:        strings.TrimSpace(in.Date),
		Time:        strings.TrimSpace(in.Time),
		Description: strings.TrimSpace(in.Description),
		OrganizerID: organizerID,
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		s.logger.Error("failed to create event",
			slog.String("organizer_id", organizerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating event: %w", err)
	}

	s.logger.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("organizer_id", organizerID),
	)
	return event, nil
}

// ListByOrganizer returns organizerID's events only.
func (s *EventService) ListByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
	events, err := s.events.ListEventsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// Update applies patch to organizerID's event and returns the result.
//
// The existence pre-check gives a precise 404; the owner filter inside
// UpdateEvent is still what actually guards the row, so an event handed
// over or deleted between the two calls is also reported as not found.
func (s *EventService) Update(ctx context.Context, organizerID, eventID string, patch model.EventPatch) (*model.Event, error) {
	if patch.Empty() {
		return nil, apperror.ValidationFailed("body", "at least one field must be provided")
	}

	current, err := s.ownedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}

	updated := *current
	patch.Apply(&updated)
	trimEvent(&updated)
	if err := validateEvent(&updated); err != nil {
		return nil, err
	}
	trimPatch(&patch)

	n, err := s.events.UpdateEvent(ctx, organizerID, eventID, patch)
	if err != nil {
		s.logger.Error("failed to update event", slog.String("event_id", eventID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("updating event: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("event", eventID)
	}

	s.logger.Info("event updated", slog.String("event_id", eventID))
	return &updated, nil
}

// Delete removes organizerID's event together with its registrations.
func (s *EventService) Delete(ctx context.Context, organizerID, eventID string) error {
	if err := s.events.DeleteEvent(ctx, organizerID, eventID); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to delete event", slog.String("event_id", eventID), slog.String("error", err.Error()))
		}
		return fmt.Errorf("deleting event: %w", err)
	}

	s.logger.Info("event deleted", slog.String("event_id", eventID))
	return nil
}

// Register signs attendeeID up for eventID.
//
// The pre-checks give clear errors for the common cases; UNIQUE(event_id,
// attendee_id) and the event foreign key settle the racy ones. After the
// row is stored a confirmation email is attempted; its failure is logged
// and does not undo the registration.
func (s *EventService) Register(ctx context.Context, attendeeID, eventID string) (*model.Registration, error) {
	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}

	exists, err := s.registrations.RegistrationExists(ctx, eventID, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}
	if exists {
		return nil, apperror.Conflict("already registered for this event")
	}

	reg := &model.Registration{EventID: eventID, AttendeeID: attendeeID}
	if err := s.registrations.CreateRegistration(ctx, reg); err != nil {
		if !errors.Is(err, apperror.ErrConflict) && !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to register attendee", slog.String("event_id", eventID), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("registering: %w", err)
	}

	s.logger.Info("attendee registered",
		slog.String("event_id", eventID),
		slog.String("attendee_id", attendeeID),
	)

	s.confirm(ctx, attendeeID, event)
	return reg, nil
}

// confirm sends the confirmation mail, logging instead of failing.
func (s *EventService) confirm(ctx context.Context, attendeeID string, event *model.Event) {
	if s.notifier == nil {
		return
	}

	attendee, err := s.users.GetUserByID(ctx, attendeeID)
	if err != nil {
		s.logger.Warn("confirmation mail skipped", slog.String("attendee_id", attendeeID), slog.String("error", err.Error()))
		return
	}

	err = s.notifier.SendRegistrationConfirmation(ctx, mail.Confirmation{
		To:           attendee.Email,
		AttendeeName: attendee.Name,
		EventName:    event.Name,
		Date:         event.Date,
		Time:         event.Time,
	})
	if err != nil {
		s.logger.Warn("confirmation mail failed",
			slog.String("event_id", event.ID),
			slog.String("attendee_id", attendeeID),
			slog.String("error", err.Error()),
		)
	}
}

// ListAttendees returns who registered for organizerID's event. An event
// with no registrations yields an empty list, not an error.
func (s *EventService) ListAttendees(ctx context.Context, organizerID, eventID string) ([]model.Attendee, error) {
	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}
	if event.OrganizerID != organizerID {
		return nil, apperror.Forbidden("you can only view attendees of your own events")
	}

	list, err := s.registrations.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}
	return list, nil
}

// ListForAttendee returns the events attendeeID registered for.
func (s *EventService) ListForAttendee(ctx context.Context, attendeeID string) ([]model.Event, error) {
	events, err := s.registrations.ListEventsForAttendee(ctx, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("listing registered events: %w", err)
	}
	return events, nil
}

// ownedEvent fetches eventID and hides it unless organizerID owns it.
func (s *EventService) ownedEvent(ctx context.Context, organizerID, eventID string) (*model.Event, error) {
	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, apperror.NotFound("event", eventID)
	}
	return event, nil
}

func validateEvent(e *model.Event) error {
	if len(e.Name) < MinEventTextLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("name must be at least %d characters", MinEventTextLength))
	}
	if len(e.Description) < MinEventTextLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be at least %d characters", MinEventTextLength))
	}
	if _, err := time.Parse(model.DateLayout, e.Date); err != nil {
		return apperror.ValidationFailed("date", "date must be in yyyy-mm-dd format")
	}
	if _, err := time.Parse(model.TimeLayout, e.Time); err != nil || len(e.Time) != len(model.TimeLayout) {
		return apperror.ValidationFailed("time", "time must be in hh:mm format")
	}
	return nil
}

func trimEvent(e *model.Event) {
	e.Name = strings.TrimSpace(e.Name)
	e.Date = strings.TrimSpace(e.Date)
	e.Time = strings.TrimSpace(e.Time)
	e.Description = strings.TrimSpace(e.Description)
}

func trimPatch(p *model.EventPatch) {
	for _, f := range []**string{&p.Name, &p.Date, &p.Time, &p.Description} {
		if *f != nil {
			v := strings.TrimSpace(**f)
			*f = &v
		}
	}
}
