package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/auth"
	"github.com/sakif/vem/internal/model"
	"github.com/sakif/vem/internal/service"
)

// errNoClaims means a handler behind RequireAuth ran without claims,
// i.e. the route was mounted without the middleware.
var errNoClaims = apperror.Unauthorized("authentication required")

type createEventRequest struct {
	Name        string `json:"name"        validate:"required,min=5"`
	Date        string `json:"date"        validate:"required,datetime=2006-01-02"`
	Time        string `json:"time"        validate:"required,datetime=15:04"`
	Description string `json:"description" validate:"required,min=5"`
}

// updateEventRequest has every field optional; at least one must be set
// (see atLeastOneField).
type updateEventRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=5"`
	Date        *string `json:"date"        validate:"omitempty,datetime=2006-01-02"`
	Time        *string `json:"time"        validate:"omitempty,datetime=15:04"`
	Description *string `json:"description" validate:"omitempty,min=5"`
}

// EventHandler serves the organizer's event CRUD and attendee registration.
//
// Every route here sits behind RequireAuth + RequireRole, so the claims in
// the context already belong to a user who holds the route's role.
type EventHandler struct {
	events   *service.EventService
	validate *Validator
	errs     *ErrorResponder
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events *service.EventService, validate *Validator, errs *ErrorResponder) *EventHandler {
	return &EventHandler{
		events:   events,
		validate: validate,
		errs:     errs,
	}
}

// HandleCreate creates an event owned by the caller.
//
// HTTP: POST /events
// REQUEST BODY: {"name":"ExFrame overview","date":"2025-12-13","time":"12:45","description":"..."}
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, errNoClaims)
		return
	}

	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	event, err := h.events.Create(r.Context(), claims.UserID, service.EventInput{
		Name:        req.Name,
		Date:        req.Date,
		Time:        req.Time,
		Description: req.Description,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "event created", event)
}

// HandleList returns the caller's own events.
//
// HTTP: GET /events
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, errNoClaims)
		return
	}

	events, err := h.events.ListByOrganizer(r.Context(), claims.UserID)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", events)
}

// HandleUpdate patches one of the caller's events.
//
// HTTP: PUT /events/{id}
//
// Fields left out of the body keep their current value. An event owned by
// someone else answers 404, the same as a missing one.
func (h *EventHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, errNoClaims)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.validate.EventID(id); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	var req updateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	event, err := h.events.Update(r.Context(), claims.UserID, id, model.EventPatch{
		Name:        req.Name,
		Date:        req.Date,
		Time:        req.Time,
		Description: req.Description,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "event updated", event)
}

// HandleDelete removes one of the caller's events and its registrations.
//
// HTTP: DELETE /events/{id}
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, errNoClaims)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.validate.EventID(id); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	if err := h.events.Delete(r.Context(), claims.UserID, id); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "event deleted", nil)
}

// HandleRegister signs the calling attendee up for an event.
//
// HTTP: POST /events/{id}/register
func (h *EventHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, errNoClaims)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.validate.EventID(id); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	reg, err := h.events.Register(r.Context(), claims.UserID, id)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "registered for event", reg)
}

// HandleAttendees lists who registered for one of the caller's events.
//
// HTTP: GET /events/{id}/attendees
func (h *EventHandler) HandleAttendees(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, errNoClaims)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.validate.EventID(id); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	attendees, err := h.events.ListAttendees(r.Context(), claims.UserID, id)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", attendees)
}
