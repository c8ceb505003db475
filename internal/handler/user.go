package handler

import (
	"net/http"

	"github.com/sakif/vem/internal/auth"
	"github.com/sakif/vem/internal/model"
	"github.com/sakif/vem/internal/service"
)

type registerRequest struct {
	Name     string `json:"name"     validate:"required,min=3"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,strongpassword"`
	Role     string `json:"role"     validate:"required,oneof=organizer attendee"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"required,oneof=organizer attendee"`
}

type userResponse struct {
	UserID string     `json:"userId"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

type loginResponse struct {
	Token  string     `json:"token"`
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
}

// UserHandler serves signup, login and the attendee's own event list.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → POST /users/register
//   - HandleLogin          → POST /users/login
//   - HandleAttendeeEvents → GET  /users/attendee/events (attendee only)
type UserHandler struct {
	identity *service.IdentityService
	events   *service.EventService
	validate *Validator
	errs     *ErrorResponder
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(
	identity *service.IdentityService,
	events *service.EventService,
	validate *Validator,
	errs *ErrorResponder,
) *UserHandler {
	return &UserHandler{
		identity: identity,
		events:   events,
		validate: validate,
		errs:     errs,
	}
}

// HandleRegister creates an account, or adds a role to an existing one.
//
// HTTP: POST /users/register
// REQUEST BODY: {"name":"Ann","email":"ann@mail.co","password":"Str0ng!Pass","role":"organizer"}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	role := model.Role(req.Role)
	user, err := h.identity.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "user registered", userResponse{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   role,
	})
}

// HandleLogin checks credentials for one role and returns a bearer token.
//
// HTTP: POST /users/login
//
// The token's audience is the Host the client called, so a token minted for
// one deployment name is not silently accepted under another.
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	res, err := h.identity.Login(r.Context(), req.Email, req.Password, model.Role(req.Role), r.Host)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", loginResponse{
		Token:  res.Token,
		UserID: res.Principal.UserID,
		Role:   res.Principal.Role,
	})
}

// HandleAttendeeEvents lists the events the caller registered for.
//
// HTTP: GET /users/attendee/events
func (h *UserHandler) HandleAttendeeEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, errNoClaims)
		return
	}

	events, err := h.events.ListForAttendee(r.Context(), claims.UserID)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", events)
}
