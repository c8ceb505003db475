// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository INTERFACES, never *sqlite.DB or *postgres.DB, so
// tests run them against in-memory fakes and production picks a backend in
// one place (internal/server).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/auth"
	"github.com/sakif/vem/internal/model"
	"github.com/sakif/vem/internal/repository"
)

// Messages for authentication failures. They never say which part was
// wrong (unknown email vs bad password).
const (
	msgInvalidCredentials = "invalid credentials"
	msgRoleNotGranted     = "role not granted"
	msgAccessDenied       = "access denied"
)

// SignupInput is what a new account (or a new role for an existing one) needs.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// LoginResult is a successful login: the principal and its signed token.
type LoginResult struct {
	Token     string
	Principal model.Principal
}

// IdentityService owns signup, login, tokens and role checks.
//
// The signing secret lives inside the injected TokenService; nothing here
// reads configuration or globals.
type IdentityService struct {
	users     repository.UserRepository
	roles     repository.RoleRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users:     users,
		roles:     roles,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// compile-time checks: the authorization middleware consults this service.
var (
	_ auth.RoleVerifier  = (*IdentityService)(nil)
	_ auth.TokenVerifier = (*IdentityService)(nil)
)

// Signup registers email under in.Role.
//
// STATE MACHINE:
//   - email unknown            → create user + first role in ONE transaction
//   - email known, role new    → add the role; password and name are NOT touched
//   - email known, role held   → Conflict "already registered as <role>"
//
// Two concurrent signups for a brand-new email can both see "unknown". The
// store's UNIQUE(email) then fails the slower one with a Duplicate error,
// which reaches the caller as a Conflict.
func (s *IdentityService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	if in.Name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if in.Email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if !in.Role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be one of organizer, attendee")
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return s.createUser(ctx, in)
	case err != nil:
		s.logger.Error("signup lookup failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("signup: looking up email: %w", err)
	}

	return s.addRole(ctx, existing, in.Role)
}

func (s *IdentityService) createUser(ctx context.Context, in SignupInput) (*model.User, error) {
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	user := &model.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user, in.Role); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to create user", slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("signup: creating user: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("role", string(in.Role)),
	)
	return user, nil
}

func (s *IdentityService) addRole(ctx context.Context, user *model.User, role model.Role) (*model.User, error) {
	held, err := s.roles.RolesOf(ctx, user.ID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("signup: listing roles: %w", err)
	}
	if slices.Contains(held, role) {
		return nil, alreadyRegistered(role)
	}

	if err := s.roles.AssignRole(ctx, user.ID, role); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Lost a race with an identical signup.
			return nil, alreadyRegistered(role)
		}
		s.logger.Error("failed to assign role", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("signup: assigning role: %w", err)
	}

	s.logger.Info("role added",
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)
	return user, nil
}

func alreadyRegistered(role model.Role) error {
	return apperror.Conflict(fmt.Sprintf("already registered as %s", role))
}

// Authenticate checks email + password + role and returns the principal.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string, role model.Role) (*model.Principal, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("login: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	held, err := s.roles.RolesOf(ctx, user.ID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("login: listing roles: %w", err)
	}
	if !slices.Contains(held, role) {
		return nil, apperror.Unauthorized(msgRoleNotGranted)
	}

	return &model.Principal{UserID: user.ID, Role: role}, nil
}

// Login authenticates and issues a token for audience (the requested host).
// The token's subject is the user's email.
func (s *IdentityService) Login(ctx context.Context, email, password string, role model.Role, audience string) (*LoginResult, error) {
	p, err := s.Authenticate(ctx, email, password, role)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(audience, normalizeEmail(email), p.UserID, p.Role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.logger.Info("user logged in",
		slog.String("user_id", p.UserID),
		slog.String("role", string(p.Role)),
	)
	return &LoginResult{Token: token, Principal: *p}, nil
}

// VerifyToken returns the claims of a valid token issued for audience, or
// one of auth.ErrBadSignature, auth.ErrTokenExpired, auth.ErrWrongAudience,
// auth.ErrMalformedToken. It backs auth.RequireAuth.
func (s *IdentityService) VerifyToken(token, audience string) (*auth.Claims, error) {
	return s.tokens.VerifyForAudience(token, audience)
}

// VerifyRole passes only if the token claimed expected AND the registry
// confirms userID holds it. A forged or stale claim is not enough.
func (s *IdentityService) VerifyRole(ctx context.Context, userID string, claimed, expected model.Role) error {
	if claimed != expected {
		return apperror.Forbidden(msgAccessDenied)
	}

	held, err := s.roles.RolesOf(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Forbidden(msgAccessDenied)
		}
		s.logger.Error("role lookup failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return fmt.Errorf("verifying role: %w", err)
	}
	if !slices.Contains(held, expected) {
		return apperror.Forbidden(msgAccessDenied)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
