// Package auth provides JWT issuance/verification, password hashing and the
// HTTP middleware that guards authenticated routes.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A user signs up once per role (POST /users/register)
//  2. POST /users/login checks email + password + role and returns a JWT
//  3. The client sends "Authorization: Bearer <jwt>" on every later call
//  4. RequireAuth verifies the token and puts its Claims in the context
//  5. RequireRole re-checks the claimed role against the role registry
//
// WHY JWT?
// JWT is stateless. Everything the server needs (userId, role, expiry) is in
// the signed token, so verifying a request costs one HMAC and no DB lookup.
// The role claim is still confirmed against storage by RequireRole, because a
// token minted before a role change must not outlive that change.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"iss":..., "aud":..., "sub":email, "userId":..., "role":..., "exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

// DefaultTTL is how long an access token stays valid.
const DefaultTTL = time.Hour

// Token verification failures. All are client errors: a bad signature or
// an undecodable token is a 400; an expired token or one minted for another
// host is a 401. Compare with errors.Is.
var (
	ErrBadSignature = &apperror.AppError{
		Err:     apperror.ErrBadRequest,
		Message: "invalid token signature",
	}
	ErrMalformedToken = &apperror.AppError{
		Err:     apperror.ErrBadRequest,
		Message: "malformed token",
	}
	ErrTokenExpired = &apperror.AppError{
		Err:     apperror.ErrUnauthorized,
		Message: "token expired",
	}
	ErrWrongAudience = &apperror.AppError{
		Err:     apperror.ErrUnauthorized,
		Message: "token not issued for this host",
	}
)

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret, the issuer stamped into every token and the
// token lifetime. All three come from configuration and are injected here;
// there is no package-level secret.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a TokenService.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
// A zero ttl falls back to DefaultTTL.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("auth: JWT issuer must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Claims is the JWT payload: the identity custom claims plus the registered
// ones (iss, aud, sub, iat, exp).
//
// Subject carries the user's email. UserID and Role are what the rest of
// the application actually acts on.
type Claims struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issue creates and signs a token for userID acting as role.
// audience is the host the token was requested for; subject is the email.
func (s *TokenService) Issue(audience, subject, userID string, role model.Role) (string, error) {
	return s.IssueWithDuration(audience, subject, userID, role, s.ttl)
}

// IssueWithDuration is Issue with an explicit lifetime.
// Tests use a negative duration to mint already-expired tokens.
func (s *TokenService) IssueWithDuration(audience, subject, userID string, role model.Role, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses a token string and returns its claims. The audience is not
// checked; use VerifyForAudience on the request path.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and carries an expiry at all
//   - Issuer matches this service
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// Failures come back as one of ErrBadSignature, ErrTokenExpired or
// ErrMalformedToken, wrapped with the library's reason.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	return s.verify(tokenStr)
}

// VerifyForAudience is Verify plus an "aud" check: a token minted for one
// host is rejected with ErrWrongAudience under another.
func (s *TokenService) VerifyForAudience(tokenStr, audience string) (*Claims, error) {
	return s.verify(tokenStr, jwt.WithAudience(audience))
}

func (s *TokenService) verify(tokenStr string, extra ...jwt.ParserOption) (*Claims, error) {
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	}, extra...)

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		opts...,
	)
	if err != nil {
		return nil, classify(err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}
	if c.UserID == "" || !c.Role.Valid() {
		return nil, fmt.Errorf("%w: missing identity claims", ErrMalformedToken)
	}

	return c, nil
}

// classify folds the jwt library's error zoo into the token errors.
// Expiry wins over audience when both fail.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrWrongAudience, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
