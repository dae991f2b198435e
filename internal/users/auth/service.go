// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/abtime"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/ctxutil"
	"github.com/taibuivan/foundry/internal/platform/dberr"
	"github.com/taibuivan/foundry/internal/platform/sec"
)

// # Contracts & Types

// Service drives the per-request authentication state machine.
//
// A request is either Anonymous (nil identity) or Authenticated. Login moves a
// client from Anonymous to Authenticated by issuing a session; every later
// request re-derives the identity from the session store; logout, expiry and
// password changes move it back to Anonymous.
//
// # Review Process
//
// This service is critical for security. Any changes to credential checks or
// session validity rules must be reviewed by the security team.
type Service struct {
	backend  Backend
	sessions SessionRepository
	clock    abtime.AbstractTime
	ttl      time.Duration
}

// Option customises a [Service].
type Option func(service *Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock abtime.AbstractTime) Option {
	return func(service *Service) { service.clock = clock }
}

// WithSessionTTL overrides [DefaultSessionTTL].
func WithSessionTTL(ttl time.Duration) Option {
	return func(service *Service) {
		if ttl > 0 {
			service.ttl = ttl
		}
	}
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(backend Backend, sessions SessionRepository, options ...Option) *Service {
	service := &Service{
		backend:  backend,
		sessions: sessions,
		clock:    abtime.NewRealTime(),
		ttl:      DefaultSessionTTL,
	}

	for _, option := range options {
		option(service)
	}

	return service
}

// SessionTTL returns the sliding lifetime of a session.
func (service *Service) SessionTTL() time.Duration {
	return service.ttl
}

// # Login Flow

/*
Authenticate checks submitted credentials.

Parameters:
  - context: context.Context
  - credentials: Credentials

Returns:
  - *User: The authenticated account
  - error: ErrUserNotFound, ErrPasswordIncorrect or a STORE_UNAVAILABLE error
*/
func (service *Service) Authenticate(context context.Context, credentials Credentials) (*User, error) {
	user, err := service.backend.Authenticate(context, credentials)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrPasswordIncorrect) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_authenticate_failed: %w", err)
	}

	return user, nil
}

/*
BeginSession issues a fresh session for an authenticated user.

Description: The session fingerprint is the user's current password hash; it
expires DefaultSessionTTL (or the configured TTL) from now.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - *Session: The created session, with its raw Token set
  - error: ErrTokenCollision or store failures
*/
func (service *Service) BeginSession(context context.Context, user *User) (*Session, error) {
	now := service.clock.Now()

	session := &Session{
		UserID:      user.ID,
		Fingerprint: user.PasswordHash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(service.ttl),
	}

	if err := service.sessions.Create(context, session); err != nil {
		return nil, fmt.Errorf("auth_service_begin_session_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("session_created",
		slog.Int64("user_id", user.ID),
		slog.Time("expires_at", session.ExpiresAt),
	)

	return session, nil
}

// # Request Resolution

/*
Resolve turns a session token into the identity of the request.

Description: Empty, unknown, expired and fingerprint-mismatched tokens all
resolve to Anonymous (nil, nil). Mismatched or expired rows are left for the
sweeper. A resolved session has its expiry slid forward.

Parameters:
  - context: context.Context
  - token: string (raw cookie value)

Returns:
  - *sec.Identity: nil when anonymous
  - error: Store failures only
*/
func (service *Service) Resolve(context context.Context, token string) (*sec.Identity, error) {
	if token == "" {
		return nil, nil
	}

	session, err := service.sessions.Read(context, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_service_resolve_read_failed: %w", err)
	}

	now := service.clock.Now()
	if session.Expired(now) {
		return nil, nil
	}

	user, err := service.backend.GetUser(context, session.UserID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_service_resolve_user_failed: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(session.Fingerprint)) != 1 {
		ctxutil.GetLogger(context).Debug("session_fingerprint_mismatch", slog.Int64("user_id", user.ID))
		return nil, nil
	}

	session.ExpiresAt = now.Add(service.ttl)
	identity, err := service.Identify(context, user, session)
	if err != nil {
		return nil, err
	}

	if err := service.sessions.Touch(context, token, session.ExpiresAt); err != nil {
		// Logged out or swept between Read and Touch.
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_service_resolve_touch_failed: %w", err)
	}

	return identity, nil
}

/*
Identify builds the identity of user for session with freshly loaded permissions.

Parameters:
  - context: context.Context
  - user: *User
  - session: *Session

Returns:
  - *sec.Identity: The authenticated principal
  - error: Store failures
*/
func (service *Service) Identify(context context.Context, user *User, session *Session) (*sec.Identity, error) {
	permissions, err := service.backend.Permissions(context, user)
	if err != nil {
		return nil, fmt.Errorf("auth_service_permissions_failed: %w", err)
	}

	return &sec.Identity{
		UserID:           user.ID,
		Username:         user.Username,
		Permissions:      permissions,
		SessionExpiresAt: session.ExpiresAt,
	}, nil
}

// PermissionsOf lists the permission names of identity in sorted order.
// An anonymous (nil) identity has none.
func (service *Service) PermissionsOf(identity *sec.Identity) []string {
	if identity == nil {
		return []string{}
	}
	return identity.Permissions.Names()
}

// # Logout & Credential Changes

/*
Logout deletes the session behind token. It is idempotent.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Store failures
*/
func (service *Service) Logout(context context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := service.sessions.Delete(context, token); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	return nil
}

/*
ChangePassword verifies the current password and stores the new one.

Description: The new hash invalidates every session issued under the old one,
including the caller's. Callers that want to stay signed in must begin a new
session with the returned user.

Parameters:
  - context: context.Context
  - userID: int64
  - currentPassword: string
  - newPassword: string

Returns:
  - *User: The account with its new hash
  - error: ErrPasswordIncorrect, validation or store failures
*/
func (service *Service) ChangePassword(context context.Context, userID int64, currentPassword, newPassword string) (*User, error) {
	if len(newPassword) < MinPasswordLength {
		return nil, apperr.ValidationError("Password is too short",
			apperr.FieldError{Field: FieldNewPassword, Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength)},
		)
	}

	user, err := service.backend.GetUser(context, userID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_change_password_lookup_failed: %w", err)
	}

	if _, err := service.backend.Authenticate(context, Credentials{Username: user.Username, Password: currentPassword}); err != nil {
		if errors.Is(err, ErrPasswordIncorrect) || errors.Is(err, ErrUserNotFound) {
			return nil, ErrPasswordIncorrect
		}
		return nil, fmt.Errorf("auth_service_change_password_verify_failed: %w", err)
	}

	updated, err := service.backend.SetPassword(context, userID, newPassword)
	if err != nil {
		return nil, fmt.Errorf("auth_service_change_password_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("password_changed", slog.Int64("user_id", userID))

	return updated, nil
}
