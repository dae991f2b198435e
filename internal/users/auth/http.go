// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/constants"
	"github.com/taibuivan/foundry/internal/platform/ctxutil"
	"github.com/taibuivan/foundry/internal/platform/middleware"
	requestutil "github.com/taibuivan/foundry/internal/platform/request"
	"github.com/taibuivan/foundry/internal/platform/respond"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/platform/validate"
	"github.com/taibuivan/foundry/pkg/username"
)

// invalidCredentials is the only failure a client sees under the generic policy.
const invalidCredentials = "Invalid credentials."

// # Definitions & Constructors

// SessionSweeper runs an on-demand expiry sweep. [*Sweeper] implements it.
type SessionSweeper interface {
	SweepOnce(context context.Context) (int64, error)
}

// HandlerOptions carries the transport policy of the authentication endpoints.
type HandlerOptions struct {
	// CookieName names the session cookie.
	CookieName string

	// CookieSecure sets the Secure attribute on the session cookie.
	CookieSecure bool

	// DetailedFeedback lets a failed login say whether the username or the
	// password was wrong. Off by default.
	DetailedFeedback bool

	// LoginLimiter, when set, guards POST /login.
	LoginLimiter func(http.Handler) http.Handler
}

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// Login, logout, identity introspection, password change and the on-demand
// session sweep.
type Handler struct {
	authService *Service
	sweeper     SessionSweeper
	options     HandlerOptions
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, sweeper SessionSweeper, options HandlerOptions) *Handler {
	if options.CookieName == "" {
		options.CookieName = "foundry_session"
	}
	return &Handler{authService: service, sweeper: sweeper, options: options}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login           : Verifies credentials and sets the session cookie.
//   - POST /logout          : Deletes the session and clears the cookie.
//   - GET  /me              : Returns the current identity.
//   - POST /change-password : Rotates the password and re-issues the session.
//   - POST /sessions/sweep  : Deletes expired sessions now (sessions.manage).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	login := http.Handler(http.HandlerFunc(handler.login))
	if handler.options.LoginLimiter != nil {
		login = handler.options.LoginLimiter(login)
	}
	router.Method(http.MethodPost, "/login", login)
	router.Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.me)
		r.Post("/change-password", handler.changePassword)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(PermissionManageSessions))
		r.Post("/sessions/sweep", handler.sweep)
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// # Response Payloads

type userView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type identityResponse struct {
	User        userView  `json:"user"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	Next        string    `json:"next,omitempty"`
}

func (handler *Handler) identityView(identity *sec.Identity) identityResponse {
	return identityResponse{
		User:        userView{ID: identity.UserID, Username: identity.Username},
		Permissions: handler.authService.PermissionsOf(identity),
		ExpiresAt:   identity.SessionExpiresAt,
	}
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials, creates a server-side session and sets the
session cookie. Any session the client already carried is discarded first.

Request:
  - Body: loginRequest (Username, Password, Next)

Response:
  - 200: identityResponse: User, permissions and the redirect target
  - 400: VALIDATION_ERROR: Missing fields or an off-site redirect
  - 401: Invalid credentials (code depends on the feedback policy)
  - 500: STORE_UNAVAILABLE
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MaxLen(FieldUsername, input.Username, username.MaxLength).
		Required(FieldPassword, input.Password).
		LocalPath(FieldNext, input.Next)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	credentials := Credentials{Username: input.Username, Password: input.Password, Next: input.Next}
	logger := ctxutil.GetLogger(request.Context())

	user, err := handler.authService.Authenticate(request.Context(), credentials)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrPasswordIncorrect) {
			logger.Warn("login_failed", slog.Any("credentials", credentials), slog.String("reason", apperr.As(err).Code))
			respond.Error(writer, request, handler.loginFailure(err))
			return
		}
		respond.Error(writer, request, err)
		return
	}

	// Drop the session the client arrived with, if any.
	if previous := requestutil.SessionToken(request, handler.options.CookieName); previous != "" {
		if err := handler.authService.Logout(request.Context(), previous); err != nil {
			logger.Warn("previous_session_cleanup_failed", slog.Any("error", err))
		}
	}

	session, err := handler.authService.BeginSession(request.Context(), user)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	identity, err := handler.authService.Identify(request.Context(), user, session)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, session.Token)

	response := handler.identityView(identity)
	response.Next = input.Next
	if response.Next == "" {
		response.Next = "/"
	}

	respond.OKWithMessage(writer, response, fmt.Sprintf("Successfully logged in as %s.", user.Username))
}

// loginFailure applies the feedback policy to a credential error.
func (handler *Handler) loginFailure(err error) error {
	if handler.options.DetailedFeedback {
		return err
	}
	return apperr.Unauthorized(invalidCredentials)
}

/*
Logout terminates the current user session.

POST /api/v1/auth/logout

Description: Deletes the session (if any) and clears the session cookie.
Calling it without a session is not an error.

Response:
  - 204: No Content: Session terminated
  - 500: STORE_UNAVAILABLE
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	token := requestutil.SessionToken(request, handler.options.CookieName)

	if err := handler.authService.Logout(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearSessionCookie(writer)
	respond.NoContent(writer)
}

/*
Me returns the identity of the current request.

GET /api/v1/auth/me

Response:
  - 200: identityResponse
  - 401: UNAUTHORIZED: Anonymous request
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.identityView(identity))
}

/*
ChangePassword updates the authenticated user's password.

POST /api/v1/auth/change-password

Description: Verifies the current password, stores the new one (which
invalidates every existing session of the user) and signs the caller in again
with a fresh session.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: identityResponse: The new session's identity
  - 400: VALIDATION_ERROR: Weak password
  - 401: PASSWORD_INCORRECT or UNAUTHORIZED
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, MinPasswordLength).
		Custom(FieldNewPassword, input.NewPassword == input.CurrentPassword, "Must differ from the current password")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.ChangePassword(request.Context(), identity.UserID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// The old session no longer resolves; remove its row instead of waiting for the sweeper.
	if err := handler.authService.Logout(request.Context(), requestutil.SessionToken(request, handler.options.CookieName)); err != nil {
		ctxutil.GetLogger(request.Context()).Warn("previous_session_cleanup_failed", slog.Any("error", err))
	}

	session, err := handler.authService.BeginSession(request.Context(), user)
	if err != nil {
		handler.clearSessionCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	fresh, err := handler.authService.Identify(request.Context(), user, session)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, session.Token)
	respond.OKWithMessage(writer, handler.identityView(fresh), "Password changed.")
}

/*
Sweep deletes expired sessions immediately.

POST /api/v1/auth/sessions/sweep

Response:
  - 200: {deleted}
  - 403: FORBIDDEN: Missing sessions.manage
*/
func (handler *Handler) sweep(writer http.ResponseWriter, request *http.Request) {
	deleted, err := handler.sweeper.SweepOnce(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int64{FieldDeleted: deleted})
}

// # Cookie Helpers

// setSessionCookie issues the session cookie. It has no Expires attribute;
// the server-side sliding expiry alone decides validity.
func (handler *Handler) setSessionCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     handler.options.CookieName,
		Value:    token,
		Path:     constants.SessionCookiePath,
		Secure:   handler.options.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (handler *Handler) clearSessionCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     handler.options.CookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		Secure:   handler.options.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
