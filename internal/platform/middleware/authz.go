// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/foundry/internal/platform/request"
	"github.com/taibuivan/foundry/internal/platform/respond"
	"github.com/taibuivan/foundry/internal/platform/sec"
)

// SessionResolver turns a session token into the identity of a request.
//
// # Why an interface?
//
// Defining SessionResolver here decouples the middleware from the `auth` service
// implementation, allowing us to easily inject fakes during unit testing.
type SessionResolver interface {
	// Resolve returns nil (and no error) for anonymous requests.
	Resolve(context context.Context, token string) (*sec.Identity, error)
}

// Authenticate resolves the session cookie into an identity.
//
// # Flow
//  1. Read the session cookie; without one the request proceeds as anonymous.
//  2. Resolve it via [SessionResolver]. Unknown, expired and stale sessions
//     proceed as anonymous, marked with [ctxutil.WithStaleSession].
//  3. A failing session store aborts the request with a 500.
//  4. Inject the [*sec.Identity] into the request context for downstream use.
//
// # Parameters
//   - resolver: The SessionResolver instance.
//   - cookieName: Name of the session cookie.
//
// # Returns
//   - An [http.Handler] middleware.
func Authenticate(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Anonymous Access ───────────────────────────────────────────
			token := requestutil.SessionToken(request, cookieName)
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Session Resolution ─────────────────────────────────────────
			identity, err := resolver.Resolve(request.Context(), token)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			if identity == nil {
				next.ServeHTTP(writer, request.WithContext(ctxutil.WithStaleSession(request.Context())))
				return
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithIdentity(request.Context(), identity)
			logger := ctxutil.GetLogger(ctx).With(slog.Int64("user_id", identity.UserID))
			ctx = ctxutil.WithLogger(ctx, logger)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if _, err := requestutil.RequiredIdentity(request); err != nil {
			respond.Error(writer, request, err)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequirePermission blocks requests whose identity lacks permission.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. It implies
// [RequireAuth] so you don't need to mount both.
//
// # Flow
//  1. Anonymous requests get HTTP 401 (SESSION_INVALID when a stale cookie was sent).
//  2. Authenticated requests without the permission get HTTP 403 Forbidden.
func RequirePermission(permission sec.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			// ── 1. Authentication Check ───────────────────────────────────────
			identity, err := requestutil.RequiredIdentity(request)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !identity.Can(permission) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
