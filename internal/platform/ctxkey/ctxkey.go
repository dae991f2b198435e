// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey holds the context keys shared by middleware and handlers.
// Read and write them through ctxutil, never directly.
package ctxkey

// contextKey is unexported so no other package can mint a colliding key.
type contextKey int

const (
	// KeyRequestID carries the X-Request-ID correlation value.
	KeyRequestID contextKey = iota + 1

	// KeyIdentity carries the *sec.Identity resolved from the session cookie.
	KeyIdentity

	// KeyLogger carries the request-scoped *slog.Logger.
	KeyLogger

	// KeyStaleSession marks a request whose session cookie no longer resolves.
	KeyStaleSession
)
