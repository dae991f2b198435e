// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the session-authenticated access-control layer.

It defines the core domain entities (User, Session, Credentials) and the logic
for credential verification, permission resolution and the session lifecycle.

# Architecture

  - Service: the state machine (Anonymous <-> Authenticated) driven by login,
    per-request resolution and logout.
  - Backend: pluggable credential source; [DatabaseBackend] is the only one today.
  - Repositories: PostgreSQL for users and permissions; PostgreSQL or Redis for sessions.
  - Sweeper: background compaction of expired session rows.
*/
package auth

import (
	"fmt"
	"log/slog"
	"time"
)

// # Domain Entities

// User is a registered account.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Explicitly omitted from JSON for security.
}

// LogValue keeps the password hash out of structured logs.
func (user User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
		slog.String("password_hash", "[redacted]"),
	)
}

// Credentials is a transient login attempt. It is never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Next     string `json:"next,omitempty"`
}

// LogValue keeps the password out of structured logs.
func (credentials Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", credentials.Username),
		slog.String("password", "[redacted]"),
	)
}

// String keeps the password out of fmt output.
func (credentials Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: [redacted]}", credentials.Username)
}

// Session is a server-side login session.
//
// Fingerprint is the user's password hash at creation time. The session is only
// valid while it still equals the stored hash, so a password change invalidates
// every outstanding session without touching the session rows.
type Session struct {
	Token       string    `json:"-"` // Raw token; only set on the creating call path.
	UserID      int64     `json:"user_id"`
	Fingerprint string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is logically expired at now.
// Expired rows can still exist in storage until the sweeper removes them.
func (session *Session) Expired(now time.Time) bool {
	return !now.Before(session.ExpiresAt)
}

// # Field Identifiers

// Global field names for validation and response payloads in the authentication domain.
const (
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldNext            = "next"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldDeleted         = "deleted"
)
