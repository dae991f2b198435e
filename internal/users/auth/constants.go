// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"time"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/sec"
)

// # Session Constraints

const (
	// DefaultSessionTTL is how long a session stays valid after its last use.
	DefaultSessionTTL = 1 * time.Hour

	// DefaultSweepInterval is the pause between two sweeper passes.
	DefaultSweepInterval = 60 * time.Second

	// SessionTokenLength is the byte length of the random session token.
	SessionTokenLength = 32

	// maxCreateAttempts bounds token regeneration when a freshly generated token
	// is already taken.
	maxCreateAttempts = 3

	// redisRetentionGrace keeps an expired Redis session readable for a while so
	// the sweeper, not the key TTL, is what normally removes it.
	redisRetentionGrace = 24 * time.Hour

	// MinPasswordLength is enforced on password changes.
	MinPasswordLength = 8
)

// # Permissions

// PermissionManageSessions allows triggering the expiry sweep on demand.
const PermissionManageSessions sec.Permission = "sessions.manage"

// # Sentinel Errors

var (
	// ErrUserNotFound means the submitted username matches no account.
	ErrUserNotFound = apperr.UserNotFound("No account with this username")

	// ErrPasswordIncorrect means the account exists but the password is wrong.
	ErrPasswordIncorrect = apperr.PasswordIncorrect("Incorrect password")

	// ErrSessionNotFound means the token matches no stored session.
	ErrSessionNotFound = errors.New("auth: session not found")

	// ErrTokenCollision means every generated token was already taken.
	ErrTokenCollision = errors.New("auth: could not generate a unique session token")
)
