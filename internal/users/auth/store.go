// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/foundry/internal/platform/sec"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or store failures
	*/
	FindByID(context context.Context, id int64) (*User, error)

	/*
		FindByUsername returns the account with the given username.
		The lookup is performed on the normalised form of the name.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or store failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new user account and fills in its ID.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Conflict on a taken username, or store failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - newHash: string

		Returns:
		  - error: dberr.ErrNotFound or store failures
	*/
	UpdatePassword(context context.Context, userID int64, newHash string) error
}

// # Permission Data Access

// PermissionRepository resolves what a user may do.
type PermissionRepository interface {

	/*
		EffectivePermissions returns the union of the permissions of every group
		the user belongs to. A user without groups gets an empty set.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - sec.PermissionSet: Distinct permissions
		  - error: Store failures
	*/
	EffectivePermissions(context context.Context, userID int64) (sec.PermissionSet, error)
}

// # Session Data Access

// ExpiredSessionDeleter is the narrow contract the [Sweeper] depends on.
type ExpiredSessionDeleter interface {

	/*
		DeleteExpired physically removes every session whose expiry is strictly
		before now, in bounded batches.

		Parameters:
		  - context: context.Context
		  - now: time.Time

		Returns:
		  - int64: Number of removed sessions
		  - error: Store failures
	*/
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}

// SessionRepository defines the data access contract for login sessions.
//
// Tokens cross this boundary in raw form; implementations only ever persist
// their SHA-256 digest.
type SessionRepository interface {
	ExpiredSessionDeleter

	/*
		Create generates a fresh token, persists the session under it and sets
		session.Token. The session becomes readable once Create returns.

		Parameters:
		  - context: context.Context
		  - session: *Session (UserID, Fingerprint, CreatedAt and ExpiresAt set)

		Returns:
		  - error: ErrTokenCollision or store failures
	*/
	Create(context context.Context, session *Session) error

	/*
		Read returns the stored session for token, expired or not.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - *Session: Hydrated entity
		  - error: ErrSessionNotFound or store failures
	*/
	Read(context context.Context, token string) (*Session, error)

	/*
		Touch moves the session expiry to expiresAt.

		Parameters:
		  - context: context.Context
		  - token: string
		  - expiresAt: time.Time

		Returns:
		  - error: ErrSessionNotFound or store failures
	*/
	Touch(context context.Context, token string, expiresAt time.Time) error

	/*
		Delete removes the session. Deleting an absent session is not an error.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - error: Store failures
	*/
	Delete(context context.Context, token string) error

	/*
		DeleteByUser removes every session of the user.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - int64: Number of removed sessions
		  - error: Store failures
	*/
	DeleteByUser(context context.Context, userID int64) (int64, error)
}
