// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/taibuivan/foundry/internal/platform/dberr"
	"github.com/taibuivan/foundry/internal/platform/sec"
)

// # Credential Backend

// Backend is the pluggable source of credentials and permissions.
//
// The [Service] only depends on this interface, so an alternate credential
// source can be swapped in without touching the session state machine.
type Backend interface {

	/*
		Authenticate checks a username and password.

		Returns:
		  - *User: The matching account
		  - error: ErrUserNotFound, ErrPasswordIncorrect or store failures
	*/
	Authenticate(context context.Context, credentials Credentials) (*User, error)

	/*
		GetUser loads an account by ID.

		Returns:
		  - *User: The account
		  - error: dberr.ErrNotFound or store failures
	*/
	GetUser(context context.Context, userID int64) (*User, error)

	/*
		Permissions returns the effective permissions of user.

		Returns:
		  - sec.PermissionSet: Possibly empty set
		  - error: Store failures
	*/
	Permissions(context context.Context, user *User) (sec.PermissionSet, error)

	/*
		SetPassword replaces the password of userID and returns the updated account.

		Returns:
		  - *User: The account with its new hash
		  - error: dberr.ErrNotFound or store failures
	*/
	SetPassword(context context.Context, userID int64, password string) (*User, error)
}

// DatabaseBackend is the [Backend] over the user and permission repositories.
type DatabaseBackend struct {
	users       UserRepository
	permissions PermissionRepository
	hasher      sec.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewDatabaseBackend wires the repositories and the password hasher together.
func NewDatabaseBackend(users UserRepository, permissions PermissionRepository, hasher sec.PasswordHasher) *DatabaseBackend {
	return &DatabaseBackend{
		users:       users,
		permissions: permissions,
		hasher:      hasher,
	}
}

/*
Authenticate resolves the account and verifies its password.

Description: An unknown username still costs one full hash verification
against a throwaway hash, so response time does not reveal whether the
account exists.

Parameters:
  - context: context.Context
  - credentials: Credentials

Returns:
  - *User: The authenticated account
  - error: ErrUserNotFound, ErrPasswordIncorrect or store failures
*/
func (backend *DatabaseBackend) Authenticate(context context.Context, credentials Credentials) (*User, error) {
	user, err := backend.users.FindByUsername(context, credentials.Username)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			backend.hasher.Verify(credentials.Password, backend.dummy())
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth_backend_find_user_failed: %w", err)
	}

	if !backend.hasher.Verify(credentials.Password, user.PasswordHash) {
		return nil, ErrPasswordIncorrect
	}

	return user, nil
}

// GetUser loads an account by ID.
func (backend *DatabaseBackend) GetUser(context context.Context, userID int64) (*User, error) {
	user, err := backend.users.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("auth_backend_get_user_failed: %w", err)
	}
	return user, nil
}

// Permissions returns the effective permissions of user.
func (backend *DatabaseBackend) Permissions(context context.Context, user *User) (sec.PermissionSet, error) {
	permissions, err := backend.permissions.EffectivePermissions(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_backend_permissions_failed: %w", err)
	}
	return permissions, nil
}

/*
SetPassword hashes password and stores it for userID.

Description: Every session created under the previous hash stops resolving
as soon as the new hash is stored.

Parameters:
  - context: context.Context
  - userID: int64
  - password: string

Returns:
  - *User: The account with its new hash
  - error: dberr.ErrNotFound or store failures
*/
func (backend *DatabaseBackend) SetPassword(context context.Context, userID int64, password string) (*User, error) {
	hash, err := backend.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("auth_backend_hash_failed: %w", err)
	}

	if err := backend.users.UpdatePassword(context, userID, hash); err != nil {
		return nil, fmt.Errorf("auth_backend_update_password_failed: %w", err)
	}

	return backend.GetUser(context, userID)
}

// dummy returns a real hash used to equalise timing for unknown usernames.
func (backend *DatabaseBackend) dummy() string {
	backend.dummyOnce.Do(func() {
		hash, err := backend.hasher.Hash("foundry-timing-equaliser")
		if err == nil {
			backend.dummyHash = hash
		}
	})
	return backend.dummyHash
}
