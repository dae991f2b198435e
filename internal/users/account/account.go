// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account provisions users, groups and permission grants.

It is the administrative side of access control: creating accounts, resetting
passwords, placing users in groups, granting permissions to groups and forcing
a user's sessions out of the session store.

# Architecture

  - Entities: Group, Summary (DTO).
  - Domain: This package depends on the auth package for the User entity and
    its repositories.
  - Security: Every HTTP endpoint requires the users.manage permission.
*/
package account

import (
	"context"

	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/users/auth"
)

// PermissionManageUsers guards the administrative endpoints.
const PermissionManageUsers sec.Permission = "users.manage"

// Request and path field names.
const (
	FieldUsername   = "username"
	FieldPassword   = "password"
	FieldGroup      = "group"
	FieldPermission = "permission"
)

// # Domain Entities

// Group is a named collection of users sharing the same permissions.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Summary is an administrative view of one account.
type Summary struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Groups      []string `json:"groups"`
	Permissions []string `json:"permissions"`

	// NeedsRehash reports a hash produced with weaker settings than the
	// current ones. Only an explicit password reset upgrades it.
	NeedsRehash bool `json:"needs_rehash"`
}

// # Repository Contracts

// GroupRepository defines the persistence contract for groups and their grants.
type GroupRepository interface {
	/*
		Ensure returns the group called name, creating it when missing.

		Parameters:
		  - context: context.Context
		  - name: string

		Returns:
		  - *Group: Existing or new group
		  - error: Storage failures
	*/
	Ensure(context context.Context, name string) (*Group, error)

	/*
		FindByName retrieves a group by its unique name.

		Returns:
		  - *Group: Hydrated group
		  - error: dberr.ErrNotFound or storage failures
	*/
	FindByName(context context.Context, name string) (*Group, error)

	// AddMember places userID in groupID. Repeats are no-ops.
	AddMember(context context.Context, groupID, userID int64) error

	// RemoveMember takes userID out of groupID. Absent memberships are ignored.
	RemoveMember(context context.Context, groupID, userID int64) error

	// Grant gives permission to groupID, creating the permission when missing.
	Grant(context context.Context, groupID int64, permission sec.Permission) error

	// Revoke withdraws permission from groupID. Absent grants are ignored.
	Revoke(context context.Context, groupID int64, permission sec.Permission) error

	/*
		ListByUser returns the groups userID belongs to, ordered by name.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - []Group: Possibly empty list
		  - error: Storage failures
	*/
	ListByUser(context context.Context, userID int64) ([]Group, error)
}

// SessionRevoker removes every session of a user. [auth.SessionRepository]
// implementations satisfy it.
type SessionRevoker interface {
	DeleteByUser(context context.Context, userID int64) (int64, error)
}

// Dependencies bundles the collaborators of a [Service].
type Dependencies struct {
	Users       auth.UserRepository
	Permissions auth.PermissionRepository
	Groups      GroupRepository
	Sessions    SessionRevoker
	Hasher      sec.PasswordHasher
}
