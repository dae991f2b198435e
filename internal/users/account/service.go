// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/platform/validate"
	"github.com/taibuivan/foundry/internal/users/auth"
	"github.com/taibuivan/foundry/pkg/username"
)

// # Service Layer

// Service orchestrates administrative changes to accounts and grants.
//
// Password resets and revocations act on the session store immediately, so an
// operator can rely on the affected user being signed out once a call returns.
type Service struct {
	users       auth.UserRepository
	permissions auth.PermissionRepository
	groups      GroupRepository
	sessions    SessionRevoker
	hasher      sec.PasswordHasher
	logger      *slog.Logger
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(dependencies Dependencies, logger *slog.Logger) *Service {
	return &Service{
		users:       dependencies.Users,
		permissions: dependencies.Permissions,
		groups:      dependencies.Groups,
		sessions:    dependencies.Sessions,
		hasher:      dependencies.Hasher,
		logger:      logger,
	}
}

// # Account Provisioning

/*
CreateUser registers a new account.

Parameters:
  - context: context.Context
  - name: string (normalised before storage)
  - password: string

Returns:
  - *auth.User: The stored account
  - error: Validation, conflict or storage failures
*/
func (service *Service) CreateUser(context context.Context, name, password string) (*auth.User, error) {
	validator := &validate.Validator{}
	validator.Required(FieldUsername, name).
		Username(FieldUsername, name).
		MinLen(FieldPassword, password, auth.MinPasswordLength)

	if err := validator.Err(); err != nil {
		return nil, err
	}

	hash, err := service.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	user := &auth.User{Username: name, PasswordHash: hash}
	if err := service.users.Create(context, user); err != nil {
		return nil, fmt.Errorf("account_service_create_user_failed: %w", err)
	}

	service.logger.Info("user_created", slog.Int64("user_id", user.ID), slog.String("username", user.Username))

	return user, nil
}

/*
SetPassword replaces a user's password and removes all of their sessions.

Description: The new hash already stops old sessions from resolving; the
explicit delete also clears their rows from the store.

Parameters:
  - context: context.Context
  - name: string
  - password: string

Returns:
  - *auth.User: The account with its new hash
  - error: Validation, not found or storage failures
*/
func (service *Service) SetPassword(context context.Context, name, password string) (*auth.User, error) {
	validator := &validate.Validator{}
	validator.MinLen(FieldPassword, password, auth.MinPasswordLength)

	if err := validator.Err(); err != nil {
		return nil, err
	}

	user, err := service.lookup(context, name)
	if err != nil {
		return nil, err
	}

	hash, err := service.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	if err := service.users.UpdatePassword(context, user.ID, hash); err != nil {
		return nil, fmt.Errorf("account_service_set_password_failed: %w", err)
	}
	user.PasswordHash = hash

	if _, err := service.RevokeSessions(context, user.Username); err != nil {
		return nil, err
	}

	service.logger.Warn("user_password_reset", slog.Int64("user_id", user.ID))

	return user, nil
}

/*
Describe summarises a user's groups, effective permissions and hash health.

Parameters:
  - context: context.Context
  - name: string

Returns:
  - *Summary: Administrative view
  - error: Not found or storage failures
*/
func (service *Service) Describe(context context.Context, name string) (*Summary, error) {
	user, err := service.lookup(context, name)
	if err != nil {
		return nil, err
	}

	groups, err := service.groups.ListByUser(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_groups_failed: %w", err)
	}

	permissions, err := service.permissions.EffectivePermissions(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("account_service_permissions_failed: %w", err)
	}

	summary := &Summary{
		ID:          user.ID,
		Username:    user.Username,
		Groups:      make([]string, 0, len(groups)),
		Permissions: permissions.Names(),
		NeedsRehash: service.hasher.NeedsRehash(user.PasswordHash),
	}
	for _, group := range groups {
		summary.Groups = append(summary.Groups, group.Name)
	}

	return summary, nil
}

// # Group Membership

/*
AddToGroup places a user in a group, creating the group when missing.

Parameters:
  - context: context.Context
  - name: string (username)
  - group: string

Returns:
  - error: Not found or storage failures
*/
func (service *Service) AddToGroup(context context.Context, name, group string) error {
	if err := requireName(FieldGroup, group); err != nil {
		return err
	}

	user, err := service.lookup(context, name)
	if err != nil {
		return err
	}

	target, err := service.groups.Ensure(context, group)
	if err != nil {
		return fmt.Errorf("account_service_ensure_group_failed: %w", err)
	}

	if err := service.groups.AddMember(context, target.ID, user.ID); err != nil {
		return fmt.Errorf("account_service_add_member_failed: %w", err)
	}

	service.logger.Info("user_added_to_group", slog.Int64("user_id", user.ID), slog.String("group", target.Name))

	return nil
}

// RemoveFromGroup takes a user out of a group. The change applies to the
// user's next request, since permissions are never cached in a session.
func (service *Service) RemoveFromGroup(context context.Context, name, group string) error {
	user, err := service.lookup(context, name)
	if err != nil {
		return err
	}

	target, err := service.groups.FindByName(context, group)
	if err != nil {
		return fmt.Errorf("account_service_find_group_failed: %w", err)
	}

	if err := service.groups.RemoveMember(context, target.ID, user.ID); err != nil {
		return fmt.Errorf("account_service_remove_member_failed: %w", err)
	}

	service.logger.Info("user_removed_from_group", slog.Int64("user_id", user.ID), slog.String("group", target.Name))

	return nil
}

// # Permission Grants

/*
GrantPermission gives a permission to a group, creating either when missing.

Parameters:
  - context: context.Context
  - group: string
  - permission: sec.Permission

Returns:
  - error: Validation or storage failures
*/
func (service *Service) GrantPermission(context context.Context, group string, permission sec.Permission) error {
	if err := requireName(FieldGroup, group); err != nil {
		return err
	}
	if err := requireName(FieldPermission, string(permission)); err != nil {
		return err
	}

	target, err := service.groups.Ensure(context, group)
	if err != nil {
		return fmt.Errorf("account_service_ensure_group_failed: %w", err)
	}

	if err := service.groups.Grant(context, target.ID, permission); err != nil {
		return fmt.Errorf("account_service_grant_failed: %w", err)
	}

	service.logger.Info("permission_granted", slog.String("group", target.Name), slog.String("permission", string(permission)))

	return nil
}

// RevokePermission withdraws a permission from a group.
func (service *Service) RevokePermission(context context.Context, group string, permission sec.Permission) error {
	target, err := service.groups.FindByName(context, group)
	if err != nil {
		return fmt.Errorf("account_service_find_group_failed: %w", err)
	}

	if err := service.groups.Revoke(context, target.ID, permission); err != nil {
		return fmt.Errorf("account_service_revoke_failed: %w", err)
	}

	service.logger.Info("permission_revoked", slog.String("group", target.Name), slog.String("permission", string(permission)))

	return nil
}

// # Session Security

/*
RevokeSessions deletes every session of a user.

Parameters:
  - context: context.Context
  - name: string

Returns:
  - int64: Number of removed sessions
  - error: Not found or storage failures
*/
func (service *Service) RevokeSessions(context context.Context, name string) (int64, error) {
	user, err := service.lookup(context, name)
	if err != nil {
		return 0, err
	}

	deleted, err := service.sessions.DeleteByUser(context, user.ID)
	if err != nil {
		return 0, fmt.Errorf("account_service_revoke_sessions_failed: %w", err)
	}

	service.logger.Warn("user_sessions_revoked", slog.Int64("user_id", user.ID), slog.Int64("deleted", deleted))

	return deleted, nil
}

// # Helpers

// lookup loads a user by name, reporting a missing one as a 404.
func (service *Service) lookup(context context.Context, name string) (*auth.User, error) {
	user, err := service.users.FindByUsername(context, username.Normalize(name))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("account_service_lookup_failed: %w", err)
	}
	return user, nil
}

func requireName(field, value string) error {
	validator := &validate.Validator{}
	validator.Required(field, value).MaxLen(field, value, 100)
	return validator.Err()
}
