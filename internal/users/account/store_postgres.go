// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account (Postgres) implements the storage layer for groups and grants.

# Schema Table Mapping
  - groups: Named permission groups.
  - users_groups: Membership of users in groups.
  - permissions: Permission names.
  - groups_permissions: Grants of permissions to groups.
*/
package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/foundry/internal/platform/database/schema"
	"github.com/taibuivan/foundry/internal/platform/dberr"
	"github.com/taibuivan/foundry/internal/platform/sec"
)

// # Repository Implementations

// PostgresGroupRepository implements [GroupRepository] using pgx.
type PostgresGroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new Postgres implementation for groups and grants.
func NewGroupRepository(pool *pgxpool.Pool) *PostgresGroupRepository {
	return &PostgresGroupRepository{pool: pool}
}

/*
Ensure upserts a group by name.

Description: The no-op DO UPDATE makes RETURNING yield the existing row on conflict.

Parameters:
  - context: context.Context
  - name: string

Returns:
  - *Group: Existing or new group
  - error: Database execution failure
*/
func (repository *PostgresGroupRepository) Ensure(context context.Context, name string) (*Group, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES ($1)
		ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s
		RETURNING %s, %s`,
		schema.AuthGroup.Table, schema.AuthGroup.Name,
		schema.AuthGroup.Name, schema.AuthGroup.Name, schema.AuthGroup.Name,
		schema.AuthGroup.ID, schema.AuthGroup.Name,
	)

	group := &Group{}
	if err := repository.pool.QueryRow(context, query, name).Scan(&group.ID, &group.Name); err != nil {
		return nil, dberr.Wrap(err, "postgres_group_repo_ensure_failed")
	}

	return group, nil
}

/*
FindByName retrieves a group from the groups table.

Parameters:
  - context: context.Context
  - name: string

Returns:
  - *Group: Hydrated group
  - error: dberr.ErrNotFound or database execution failure
*/
func (repository *PostgresGroupRepository) FindByName(context context.Context, name string) (*Group, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = $1`,
		schema.AuthGroup.ID, schema.AuthGroup.Name,
		schema.AuthGroup.Table, schema.AuthGroup.Name,
	)

	group := &Group{}
	if err := repository.pool.QueryRow(context, query, name).Scan(&group.ID, &group.Name); err != nil {
		return nil, dberr.Wrap(err, "postgres_group_repo_find_failed")
	}

	return group, nil
}

// AddMember inserts a membership row, ignoring duplicates.
func (repository *PostgresGroupRepository) AddMember(context context.Context, groupID, userID int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		schema.AuthUserGroup.Table, schema.AuthUserGroup.UserID, schema.AuthUserGroup.GroupID,
	)

	if _, err := repository.pool.Exec(context, query, userID, groupID); err != nil {
		return dberr.Wrap(err, "postgres_group_repo_add_member_failed")
	}

	return nil
}

// RemoveMember deletes a membership row.
func (repository *PostgresGroupRepository) RemoveMember(context context.Context, groupID, userID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
		schema.AuthUserGroup.Table, schema.AuthUserGroup.UserID, schema.AuthUserGroup.GroupID,
	)

	if _, err := repository.pool.Exec(context, query, userID, groupID); err != nil {
		return dberr.Wrap(err, "postgres_group_repo_remove_member_failed")
	}

	return nil
}

/*
Grant links a permission to a group inside one transaction.

Parameters:
  - context: context.Context
  - groupID: int64
  - permission: sec.Permission (created when missing)

Returns:
  - error: Database execution failure
*/
func (repository *PostgresGroupRepository) Grant(context context.Context, groupID int64, permission sec.Permission) error {
	upsertPermission := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES ($1)
		ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s
		RETURNING %s`,
		schema.AuthPermission.Table, schema.AuthPermission.Name,
		schema.AuthPermission.Name, schema.AuthPermission.Name, schema.AuthPermission.Name,
		schema.AuthPermission.ID,
	)

	link := fmt.Sprintf(`
		INSERT INTO %s (%s, %s) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		schema.AuthGroupPermission.Table, schema.AuthGroupPermission.GroupID, schema.AuthGroupPermission.PermissionID,
	)

	err := pgx.BeginFunc(context, repository.pool, func(tx pgx.Tx) error {
		var permissionID int64
		if err := tx.QueryRow(context, upsertPermission, string(permission)).Scan(&permissionID); err != nil {
			return err
		}

		_, err := tx.Exec(context, link, groupID, permissionID)
		return err
	})

	return dberr.Wrap(err, "postgres_group_repo_grant_failed")
}

// Revoke deletes the grant of permission to groupID.
func (repository *PostgresGroupRepository) Revoke(context context.Context, groupID int64, permission sec.Permission) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s = $1
		AND %s IN (SELECT %s FROM %s WHERE %s = $2)`,
		schema.AuthGroupPermission.Table,
		schema.AuthGroupPermission.GroupID,
		schema.AuthGroupPermission.PermissionID,
		schema.AuthPermission.ID, schema.AuthPermission.Table, schema.AuthPermission.Name,
	)

	if _, err := repository.pool.Exec(context, query, groupID, string(permission)); err != nil {
		return dberr.Wrap(err, "postgres_group_repo_revoke_failed")
	}

	return nil
}

/*
ListByUser joins users_groups to groups for one user.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - []Group: Groups ordered by name
  - error: Database execution failure
*/
func (repository *PostgresGroupRepository) ListByUser(context context.Context, userID int64) ([]Group, error) {
	query := fmt.Sprintf(`
		SELECT g.%s, g.%s
		FROM %s g
		JOIN %s ug ON ug.%s = g.%s
		WHERE ug.%s = $1
		ORDER BY g.%s`,
		schema.AuthGroup.ID, schema.AuthGroup.Name,
		schema.AuthGroup.Table,
		schema.AuthUserGroup.Table, schema.AuthUserGroup.GroupID, schema.AuthGroup.ID,
		schema.AuthUserGroup.UserID,
		schema.AuthGroup.Name,
	)

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_group_repo_list_failed")
	}

	groups, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Group])
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_group_repo_scan_failed")
	}

	return groups, nil
}
