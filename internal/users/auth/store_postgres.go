// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/constants"
	"github.com/taibuivan/foundry/internal/platform/database/schema"
	"github.com/taibuivan/foundry/internal/platform/dberr"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/pkg/username"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
Create persists a new user record into the users table.

Description: The username is stored in its normalised form and the generated
ID is written back into user.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr.Conflict on a taken username, or store failures
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		VALUES ($1, $2)
		RETURNING %s`,
		schema.AuthUser.Table, schema.AuthUser.Username, schema.AuthUser.PasswordHash,
		schema.AuthUser.ID,
	)

	user.Username = username.Normalize(user.Username)

	err := repository.pool.QueryRow(context, query, user.Username, user.PasswordHash).Scan(&user.ID)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Username is already taken")
		}
		return dberr.Wrap(err, "postgres_user_repo_create_failed")
	}

	return nil
}

/*
FindByUsername retrieves a user record by their unique username.

Parameters:
  - context: context.Context
  - name: string (normalised before lookup)

Returns:
  - *User: Hydrated account entity
  - error: dberr.ErrNotFound or store failures
*/
func (repository *PostgresUserRepository) FindByUsername(context context.Context, name string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		userColumns(), schema.AuthUser.Table, schema.AuthUser.Username,
	)

	user := &User{}
	err := repository.pool.QueryRow(context, query, username.Normalize(name)).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
	)

	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_username_failed")
	}

	return user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *User: Hydrated account entity
  - error: dberr.ErrNotFound or store failures
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id int64) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		userColumns(), schema.AuthUser.Table, schema.AuthUser.ID,
	)

	user := &User{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
	)

	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_id_failed")
	}

	return user, nil
}

/*
UpdatePassword updates only the password hash for a specific user.

Parameters:
  - context: context.Context
  - userID: int64
  - newHash: string

Returns:
  - error: dberr.ErrNotFound or store failures
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID int64, newHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.AuthUser.Table, schema.AuthUser.PasswordHash, schema.AuthUser.ID,
	)

	tag, err := repository.pool.Exec(context, query, userID, newHash)
	if err != nil {
		return dberr.Wrap(err, "postgres_user_repo_update_password_failed")
	}

	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}

// # Permission Repository

// PostgresPermissionRepository resolves permissions through group membership.
type PostgresPermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository creates a new PostgreSQL implementation of PermissionRepository.
func NewPermissionRepository(pool *pgxpool.Pool) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{pool: pool}
}

/*
EffectivePermissions joins user -> groups -> permissions.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - sec.PermissionSet: Possibly empty set of distinct permissions
  - error: Store failures
*/
func (repository *PostgresPermissionRepository) EffectivePermissions(context context.Context, userID int64) (sec.PermissionSet, error) {
	membership, grant, permission := schema.AuthUserGroup, schema.AuthGroupPermission, schema.AuthPermission
	query := fmt.Sprintf(`
		SELECT DISTINCT p.%s
		FROM %s ug
		JOIN %s gp ON ug.%s = gp.%s
		JOIN %s p ON gp.%s = p.%s
		WHERE ug.%s = $1`,
		permission.Name,
		membership.Table,
		grant.Table, membership.GroupID, grant.GroupID,
		permission.Table, grant.PermissionID, permission.ID,
		membership.UserID,
	)

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_permission_repo_query_failed")
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_permission_repo_scan_failed")
	}

	return sec.NewPermissionSet(names...), nil
}

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface.
type PostgresSessionRepository struct {
	pool          *pgxpool.Pool
	generateToken func() (string, error)
	batchSize     int
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{
		pool:          pool,
		generateToken: newSessionToken,
		batchSize:     constants.SweepBatchSize,
	}
}

/*
Create persists a new session record into the sessions table.

Description: Inserts under the token digest with ON CONFLICT DO NOTHING, so a
colliding token never overwrites an existing session. A collision regenerates
the token, up to maxCreateAttempts times.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: ErrTokenCollision or store failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (%s) DO NOTHING`,
		schema.AuthSession.Table, strings.Join(schema.AuthSession.Columns(), ", "),
		schema.AuthSession.TokenHash,
	)

	for range maxCreateAttempts {
		token, err := repository.generateToken()
		if err != nil {
			return fmt.Errorf("postgres_session_repo_token_failed: %w", err)
		}

		tag, err := repository.pool.Exec(context, query,
			sec.HashToken(token),
			session.UserID,
			session.Fingerprint,
			session.CreatedAt,
			session.ExpiresAt,
		)
		if err != nil {
			return dberr.Wrap(err, "postgres_session_repo_create_failed")
		}

		if tag.RowsAffected() == 1 {
			session.Token = token
			return nil
		}
	}

	return ErrTokenCollision
}

/*
Read retrieves a session by its token, including logically expired ones.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *Session: Hydrated session metadata
  - error: ErrSessionNotFound or store failures
*/
func (repository *PostgresSessionRepository) Read(context context.Context, token string) (*Session, error) {
	query := fmt.Sprintf(`SELECT %s, %s, %s, %s FROM %s WHERE %s = $1`,
		schema.AuthSession.UserID, schema.AuthSession.Fingerprint,
		schema.AuthSession.CreatedAt, schema.AuthSession.ExpiresAt,
		schema.AuthSession.Table, schema.AuthSession.TokenHash,
	)

	session := &Session{Token: token}
	err := repository.pool.QueryRow(context, query, sec.HashToken(token)).Scan(
		&session.UserID,
		&session.Fingerprint,
		&session.CreatedAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, dberr.Wrap(err, "postgres_session_repo_read_failed")
	}

	return session, nil
}

/*
Touch slides the session expiry.

Parameters:
  - context: context.Context
  - token: string
  - expiresAt: time.Time

Returns:
  - error: ErrSessionNotFound or store failures
*/
func (repository *PostgresSessionRepository) Touch(context context.Context, token string, expiresAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.AuthSession.Table, schema.AuthSession.ExpiresAt, schema.AuthSession.TokenHash,
	)

	tag, err := repository.pool.Exec(context, query, sec.HashToken(token), expiresAt)
	if err != nil {
		return dberr.Wrap(err, "postgres_session_repo_touch_failed")
	}

	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

/*
Delete removes a session. Absent sessions are ignored.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Store failures
*/
func (repository *PostgresSessionRepository) Delete(context context.Context, token string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.AuthSession.Table, schema.AuthSession.TokenHash,
	)

	if _, err := repository.pool.Exec(context, query, sec.HashToken(token)); err != nil {
		return dberr.Wrap(err, "postgres_session_repo_delete_failed")
	}

	return nil
}

/*
DeleteByUser removes every session belonging to userID.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - int64: Removed rows
  - error: Store failures
*/
func (repository *PostgresSessionRepository) DeleteByUser(context context.Context, userID int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.AuthSession.Table, schema.AuthSession.UserID,
	)

	tag, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return 0, dberr.Wrap(err, "postgres_session_repo_delete_by_user_failed")
	}

	return tag.RowsAffected(), nil
}

/*
DeleteExpired permanently removes all sessions that expired before now.

Description: Works in batches of batchSize rows, one statement per batch, so
no single statement locks more than one batch.

Parameters:
  - context: context.Context
  - now: time.Time

Returns:
  - int64: Removed rows across all batches
  - error: Store failures (rows removed by earlier batches stay removed)
*/
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	sessions := schema.AuthSession
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s IN (
			SELECT %s FROM %s
			WHERE %s < $1
			LIMIT $2
		)`,
		sessions.Table, sessions.TokenHash,
		sessions.TokenHash, sessions.Table,
		sessions.ExpiresAt,
	)

	var total int64
	for {
		if err := context.Err(); err != nil {
			return total, err
		}

		tag, err := repository.pool.Exec(context, query, now, repository.batchSize)
		if err != nil {
			return total, dberr.Wrap(err, "postgres_session_repo_delete_expired_failed")
		}

		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(repository.batchSize) {
			return total, nil
		}
	}
}

// userColumns lists the columns hydrated into a [User], in Scan order.
func userColumns() string {
	return strings.Join([]string{schema.AuthUser.ID, schema.AuthUser.Username, schema.AuthUser.PasswordHash}, ", ")
}

// newSessionToken returns a fresh random session token.
func newSessionToken() (string, error) {
	return sec.GenerateSecureToken(SessionTokenLength)
}
