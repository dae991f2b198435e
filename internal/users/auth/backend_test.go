// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundry/internal/platform/dberr"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/users/auth"
)

// spyHasher counts verifications and delegates to a real hasher.
type spyHasher struct {
	sec.PasswordHasher
	verifications int
}

func (hasher *spyHasher) Verify(password, hash string) bool {
	hasher.verifications++
	return hasher.PasswordHasher.Verify(password, hash)
}

/*
TestDatabaseBackend_UnknownUserStillVerifies runs a password check even when
the username does not exist.
*/
func TestDatabaseBackend_UnknownUserStillVerifies(t *testing.T) {
	users := newMemoryUsers()
	hasher := &spyHasher{PasswordHasher: newTestHasher(t)}
	backend := auth.NewDatabaseBackend(users, &memoryPermissions{byUser: map[int64][]string{}}, hasher)

	_, err := backend.Authenticate(context.Background(), auth.Credentials{Username: "ghost", Password: "anything"})

	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	assert.Equal(t, 1, hasher.verifications)
}

/*
TestDatabaseBackend_SetPassword stores a verifiable hash and reports missing users.
*/
func TestDatabaseBackend_SetPassword(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", "correct horse")

	updated, err := f.backend.SetPassword(context.Background(), alice.ID, "tr0ub4dor&3")
	require.NoError(t, err)
	assert.True(t, f.hasher.Verify("tr0ub4dor&3", updated.PasswordHash))
	assert.False(t, f.hasher.Verify("correct horse", updated.PasswordHash))

	_, err = f.backend.SetPassword(context.Background(), 9999, "tr0ub4dor&3")
	assert.ErrorIs(t, err, dberr.ErrNotFound)
}

/*
TestDatabaseBackend_Permissions returns the effective set of the user.
*/
func TestDatabaseBackend_Permissions(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", "correct horse", "reports.view", "reports.view", "users.edit")

	permissions, err := f.backend.Permissions(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 2, permissions.Len())
	assert.True(t, permissions.Has("users.edit"))
}
