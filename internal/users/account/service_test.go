// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/dberr"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/users/account"
	"github.com/taibuivan/foundry/internal/users/auth"
	"github.com/taibuivan/foundry/pkg/username"
)

// # Fakes

// directory is an in-memory store of users, groups, grants and session counts.
type directory struct {
	mu       sync.Mutex
	users    map[string]*auth.User
	groups   map[string]*account.Group
	members  map[int64][]string
	grants   map[string][]sec.Permission
	sessions map[int64]int64
}

func newDirectory() *directory {
	return &directory{
		users:    make(map[string]*auth.User),
		groups:   make(map[string]*account.Group),
		members:  make(map[int64][]string),
		grants:   make(map[string][]sec.Permission),
		sessions: make(map[int64]int64),
	}
}

// users

func (d *directory) FindByID(_ context.Context, id int64) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (d *directory) FindByUsername(_ context.Context, name string) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[username.Normalize(name)]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (d *directory) Create(_ context.Context, user *auth.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user.Username = username.Normalize(user.Username)
	if _, taken := d.users[user.Username]; taken {
		return apperr.Conflict("Username is already taken")
	}
	user.ID = int64(len(d.users) + 1)
	copied := *user
	d.users[user.Username] = &copied
	return nil
}

func (d *directory) UpdatePassword(_ context.Context, userID int64, newHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.ID == userID {
			user.PasswordHash = newHash
			return nil
		}
	}
	return dberr.ErrNotFound
}

// permissions

func (d *directory) EffectivePermissions(_ context.Context, userID int64) (sec.PermissionSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := sec.NewPermissionSet()
	for _, group := range d.members[userID] {
		for _, permission := range d.grants[group] {
			set.Add(permission)
		}
	}
	return set, nil
}

// groups

func (d *directory) Ensure(_ context.Context, name string) (*account.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	group, ok := d.groups[name]
	if !ok {
		group = &account.Group{ID: int64(len(d.groups) + 1), Name: name}
		d.groups[name] = group
	}
	return group, nil
}

func (d *directory) FindByName(_ context.Context, name string) (*account.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	group, ok := d.groups[name]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	return group, nil
}

func (d *directory) groupName(id int64) string {
	for name, group := range d.groups {
		if group.ID == id {
			return name
		}
	}
	return ""
}

func (d *directory) AddMember(_ context.Context, groupID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := d.groupName(groupID)
	if !slices.Contains(d.members[userID], name) {
		d.members[userID] = append(d.members[userID], name)
	}
	return nil
}

func (d *directory) RemoveMember(_ context.Context, groupID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := d.groupName(groupID)
	d.members[userID] = slices.DeleteFunc(d.members[userID], func(member string) bool { return member == name })
	return nil
}

func (d *directory) Grant(_ context.Context, groupID int64, permission sec.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := d.groupName(groupID)
	if !slices.Contains(d.grants[name], permission) {
		d.grants[name] = append(d.grants[name], permission)
	}
	return nil
}

func (d *directory) Revoke(_ context.Context, groupID int64, permission sec.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := d.groupName(groupID)
	d.grants[name] = slices.DeleteFunc(d.grants[name], func(granted sec.Permission) bool { return granted == permission })
	return nil
}

func (d *directory) ListByUser(_ context.Context, userID int64) ([]account.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var groups []account.Group
	for _, name := range d.members[userID] {
		groups = append(groups, *d.groups[name])
	}
	slices.SortFunc(groups, func(a, b account.Group) int {
		if a.Name < b.Name {
			return -1
		}
		return 1
	})
	return groups, nil
}

// sessions

func (d *directory) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	deleted := d.sessions[userID]
	d.sessions[userID] = 0
	return deleted, nil
}

func newTestService(t *testing.T) (*account.Service, *directory, *sec.Argon2Hasher) {
	t.Helper()

	hasher, err := sec.NewArgon2Hasher(sec.Argon2Params{MemoryKB: 8192, Time: 1, Parallelism: 1})
	require.NoError(t, err)

	store := newDirectory()
	service := account.NewService(account.Dependencies{
		Users:       store,
		Permissions: store,
		Groups:      store,
		Sessions:    store,
		Hasher:      hasher,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return service, store, hasher
}

// # Tests

/*
TestCreateUser stores a normalised username and a verifiable hash.
*/
func TestCreateUser(t *testing.T) {
	service, _, hasher := newTestService(t)
	ctx := context.Background()

	user, err := service.CreateUser(ctx, "Alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, hasher.Verify("correct horse", user.PasswordHash))

	_, err = service.CreateUser(ctx, "ALICE", "correct horse")
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))

	_, err = service.CreateUser(ctx, "bob", "short")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = service.CreateUser(ctx, "", "correct horse")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

/*
TestSetPassword replaces the hash and revokes every session of the user.
*/
func TestSetPassword(t *testing.T) {
	service, store, hasher := newTestService(t)
	ctx := context.Background()

	alice, err := service.CreateUser(ctx, "alice", "correct horse")
	require.NoError(t, err)
	store.sessions[alice.ID] = 3

	updated, err := service.SetPassword(ctx, "alice", "tr0ub4dor&3")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("tr0ub4dor&3", updated.PasswordHash))
	assert.Zero(t, store.sessions[alice.ID])

	_, err = service.SetPassword(ctx, "ghost", "tr0ub4dor&3")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestGroupsAndGrants flows permissions to users through group membership.
*/
func TestGroupsAndGrants(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.CreateUser(ctx, "alice", "correct horse")
	require.NoError(t, err)

	// 1. Grant and join
	require.NoError(t, service.GrantPermission(ctx, "editors", "reports.edit"))
	require.NoError(t, service.GrantPermission(ctx, "viewers", "reports.view"))
	require.NoError(t, service.AddToGroup(ctx, "alice", "editors"))
	require.NoError(t, service.AddToGroup(ctx, "alice", "viewers"))
	require.NoError(t, service.AddToGroup(ctx, "alice", "viewers"))

	summary, err := service.Describe(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"editors", "viewers"}, summary.Groups)
	assert.Equal(t, []string{"reports.edit", "reports.view"}, summary.Permissions)
	assert.False(t, summary.NeedsRehash)

	// 2. Revoke and leave
	require.NoError(t, service.RevokePermission(ctx, "editors", "reports.edit"))
	require.NoError(t, service.RemoveFromGroup(ctx, "alice", "viewers"))

	summary, err = service.Describe(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"editors"}, summary.Groups)
	assert.Empty(t, summary.Permissions)

	// 3. Unknown names
	assert.True(t, apperr.HasCode(service.AddToGroup(ctx, "ghost", "editors"), apperr.CodeNotFound))
	assert.True(t, apperr.HasCode(service.RemoveFromGroup(ctx, "alice", "nobody"), apperr.CodeNotFound))
	assert.True(t, apperr.HasCode(service.GrantPermission(ctx, "", "reports.view"), apperr.CodeValidation))
}

/*
TestRevokeSessions reports how many sessions were removed.
*/
func TestRevokeSessions(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	alice, err := service.CreateUser(ctx, "alice", "correct horse")
	require.NoError(t, err)
	store.sessions[alice.ID] = 2

	deleted, err := service.RevokeSessions(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = service.RevokeSessions(ctx, "ghost")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestDescribe_NeedsRehash flags hashes made with weaker settings.
*/
func TestDescribe_NeedsRehash(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	weak, err := sec.NewArgon2Hasher(sec.Argon2Params{MemoryKB: 8192, Time: 1, Parallelism: 1, KeyLength: 16})
	require.NoError(t, err)
	hash, err := weak.Hash("correct horse")
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, &auth.User{Username: "legacy", PasswordHash: hash}))

	summary, err := service.Describe(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, summary.NeedsRehash)
}
