// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/dberr"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/users/auth"
	"github.com/taibuivan/foundry/pkg/username"
)

// # In-memory repositories

type memoryUsers struct {
	mu     sync.Mutex
	byID   map[int64]*auth.User
	nextID int64
	err    error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: make(map[int64]*auth.User)}
}

func (store *memoryUsers) FindByID(_ context.Context, id int64) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return nil, store.err
	}
	user, ok := store.byID[id]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (store *memoryUsers) FindByUsername(_ context.Context, name string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return nil, store.err
	}
	normalized := username.Normalize(name)
	for _, user := range store.byID {
		if user.Username == normalized {
			copied := *user
			return &copied, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (store *memoryUsers) Create(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user.Username = username.Normalize(user.Username)
	for _, existing := range store.byID {
		if existing.Username == user.Username {
			return apperr.Conflict("Username is already taken")
		}
	}

	store.nextID++
	user.ID = store.nextID
	copied := *user
	store.byID[user.ID] = &copied
	return nil
}

func (store *memoryUsers) UpdatePassword(_ context.Context, userID int64, newHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.byID[userID]
	if !ok {
		return dberr.ErrNotFound
	}
	user.PasswordHash = newHash
	return nil
}

type memoryPermissions struct {
	mu     sync.Mutex
	byUser map[int64][]string
	err    error
}

func (store *memoryPermissions) grant(userID int64, names ...string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.byUser[userID] = append(store.byUser[userID], names...)
}

func (store *memoryPermissions) EffectivePermissions(_ context.Context, userID int64) (sec.PermissionSet, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return nil, store.err
	}
	return sec.NewPermissionSet(store.byUser[userID]...), nil
}

type memorySessions struct {
	mu      sync.Mutex
	rows    map[string]auth.Session
	counter   int
	err       error
	deleteErr error
	touches   int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{rows: make(map[string]auth.Session)}
}

func (store *memorySessions) Create(_ context.Context, session *auth.Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return store.err
	}
	store.counter++
	session.Token = fmt.Sprintf("token-%d", store.counter)
	store.rows[session.Token] = *session
	return nil
}

func (store *memorySessions) Read(_ context.Context, token string) (*auth.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return nil, store.err
	}
	session, ok := store.rows[token]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	return &session, nil
}

func (store *memorySessions) Touch(_ context.Context, token string, expiresAt time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return store.err
	}
	session, ok := store.rows[token]
	if !ok {
		return auth.ErrSessionNotFound
	}
	session.ExpiresAt = expiresAt
	store.rows[token] = session
	store.touches++
	return nil
}

func (store *memorySessions) Delete(_ context.Context, token string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return store.err
	}
	if store.deleteErr != nil {
		return store.deleteErr
	}
	delete(store.rows, token)
	return nil
}

func (store *memorySessions) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var deleted int64
	for token, session := range store.rows {
		if session.UserID == userID {
			delete(store.rows, token)
			deleted++
		}
	}
	return deleted, nil
}

func (store *memorySessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return 0, store.err
	}
	var deleted int64
	for token, session := range store.rows {
		if session.ExpiresAt.Before(now) {
			delete(store.rows, token)
			deleted++
		}
	}
	return deleted, nil
}

func (store *memorySessions) has(token string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()
	_, ok := store.rows[token]
	return ok
}

func (store *memorySessions) row(token string) auth.Session {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.rows[token]
}

func (store *memorySessions) fail(err error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.err = err
}

// # Fixture

// testEpoch is the starting instant of every manual clock.
var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	users       *memoryUsers
	permissions *memoryPermissions
	sessions    *memorySessions
	hasher      *sec.Argon2Hasher
	backend     *auth.DatabaseBackend
	clock       *abtime.ManualTime
	service     *auth.Service
}

func newTestHasher(t *testing.T) *sec.Argon2Hasher {
	t.Helper()

	hasher, err := sec.NewArgon2Hasher(sec.Argon2Params{MemoryKB: 8192, Time: 1, Parallelism: 1})
	require.NoError(t, err)
	return hasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:       newMemoryUsers(),
		permissions: &memoryPermissions{byUser: make(map[int64][]string)},
		sessions:    newMemorySessions(),
		hasher:      newTestHasher(t),
		clock:       abtime.NewManualAtTime(testEpoch),
	}
	f.backend = auth.NewDatabaseBackend(f.users, f.permissions, f.hasher)
	f.service = auth.NewService(f.backend, f.sessions, auth.WithClock(f.clock))
	return f
}

// addUser registers an account with the given password and permissions.
func (f *fixture) addUser(t *testing.T, name, password string, permissions ...string) *auth.User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	user := &auth.User{Username: name, PasswordHash: hash}
	require.NoError(t, f.users.Create(context.Background(), user))

	if len(permissions) > 0 {
		f.permissions.grant(user.ID, permissions...)
	}
	return user
}

// login authenticates and begins a session, failing the test on error.
func (f *fixture) login(t *testing.T, name, password string) *auth.Session {
	t.Helper()

	ctx := context.Background()
	user, err := f.service.Authenticate(ctx, auth.Credentials{Username: name, Password: password})
	require.NoError(t, err)

	session, err := f.service.BeginSession(ctx, user)
	require.NoError(t, err)
	return session
}
