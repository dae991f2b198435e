// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/ctxutil"
	"github.com/taibuivan/foundry/internal/platform/middleware"
	"github.com/taibuivan/foundry/internal/users/auth"
)

const testCookieName = "test_session"

// envelope covers both the success and the error response shapes.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type identityBody struct {
	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	Next        string    `json:"next"`
}

func newRouter(t *testing.T, f *fixture, options auth.HandlerOptions) http.Handler {
	t.Helper()

	options.CookieName = testCookieName
	sweeper := auth.NewSweeper(f.sessions, discardLogger(), auth.WithSweepClock(f.clock))

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(f.service, testCookieName))
	router.Mount("/auth", auth.NewHandler(f.service, sweeper, options).Routes())
	return router
}

func send(t *testing.T, router http.Handler, method, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch value := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(value))
	default:
		payload, err := json.Marshal(value)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		request.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	var decoded envelope
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	}
	return recorder, decoded
}

func sessionCookie(recorder *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == testCookieName {
			return cookie
		}
	}
	return nil
}

func loginOverHTTP(t *testing.T, router http.Handler, name, password string) *http.Cookie {
	t.Helper()

	recorder, _ := send(t, router, http.MethodPost, "/auth/login", map[string]string{"username": name, "password": password}, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	cookie := sessionCookie(recorder)
	require.NotNil(t, cookie)
	return cookie
}

/*
TestLogin_SetsSessionCookie issues a browser-session cookie and reports the identity.
*/
func TestLogin_SetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse", "reports.view")
	router := newRouter(t, f, auth.HandlerOptions{CookieSecure: true})

	recorder, body := send(t, router, http.MethodPost, "/auth/login",
		map[string]string{"username": "Alice", "password": "correct horse", "next": "/reports?page=2"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Successfully logged in as alice.", body.Message)

	// 1. Cookie attributes
	cookie := sessionCookie(recorder)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.Expires.IsZero())
	assert.Zero(t, cookie.MaxAge)

	// 2. Response payload
	var identity identityBody
	require.NoError(t, json.Unmarshal(body.Data, &identity))
	assert.Equal(t, "alice", identity.User.Username)
	assert.Equal(t, []string{"reports.view"}, identity.Permissions)
	assert.Equal(t, "/reports?page=2", identity.Next)
	assert.True(t, testEpoch.Add(auth.DefaultSessionTTL).Equal(identity.ExpiresAt))

	// 3. The cookie authenticates later requests
	recorder, body = send(t, router, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, recorder.Code)

	var current identityBody
	require.NoError(t, json.Unmarshal(body.Data, &current))
	assert.Equal(t, "alice", current.User.Username)
	assert.Empty(t, current.Next)
}

/*
TestLogin_DefaultNext redirects to the site root when no target is given.
*/
func TestLogin_DefaultNext(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	router := newRouter(t, f, auth.HandlerOptions{})

	recorder, body := send(t, router, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "correct horse"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var identity identityBody
	require.NoError(t, json.Unmarshal(body.Data, &identity))
	assert.Equal(t, "/", identity.Next)
	assert.Equal(t, []string{}, identity.Permissions)
}

/*
TestLogin_FeedbackPolicy hides or reveals the failure reason per configuration.
*/
func TestLogin_FeedbackPolicy(t *testing.T) {
	tests := []struct {
		name     string
		detailed bool
		username string
		wantCode string
	}{
		{"generic_unknown_user", false, "bob", apperr.CodeUnauthorized},
		{"generic_wrong_password", false, "alice", apperr.CodeUnauthorized},
		{"detailed_unknown_user", true, "bob", apperr.CodeUserNotFound},
		{"detailed_wrong_password", true, "alice", apperr.CodePasswordIncorrect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addUser(t, "alice", "correct horse")
			router := newRouter(t, f, auth.HandlerOptions{DetailedFeedback: tt.detailed})

			recorder, body := send(t, router, http.MethodPost, "/auth/login", map[string]string{"username": tt.username, "password": "wrong"}, nil)

			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Nil(t, sessionCookie(recorder))
			if !tt.detailed {
				assert.Equal(t, "Invalid credentials.", body.Error)
			}
		})
	}
}

/*
TestLogin_Validation rejects malformed input before touching any store.
*/
func TestLogin_Validation(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	router := newRouter(t, f, auth.HandlerOptions{})

	tests := []struct {
		name string
		body any
	}{
		{"invalid_json", "{not json"},
		{"missing_password", map[string]string{"username": "alice"}},
		{"missing_username", map[string]string{"password": "correct horse"}},
		{"username_too_long", map[string]string{"username": strings.Repeat("a", 65), "password": "x"}},
		{"absolute_next", map[string]string{"username": "alice", "password": "correct horse", "next": "https://evil.example/"}},
		{"protocol_relative_next", map[string]string{"username": "alice", "password": "correct horse", "next": "//evil.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder, body := send(t, router, http.MethodPost, "/auth/login", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Equal(t, apperr.CodeValidation, body.Code)
		})
	}
}

/*
TestLogin_ReplacesPreviousSession drops the session the client arrived with.
*/
func TestLogin_ReplacesPreviousSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	router := newRouter(t, f, auth.HandlerOptions{})

	first := loginOverHTTP(t, router, "alice", "correct horse")

	recorder, _ := send(t, router, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "correct horse"}, first)
	require.Equal(t, http.StatusOK, recorder.Code)

	second := sessionCookie(recorder)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)
	assert.False(t, f.sessions.has(first.Value))
	assert.True(t, f.sessions.has(second.Value))
}

/*
TestLogin_RateLimited applies the configured limiter to the login route only.
*/
func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	limiter := middleware.NewRateLimiter(0.001, 1)
	router := newRouter(t, f, auth.HandlerOptions{LoginLimiter: limiter.Middleware})

	credentials := map[string]string{"username": "alice", "password": "wrong"}

	recorder, _ := send(t, router, http.MethodPost, "/auth/login", credentials, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder, _ = send(t, router, http.MethodPost, "/auth/login", credentials, nil)
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)

	recorder, _ = send(t, router, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

/*
TestLogout_ClearsSession deletes the session and expires the cookie.
*/
func TestLogout_ClearsSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	router := newRouter(t, f, auth.HandlerOptions{})
	cookie := loginOverHTTP(t, router, "alice", "correct horse")

	recorder, _ := send(t, router, http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	cleared := sessionCookie(recorder)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	recorder, _ = send(t, router, http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Logging out again, or anonymously, is not an error.
	recorder, _ = send(t, router, http.MethodPost, "/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	recorder, _ = send(t, router, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

/*
TestMe_Anonymous rejects requests without a live session.
*/
func TestMe_Anonymous(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	router := newRouter(t, f, auth.HandlerOptions{})

	recorder, body := send(t, router, http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeUnauthorized, body.Code)

	// An expired session is anonymous too, reported as an invalid session.
	cookie := loginOverHTTP(t, router, "alice", "correct horse")
	f.clock.Advance(auth.DefaultSessionTTL + time.Second)

	recorder, body = send(t, router, http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeSessionInvalid, body.Code)
}

/*
TestMe_StoreFailure reports an unreachable session store instead of treating
the request as anonymous.
*/
func TestMe_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	router := newRouter(t, f, auth.HandlerOptions{})
	cookie := loginOverHTTP(t, router, "alice", "correct horse")

	f.sessions.fail(apperr.StoreUnavailable(errors.New("connection reset")))

	recorder, body := send(t, router, http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, apperr.CodeStoreUnavailable, body.Code)
	assert.NotContains(t, recorder.Body.String(), "connection reset")
}

/*
TestChangePassword_ReissuesSession invalidates the old cookie and issues a new one.
*/
func TestChangePassword_ReissuesSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	router := newRouter(t, f, auth.HandlerOptions{})

	cookie := loginOverHTTP(t, router, "alice", "correct horse")
	other := loginOverHTTP(t, router, "alice", "correct horse")

	// 1. Wrong current password
	recorder, body := send(t, router, http.MethodPost, "/auth/change-password",
		map[string]string{"current_password": "nope", "new_password": "tr0ub4dor&3"}, cookie)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodePasswordIncorrect, body.Code)

	// 2. Weak new password
	recorder, body = send(t, router, http.MethodPost, "/auth/change-password",
		map[string]string{"current_password": "correct horse", "new_password": "short"}, cookie)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeValidation, body.Code)

	// 3. Success
	recorder, body = send(t, router, http.MethodPost, "/auth/change-password",
		map[string]string{"current_password": "correct horse", "new_password": "tr0ub4dor&3"}, cookie)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Password changed.", body.Message)

	fresh := sessionCookie(recorder)
	require.NotNil(t, fresh)
	assert.NotEqual(t, cookie.Value, fresh.Value)

	// 4. Every old session is gone; the new one works
	for _, stale := range []*http.Cookie{cookie, other} {
		recorder, _ = send(t, router, http.MethodGet, "/auth/me", nil, stale)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	}

	recorder, _ = send(t, router, http.MethodGet, "/auth/me", nil, fresh)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestChangePassword_CleanupFailureLogged still reissues the session when the old
row cannot be removed, and records the failure.
*/
func TestChangePassword_CleanupFailureLogged(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithLogger(request.Context(), logger)))
		})
	})
	router.Mount("/", newRouter(t, f, auth.HandlerOptions{}))

	cookie := loginOverHTTP(t, router, "alice", "correct horse")

	f.sessions.mu.Lock()
	f.sessions.deleteErr = apperr.StoreUnavailable(errors.New("connection reset"))
	f.sessions.mu.Unlock()

	recorder, _ := send(t, router, http.MethodPost, "/auth/change-password",
		map[string]string{"current_password": "correct horse", "new_password": "tr0ub4dor&3"}, cookie)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	fresh := sessionCookie(recorder)
	require.NotNil(t, fresh)
	assert.NotEqual(t, cookie.Value, fresh.Value)
	assert.True(t, f.sessions.has(cookie.Value))
	assert.Contains(t, logs.String(), "previous_session_cleanup_failed")
}

/*
TestSweep_RequiresPermission guards the on-demand sweep with sessions.manage.
*/
func TestSweep_RequiresPermission(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice", "correct horse")
	f.addUser(t, "root", "correct horse", string(auth.PermissionManageSessions))
	router := newRouter(t, f, auth.HandlerOptions{})

	// 1. Anonymous and unprivileged callers are rejected
	recorder, _ := send(t, router, http.MethodPost, "/auth/sessions/sweep", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	stale := loginOverHTTP(t, router, "alice", "correct horse")
	recorder, body := send(t, router, http.MethodPost, "/auth/sessions/sweep", nil, stale)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, apperr.CodeForbidden, body.Code)

	// 2. Alice's session expires; the admin sweeps it
	f.clock.Advance(auth.DefaultSessionTTL + time.Second)
	admin := loginOverHTTP(t, router, "root", "correct horse")

	recorder, body = send(t, router, http.MethodPost, "/auth/sessions/sweep", nil, admin)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result map[string]int64
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, int64(1), result[auth.FieldDeleted])
	assert.False(t, f.sessions.has(stale.Value))
}
