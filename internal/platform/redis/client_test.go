// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/internal/platform/redis"
)

/*
TestNewClient_ConnectsAndPings verifies the startup handshake against an in-memory server.
*/
func TestNewClient_ConnectsAndPings(t *testing.T) {
	server := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := redis.NewClient(context.Background(), "redis://"+server.Addr()+"/0", logger)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, redis.Ping(context.Background(), client))
}

/*
TestNewClient_InvalidURL rejects malformed URLs before dialing.
*/
func TestNewClient_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := redis.NewClient(context.Background(), "not-a-url", logger)
	assert.Error(t, err)
}

/*
TestWrap_Classification covers the three error classes.
*/
func TestWrap_Classification(t *testing.T) {
	assert.NoError(t, redis.Wrap(nil, "noop"))

	cancelled := redis.Wrap(context.Canceled, "redis_get_failed")
	assert.ErrorIs(t, cancelled, context.Canceled)
	assert.False(t, apperr.IsAppError(cancelled))

	broken := redis.Wrap(errors.New("connection refused"), "redis_get_failed")
	assert.True(t, apperr.HasCode(broken, apperr.CodeStoreUnavailable))
	assert.NotContains(t, broken.Error(), "connection refused")

	assert.True(t, redis.IsNil(goredis.Nil))
	assert.False(t, redis.IsNil(errors.New("other")))
}
