// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for volatile data storage.

It backs the optional Redis session store (SESSION_BACKEND=redis), where
sessions live as JSON values next to a sorted-set expiry index.

Core Responsibilities:

  - Connectivity: URL parsing, pool sizing and a startup ping.
  - Error Mapping: Classifies client errors the way dberr does for PostgreSQL.
*/
package redis

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/foundry/internal/platform/apperr"
)

// Opiniated default timeouts for Redis operations.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// NewClient parses a Redis URL and returns a ready-to-use client.
//
// # Parameters
//   - context: Context for the initial ping.
//   - redisURL: Redis connection URL.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	// Pool configuration Tuning
	options.PoolSize = 10
	options.MinIdleConns = 2
	options.MaxIdleConns = 5

	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	client := redis.NewClient(options)

	// Validate connectivity immediately at startup.
	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis client connected",
		slog.String("addr", options.Addr),
		slog.Int("pool_size", options.PoolSize),
	)

	return client, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}

// Wrap classifies a Redis client error.
//
// Context cancellation and deadlines pass through wrapped; every other failure
// becomes a STORE_UNAVAILABLE [apperr.AppError]. [redis.Nil] must be handled by
// the caller before calling Wrap, since its meaning depends on the command.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, stdctx.Canceled) || errors.Is(err, stdctx.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", action, err)
	}

	return apperr.StoreUnavailable(fmt.Errorf("%s: %w", action, err))
}

// IsNil reports whether err is the "no such key" reply.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
