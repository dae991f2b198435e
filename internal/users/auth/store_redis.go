// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/foundry/internal/platform/constants"
	redisstore "github.com/taibuivan/foundry/internal/platform/redis"
	"github.com/taibuivan/foundry/internal/platform/sec"
)

// # Session Repository (Redis)

// redisSessionRecord is the JSON value stored under a session key.
type redisSessionRecord struct {
	UserID      int64     `json:"user_id"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RedisSessionRepository implements SessionRepository using Redis.
//
// Layout:
//   - auth:session:<digest>       JSON record, with a backstop key TTL
//   - auth:session_expiry         sorted set of digests scored by expiry (unix ms)
//   - auth:user_sessions:<userID> set of the user's digests
//
// Logical expiry is driven by the sorted set and the [Sweeper]; the key TTL only
// reclaims rows the sweeper never saw.
type RedisSessionRepository struct {
	client        *redis.Client
	generateToken func() (string, error)
	batchSize     int64
}

// NewRedisSessionRepository creates a new Redis-backed SessionRepository.
func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{
		client:        client,
		generateToken: newSessionToken,
		batchSize:     constants.SweepBatchSize,
	}
}

func sessionKey(digest string) string {
	return constants.RedisPrefixSession + digest
}

func userSessionsKey(userID int64) string {
	return constants.RedisPrefixUserSessions + strconv.FormatInt(userID, 10)
}

// backstopTTL keeps the key alive past its logical expiry so Read still sees it.
func backstopTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + redisRetentionGrace
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// createSessionScript writes the record and both index entries in one step, so a
// stored session is always reachable by the sweeper and by DeleteByUser.
//
// KEYS: session key, expiry index, user index.
// ARGV: payload, backstop TTL (ms), expiry score (unix ms), digest.
var createSessionScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
redis.call('SADD', KEYS[3], ARGV[4])
return 1
`)

/*
Create stores a new session and its index entries atomically, regenerating the
token on collision.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: ErrTokenCollision or store failures
*/
func (repository *RedisSessionRepository) Create(context context.Context, session *Session) error {
	payload, err := json.Marshal(redisSessionRecord{
		UserID:      session.UserID,
		Fingerprint: session.Fingerprint,
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("redis_session_repo_encode_failed: %w", err)
	}

	for range maxCreateAttempts {
		token, err := repository.generateToken()
		if err != nil {
			return fmt.Errorf("redis_session_repo_token_failed: %w", err)
		}

		digest := sec.HashToken(token)
		keys := []string{sessionKey(digest), constants.RedisKeySessionExpiry, userSessionsKey(session.UserID)}

		created, err := createSessionScript.Run(context, repository.client, keys,
			payload,
			backstopTTL(session.ExpiresAt).Milliseconds(),
			session.ExpiresAt.UnixMilli(),
			digest,
		).Int()
		if err != nil {
			return redisstore.Wrap(err, "redis_session_repo_create_failed")
		}

		if created == 0 {
			continue
		}

		session.Token = token
		return nil
	}

	return ErrTokenCollision
}

/*
Read retrieves a session by its token, including logically expired ones.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *Session: Hydrated entity
  - error: ErrSessionNotFound or store failures
*/
func (repository *RedisSessionRepository) Read(context context.Context, token string) (*Session, error) {
	record, err := repository.load(context, sec.HashToken(token))
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:       token,
		UserID:      record.UserID,
		Fingerprint: record.Fingerprint,
		CreatedAt:   record.CreatedAt,
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

/*
Touch rewrites the record with a new expiry. SET XX never resurrects a session
that was deleted in the meantime.

Parameters:
  - context: context.Context
  - token: string
  - expiresAt: time.Time

Returns:
  - error: ErrSessionNotFound or store failures
*/
func (repository *RedisSessionRepository) Touch(context context.Context, token string, expiresAt time.Time) error {
	digest := sec.HashToken(token)

	record, err := repository.load(context, digest)
	if err != nil {
		return err
	}

	record.ExpiresAt = expiresAt
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis_session_repo_encode_failed: %w", err)
	}

	err = repository.client.SetArgs(context, sessionKey(digest), payload, redis.SetArgs{
		Mode: "XX",
		TTL:  backstopTTL(expiresAt),
	}).Err()
	if redisstore.IsNil(err) {
		return ErrSessionNotFound
	}
	if err != nil {
		return redisstore.Wrap(err, "redis_session_repo_touch_failed")
	}

	err = repository.client.ZAddXX(context, constants.RedisKeySessionExpiry, redis.Z{
		Score:  float64(expiresAt.UnixMilli()),
		Member: digest,
	}).Err()
	if err != nil {
		return redisstore.Wrap(err, "redis_session_repo_touch_index_failed")
	}

	return nil
}

/*
Delete removes a session and its index entries. Absent sessions are ignored.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Store failures
*/
func (repository *RedisSessionRepository) Delete(context context.Context, token string) error {
	digest := sec.HashToken(token)

	// A missing key may still have index entries left behind by its TTL.
	record, err := repository.load(context, digest)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}

	_, err = repository.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		pipe.Del(context, sessionKey(digest))
		pipe.ZRem(context, constants.RedisKeySessionExpiry, digest)
		if record != nil {
			pipe.SRem(context, userSessionsKey(record.UserID), digest)
		}
		return nil
	})

	return redisstore.Wrap(err, "redis_session_repo_delete_failed")
}

/*
DeleteByUser removes every session of the user.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - int64: Number of removed session keys
  - error: Store failures
*/
func (repository *RedisSessionRepository) DeleteByUser(context context.Context, userID int64) (int64, error) {
	indexKey := userSessionsKey(userID)

	digests, err := repository.client.SMembers(context, indexKey).Result()
	if err != nil {
		return 0, redisstore.Wrap(err, "redis_session_repo_list_user_failed")
	}

	if len(digests) == 0 {
		return 0, nil
	}

	keys := make([]string, len(digests))
	members := make([]any, len(digests))
	for i, digest := range digests {
		keys[i] = sessionKey(digest)
		members[i] = digest
	}

	var deleted *redis.IntCmd
	_, err = repository.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(context, keys...)
		pipe.ZRem(context, constants.RedisKeySessionExpiry, members...)
		// Only the digests read above; a session created meanwhile keeps its entry.
		pipe.SRem(context, indexKey, members...)
		return nil
	})
	if err != nil {
		return 0, redisstore.Wrap(err, "redis_session_repo_delete_by_user_failed")
	}

	return deleted.Val(), nil
}

/*
DeleteExpired removes every session whose expiry is strictly before now.

Description: The index only has millisecond resolution, so candidates are read
up to and including the current millisecond and decided on the stored expiry.
Candidates that are still live stay at the head of the range and are skipped by
offset on the next batch.

Parameters:
  - context: context.Context
  - now: time.Time

Returns:
  - int64: Number of removed sessions
  - error: Store failures
*/
func (repository *RedisSessionRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	var total, kept int64

	for {
		if err := context.Err(); err != nil {
			return total, err
		}

		candidates, err := repository.client.ZRangeByScoreWithScores(context, constants.RedisKeySessionExpiry, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    strconv.FormatInt(now.UnixMilli(), 10),
			Offset: kept,
			Count:  repository.batchSize,
		}).Result()
		if err != nil {
			return total, redisstore.Wrap(err, "redis_session_repo_scan_expired_failed")
		}

		if len(candidates) == 0 {
			return total, nil
		}

		removed, err := repository.deleteBatch(context, candidates, now)
		if err != nil {
			return total, err
		}

		total += removed
		kept += int64(len(candidates)) - removed
		if int64(len(candidates)) < repository.batchSize {
			return total, nil
		}
	}
}

// deleteBatch removes the expired candidates of one batch along with their index
// entries. A candidate without a readable record falls back to its score.
func (repository *RedisSessionRepository) deleteBatch(context context.Context, candidates []redis.Z, now time.Time) (int64, error) {
	digests := make([]string, len(candidates))
	keys := make([]string, len(candidates))
	for i, candidate := range candidates {
		digests[i], _ = candidate.Member.(string)
		keys[i] = sessionKey(digests[i])
	}

	// Owners are needed to prune the per-user index.
	values, err := repository.client.MGet(context, keys...).Result()
	if err != nil {
		return 0, redisstore.Wrap(err, "redis_session_repo_load_expired_failed")
	}

	cutoff := now.UnixMilli()
	var removed int64

	_, err = repository.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		for i, value := range values {
			var record redisSessionRecord
			raw, stored := value.(string)
			decoded := stored && json.Unmarshal([]byte(raw), &record) == nil

			if decoded && !record.ExpiresAt.Before(now) {
				continue
			}
			if !decoded && int64(candidates[i].Score) >= cutoff {
				continue
			}

			pipe.Del(context, keys[i])
			pipe.ZRem(context, constants.RedisKeySessionExpiry, digests[i])
			if decoded {
				pipe.SRem(context, userSessionsKey(record.UserID), digests[i])
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, redisstore.Wrap(err, "redis_session_repo_delete_expired_failed")
	}

	return removed, nil
}

// load fetches and decodes the record stored under digest.
func (repository *RedisSessionRepository) load(context context.Context, digest string) (*redisSessionRecord, error) {
	raw, err := repository.client.Get(context, sessionKey(digest)).Bytes()
	if redisstore.IsNil(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, redisstore.Wrap(err, "redis_session_repo_read_failed")
	}

	record := &redisSessionRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("redis_session_repo_decode_failed: %w", err)
	}

	return record, nil
}
