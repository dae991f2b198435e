// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// SetRedisTokenGenerator swaps the token source of a Redis session repository.
func SetRedisTokenGenerator(repository *RedisSessionRepository, generate func() (string, error)) {
	repository.generateToken = generate
}

// SetRedisBatchSize shrinks the sweep batch of a Redis session repository.
func SetRedisBatchSize(repository *RedisSessionRepository, size int64) {
	repository.batchSize = size
}

// SetPostgresTokenGenerator swaps the token source of a PostgreSQL session repository.
func SetPostgresTokenGenerator(repository *PostgresSessionRepository, generate func() (string, error)) {
	repository.generateToken = generate
}

// SetPostgresBatchSize shrinks the sweep batch of a PostgreSQL session repository.
func SetPostgresBatchSize(repository *PostgresSessionRepository, size int) {
	repository.batchSize = size
}
