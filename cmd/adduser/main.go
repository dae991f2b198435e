// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command adduser provisions accounts, groups and grants directly in the database.
//
// # Usage
//
//	adduser add <username>                # password read from stdin
//	adduser passwd <username>             # resets the password, revokes sessions
//	adduser join <username> <group>
//	adduser grant <group> <permission>
//	adduser revoke <username>             # deletes every session of the user
//	adduser check <username>              # prints groups, permissions, hash health
//
// It reads the same environment as the server (DATABASE_URL, SESSION_BACKEND,
// REDIS_URL, ARGON2_*).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/foundry/internal/platform/config"
	"github.com/taibuivan/foundry/internal/platform/migration"
	pgstore "github.com/taibuivan/foundry/internal/platform/postgres"
	redisstore "github.com/taibuivan/foundry/internal/platform/redis"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/users/account"
	"github.com/taibuivan/foundry/internal/users/auth"
)

const usage = `usage:
  adduser add <username>
  adduser passwd <username>
  adduser join <username> <group>
  adduser grant <group> <permission>
  adduser revoke <username>
  adduser check <username>`

// arity is the number of arguments each subcommand takes.
var arity = map[string]int{
	"add":    1,
	"passwd": 1,
	"join":   2,
	"grant":  2,
	"revoke": 1,
	"check":  1,
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "failure: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	command, operands := args[0], args[1:]
	want, ok := arity[command]
	if !ok || len(operands) != want {
		return errors.New(usage)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, logger); err != nil {
		return err
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, pgstore.DefaultOptions(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	var sessions account.SessionRevoker = auth.NewSessionRepository(pool)
	if cfg.SessionBackend == config.SessionBackendRedis {
		var client *redis.Client
		client, err = redisstore.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = auth.NewRedisSessionRepository(client)
	}

	hasher, err := sec.NewArgon2Hasher(sec.Argon2Params{
		MemoryKB:    cfg.Argon2MemoryKB,
		Time:        cfg.Argon2Time,
		Parallelism: cfg.Argon2Parallelism,
	})
	if err != nil {
		return err
	}

	service := account.NewService(account.Dependencies{
		Users:       auth.NewUserRepository(pool),
		Permissions: auth.NewPermissionRepository(pool),
		Groups:      account.NewGroupRepository(pool),
		Sessions:    sessions,
		Hasher:      hasher,
	}, logger)

	switch command {
	case "add":
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		user, err := service.CreateUser(ctx, operands[0], password)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "created user %q (id %d)\n", user.Username, user.ID)

	case "passwd":
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		user, err := service.SetPassword(ctx, operands[0], password)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "password updated for %q; sessions revoked\n", user.Username)

	case "join":
		if err := service.AddToGroup(ctx, operands[0], operands[1]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "added %q to group %q\n", operands[0], operands[1])

	case "grant":
		if err := service.GrantPermission(ctx, operands[0], sec.Permission(operands[1])); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "granted %q to group %q\n", operands[1], operands[0])

	case "revoke":
		deleted, err := service.RevokeSessions(ctx, operands[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "revoked %d session(s)\n", deleted)

	case "check":
		summary, err := service.Describe(ctx, operands[0])
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}

	return nil
}

// readPassword takes the first line of stdin as the password.
func readPassword(stdin io.Reader) (string, error) {
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password on stdin")
	}
	return password, nil
}
