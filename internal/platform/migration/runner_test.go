// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/foundry/internal/platform/migration"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://app:secret@db:5432/foundry", "pgx5://app:secret@db:5432/foundry"},
		{"postgresql://db/foundry?sslmode=disable", "pgx5://db/foundry?sslmode=disable"},
		{"pgx5://db/foundry", "pgx5://db/foundry"},
		{"host=db dbname=foundry", "host=db dbname=foundry"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, migration.MigrateURL(tt.dsn), tt.dsn)
	}
}

func TestRunUp_MissingSource(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := migration.RunUp("postgres://127.0.0.1:1/none", t.TempDir()+"/absent", logger)
	assert.ErrorContains(t, err, "migration_init_failed")
}
