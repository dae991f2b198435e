// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/foundry/internal/platform/database/schema"
)

/*
TestAuthSession_Columns keeps the insert order the session repository binds.
*/
func TestAuthSession_Columns(t *testing.T) {
	assert.Equal(t,
		[]string{"token_hash", "user_id", "fingerprint", "created_at", "expires_at"},
		schema.AuthSession.Columns(),
	)
}
