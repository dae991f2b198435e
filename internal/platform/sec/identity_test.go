// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/foundry/internal/platform/sec"
)

/*
TestPermissionSet_SetSemantics verifies duplicates collapse and names are sorted.
*/
func TestPermissionSet_SetSemantics(t *testing.T) {
	set := sec.NewPermissionSet("articles.write", "articles.read", "articles.write")
	set.Add("articles.read")

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"articles.read", "articles.write"}, set.Names())
	assert.True(t, set.Has("articles.write"))
	assert.False(t, set.Has("sessions.manage"))
}

/*
TestIdentity_Can treats a nil identity as anonymous.
*/
func TestIdentity_Can(t *testing.T) {
	var anonymous *sec.Identity
	assert.False(t, anonymous.Can("articles.read"))

	var emptySet sec.PermissionSet
	assert.False(t, emptySet.Has("articles.read"))
	assert.Empty(t, emptySet.Names())

	identity := &sec.Identity{UserID: 1, Username: "alice", Permissions: sec.NewPermissionSet("articles.read")}
	assert.True(t, identity.Can("articles.read"))
	assert.False(t, identity.Can("articles.write"))
}
