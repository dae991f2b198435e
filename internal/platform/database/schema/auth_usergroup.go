// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AuthUserGroupTable represents the 'users_groups' table
type AuthUserGroupTable struct {
	Table   string
	UserID  string
	GroupID string
}

// AuthUserGroup is the schema definition for users_groups
var AuthUserGroup = AuthUserGroupTable{
	Table:   "users_groups",
	UserID:  "user_id",
	GroupID: "group_id",
}
