// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AuthGroupPermissionTable represents the 'groups_permissions' table
type AuthGroupPermissionTable struct {
	Table        string
	GroupID      string
	PermissionID string
}

// AuthGroupPermission is the schema definition for groups_permissions
var AuthGroupPermission = AuthGroupPermissionTable{
	Table:        "groups_permissions",
	GroupID:      "group_id",
	PermissionID: "permission_id",
}
