// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AuthPermissionTable represents the 'permissions' table
type AuthPermissionTable struct {
	Table string
	ID    string
	Name  string
}

// AuthPermission is the schema definition for permissions
var AuthPermission = AuthPermissionTable{
	Table: "permissions",
	ID:    "id",
	Name:  "name",
}
