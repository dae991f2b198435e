// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AuthGroupTable represents the 'groups' table
type AuthGroupTable struct {
	Table string
	ID    string
	Name  string
}

// AuthGroup is the schema definition for groups
var AuthGroup = AuthGroupTable{
	Table: "groups",
	ID:    "id",
	Name:  "name",
}
