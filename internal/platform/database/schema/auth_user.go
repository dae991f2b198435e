// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AuthUserTable represents the 'users' table
type AuthUserTable struct {
	Table        string
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    string
}

// AuthUser is the schema definition for users
var AuthUser = AuthUserTable{
	Table:        "users",
	ID:           "id",
	Username:     "username",
	PasswordHash: "password_hash",
	CreatedAt:    "created_at",
}
