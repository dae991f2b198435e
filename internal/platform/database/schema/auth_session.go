// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AuthSessionTable represents the 'sessions' table
type AuthSessionTable struct {
	Table       string
	TokenHash   string
	UserID      string
	Fingerprint string
	CreatedAt   string
	ExpiresAt   string
}

// AuthSession is the schema definition for sessions
var AuthSession = AuthSessionTable{
	Table:       "sessions",
	TokenHash:   "token_hash",
	UserID:      "user_id",
	Fingerprint: "fingerprint",
	CreatedAt:   "created_at",
	ExpiresAt:   "expires_at",
}

// Columns lists every column in the order the insert binds them.
func (t AuthSessionTable) Columns() []string {
	return []string{t.TokenHash, t.UserID, t.Fingerprint, t.CreatedAt, t.ExpiresAt}
}
