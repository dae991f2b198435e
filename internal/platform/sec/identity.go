// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"slices"
	"time"
)

// # Permissions

// Permission is a named capability granted through group membership.
// Two permissions are equal when their names are equal.
type Permission string

// PermissionSet is a set of permissions; duplicates collapse.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		set[Permission(name)] = struct{}{}
	}
	return set
}

// Add inserts a permission.
func (set PermissionSet) Add(permission Permission) {
	set[permission] = struct{}{}
}

// Has reports whether the set contains permission. Safe on a nil set.
func (set PermissionSet) Has(permission Permission) bool {
	_, ok := set[permission]
	return ok
}

// Len returns the number of distinct permissions.
func (set PermissionSet) Len() int {
	return len(set)
}

// Names returns the permission names in sorted order.
func (set PermissionSet) Names() []string {
	names := make([]string, 0, len(set))
	for permission := range set {
		names = append(names, string(permission))
	}
	slices.Sort(names)
	return names
}

// # Request Identity

// Identity is the authenticated principal attached to a request.
//
// It is rebuilt from the session store on every request and never cached, so a
// permission change or a password change is visible on the next request.
type Identity struct {
	UserID           int64         `json:"id"`
	Username         string        `json:"username"`
	Permissions      PermissionSet `json:"-"`
	SessionExpiresAt time.Time     `json:"session_expires_at"`
}

// Can reports whether the identity holds permission. A nil identity holds nothing.
func (identity *Identity) Can(permission Permission) bool {
	return identity != nil && identity.Permissions.Has(permission)
}
