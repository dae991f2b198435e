// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package username canonicalises account names before they are stored or looked up.
//
// # Usage
//
// Two spellings that render the same ("Ａlice", "alice", "ALICE") must resolve to
// one account, otherwise the unique index on users.username can be sidestepped
// with look-alike characters.
package username

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest accepted username, in runes, after normalization.
const MaxLength = 64

// Normalize converts an arbitrary username into its canonical form.
//
// # Transformation Pipeline
//
// 1. Trims surrounding whitespace.
// 2. Normalizes to NFKC (compatibility forms such as fullwidth letters collapse).
// 3. Applies Unicode case folding.
// 4. Re-normalizes to NFKC, since folding can produce non-normalized sequences.
func Normalize(s string) string {
	result := strings.TrimSpace(s)
	result = norm.NFKC.String(result)
	// A Caser is stateful, so each call gets its own.
	result = cases.Fold().String(result)
	return norm.NFKC.String(result)
}

// Valid reports whether a normalized username is acceptable for a new account:
// non-empty, at most [MaxLength] runes, letters, digits, '.', '-' and '_' only.
func Valid(normalized string) bool {
	if normalized == "" {
		return false
	}

	count := 0
	for _, r := range normalized {
		count++
		if count > MaxLength {
			return false
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		if r == '.' || r == '-' || r == '_' {
			continue
		}
		return false
	}

	return true
}
