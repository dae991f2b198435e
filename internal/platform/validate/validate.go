// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// Handlers validate request payloads with it before calling a service, and the
// account service validates provisioning input with it.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/foundry/internal/platform/apperr"
	"github.com/taibuivan/foundry/pkg/username"
)

var (
	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Username fails if the normalised value is not an acceptable account name.
//
// # Format
//
// After NFKC normalisation and case folding, names are 1 to
// [username.MaxLength] characters of letters, digits, '.', '-' and '_'.
func (v *Validator) Username(field, value string) *Validator {
	if !username.Valid(username.Normalize(value)) {
		v.add(field, "Must contain only letters, digits, '.', '-' or '_'")
	}
	return v
}

// LocalPath fails if value is set and is not a same-site absolute path.
//
// It guards post-login redirects: "/docs" passes, while "//evil.example",
// "https://evil.example" and "/\evil.example" do not.
func (v *Validator) LocalPath(field, value string) *Validator {
	if value == "" {
		return v
	}

	if !IsLocalPath(value) {
		v.add(field, "Must be a path on this site")
	}
	return v
}

// IsLocalPath reports whether value is an absolute path without a host part.
// Control characters are rejected outright; browsers drop tabs and newlines,
// which would turn "/\t/host" into "//host".
func IsLocalPath(value string) bool {
	if strings.ContainsFunc(value, isControl) {
		return false
	}

	if !strings.HasPrefix(value, "/") {
		return false
	}

	return len(value) == 1 || (value[1] != '/' && value[1] != '\\')
}

// isControl matches the ASCII control range and DEL.
func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// OneOf fails if the value is not in the allowed set of strings.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.add(field, fmt.Sprintf("Must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("new_password", next == current, "Must differ from the current password")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method; call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}
