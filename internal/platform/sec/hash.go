// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides the cryptographic primitives of the access-control layer.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, opaque token
// generation) from the domain logic. It is injected into the auth service through
// the [PasswordHasher] interface.
package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// # Password Hashing

// Bounds applied both to configuration and to parameters read back from stored
// hashes. A tampered row must not be able to make verification allocate gigabytes.
const (
	minMemoryKB    uint32 = 8 * 1024
	maxMemoryKB    uint32 = 1024 * 1024
	minTimeCost    uint32 = 1
	maxTimeCost    uint32 = 16
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	maxKeyLength   uint32 = 128

	defaultSaltLength uint32 = 16
	defaultKeyLength  uint32 = 32

	argon2Algorithm = "argon2id"
)

// PasswordHasher produces and checks one-way, salted password hashes.
type PasswordHasher interface {
	// Hash returns an encoded hash of the plain-text password.
	Hash(plainTextPassword string) (string, error)

	// Verify reports whether plainTextPassword matches existingHash.
	// A malformed hash never matches.
	Verify(plainTextPassword, existingHash string) bool

	// NeedsRehash reports whether existingHash was produced with weaker settings.
	NeedsRehash(existingHash string) bool
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the production cost parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKB:    64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  defaultSaltLength,
		KeyLength:   defaultKeyLength,
	}
}

// Argon2Hasher implements [PasswordHasher] with argon2id PHC strings:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
//
// Hashes carrying a bcrypt prefix ($2a$, $2b$, $2y$) are still verified so that
// imported accounts can log in.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher validates params and returns a hasher.
// Zero SaltLength and KeyLength fall back to 16 and 32 bytes.
func NewArgon2Hasher(params Argon2Params) (*Argon2Hasher, error) {
	if params.SaltLength == 0 {
		params.SaltLength = defaultSaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = defaultKeyLength
	}

	switch {
	case params.MemoryKB < minMemoryKB || params.MemoryKB > maxMemoryKB:
		return nil, fmt.Errorf("sec: argon2 memory must be within [%d, %d] KB", minMemoryKB, maxMemoryKB)
	case params.Time < minTimeCost || params.Time > maxTimeCost:
		return nil, fmt.Errorf("sec: argon2 time must be within [%d, %d]", minTimeCost, maxTimeCost)
	case params.Parallelism < minParallelism:
		return nil, errors.New("sec: argon2 parallelism must be >= 1")
	case params.SaltLength < minSaltLength:
		return nil, errors.New("sec: argon2 salt length must be >= 16")
	case params.KeyLength < minKeyLength || params.KeyLength > maxKeyLength:
		return nil, fmt.Errorf("sec: argon2 key length must be within [%d, %d]", minKeyLength, maxKeyLength)
	}

	return &Argon2Hasher{params: params}, nil
}

// Hash hashes a plain-text password with a fresh random salt.
func (hasher *Argon2Hasher) Hash(plainTextPassword string) (string, error) {
	salt := make([]byte, hasher.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("sec: failed to read salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(plainTextPassword),
		salt,
		hasher.params.Time,
		hasher.params.MemoryKB,
		hasher.params.Parallelism,
		hasher.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		hasher.params.MemoryKB,
		hasher.params.Time,
		hasher.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compares a plain-text password with its hashed version.
//
// The derived key is compared with [subtle.ConstantTimeCompare], so the time
// taken does not depend on where the first mismatching byte is.
func (hasher *Argon2Hasher) Verify(plainTextPassword, existingHash string) bool {
	if isBcrypt(existingHash) {
		return bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword)) == nil
	}

	parsed, err := parsePHC(existingHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(plainTextPassword),
		parsed.salt,
		parsed.time,
		parsed.memoryKB,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1
}

// NeedsRehash reports whether existingHash should be replaced on the next
// deliberate password write. Malformed and bcrypt hashes always need one.
func (hasher *Argon2Hasher) NeedsRehash(existingHash string) bool {
	parsed, err := parsePHC(existingHash)
	if err != nil {
		return true
	}

	return parsed.memoryKB < hasher.params.MemoryKB ||
		parsed.time < hasher.params.Time ||
		parsed.parallelism < hasher.params.Parallelism ||
		uint32(len(parsed.key)) != hasher.params.KeyLength
}

// # PHC Parsing

type phcHash struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

// parsePHC decodes an argon2id PHC string, rejecting anything outside the
// accepted parameter bounds.
func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("sec: invalid PHC format")
	}

	if parts[1] != argon2Algorithm {
		return nil, errors.New("sec: unsupported algorithm")
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, errors.New("sec: unsupported argon2 version")
	}

	parsed := &phcHash{}
	if err := parsed.parseParams(parts[3]); err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return nil, errors.New("sec: invalid salt")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || uint32(len(key)) < minKeyLength || uint32(len(key)) > maxKeyLength {
		return nil, errors.New("sec: invalid key")
	}

	parsed.salt = salt
	parsed.key = key
	return parsed, nil
}

func (parsed *phcHash) parseParams(part string) error {
	var memorySet, timeSet, parallelismSet bool

	for _, pair := range strings.Split(part, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return errors.New("sec: invalid parameter entry")
		}

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minMemoryKB || uint32(v) > maxMemoryKB {
				return errors.New("sec: invalid memory parameter")
			}
			parsed.memoryKB = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minTimeCost || uint32(v) > maxTimeCost {
				return errors.New("sec: invalid time parameter")
			}
			parsed.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return errors.New("sec: invalid parallelism parameter")
			}
			parsed.parallelism = uint8(v)
			parallelismSet = true
		default:
			return errors.New("sec: unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return errors.New("sec: missing parameters")
	}

	return nil
}
