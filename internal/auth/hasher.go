package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Default Argon2id parameters
const (
	DefaultArgonTime    = 3
	DefaultArgonMemory  = 64 * 1024 // KiB
	DefaultArgonThreads = 4
	DefaultArgonSaltLen = 16
	DefaultArgonKeyLen  = 32

	// Upper bounds applied when reading parameters back out of a stored hash.
	maxArgonMemory  = 1024 * 1024
	maxArgonTime    = 64
	maxArgonKeyLen  = 128
	minArgonSaltLen = 8
)

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	saltLen uint32
}

type HasherOption func(*argonParams)

// WithTime sets Argon2 iterations
func WithTime(t uint32) HasherOption {
	return func(p *argonParams) {
		if t > 0 {
			p.time = t
		}
	}
}

// WithMemory sets Argon2 memory in KiB
func WithMemory(m uint32) HasherOption {
	return func(p *argonParams) {
		if m > 0 {
			p.memory = m
		}
	}
}

// WithThreads sets Argon2 parallelism
func WithThreads(t uint8) HasherOption {
	return func(p *argonParams) {
		if t > 0 {
			p.threads = t
		}
	}
}

// Hasher produces and checks Argon2id hashes in PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
//
// It holds no mutable state and is safe for concurrent use.
type Hasher struct {
	params argonParams
	random io.Reader
}

func NewHasher(opts ...HasherOption) *Hasher {
	params := argonParams{
		time:    DefaultArgonTime,
		memory:  DefaultArgonMemory,
		threads: DefaultArgonThreads,
		keyLen:  DefaultArgonKeyLen,
		saltLen: DefaultArgonSaltLen,
	}
	for _, opt := range opts {
		opt(&params)
	}

	return &Hasher{params: params, random: rand.Reader}
}

// Hash derives a key from plaintext with a fresh random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.params.saltLen)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.params.time, h.params.memory, h.params.threads, h.params.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory, h.params.time, h.params.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// placeholder returns a well-formed hash with the configured cost and a
// fixed salt. No password verifies against it.
func (h *Hasher) placeholder() string {
	salt := make([]byte, h.params.saltLen)
	for i := range salt {
		salt[i] = byte(i)
	}
	key := make([]byte, h.params.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory, h.params.time, h.params.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verify recomputes the key with the parameters and salt embedded in encoded.
// A malformed encoded value is reported as a mismatch.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	params, salt, expected, ok := decodePHC(encoded)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(plaintext), salt, params.time, params.memory, params.threads, params.keyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func decodePHC(encoded string) (argonParams, []byte, []byte, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, false
	}

	var version int
	if n, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || n != 1 || version != argon2.Version {
		return argonParams{}, nil, nil, false
	}

	var p argonParams
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil || n != 3 {
		return argonParams{}, nil, nil, false
	}
	if p.memory == 0 || p.memory > maxArgonMemory || p.time == 0 || p.time > maxArgonTime || p.threads == 0 {
		return argonParams{}, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minArgonSaltLen {
		return argonParams{}, nil, nil, false
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxArgonKeyLen {
		return argonParams{}, nil, nil, false
	}
	p.keyLen = uint32(len(key))
	p.saltLen = uint32(len(salt))

	return p, salt, key, true
}
