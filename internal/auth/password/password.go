// Package password hashes user passwords, API key plaintexts and OAuth
// client secrets.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	saltLen = 16
	keyLen  = 32

	// maxMemoryKiB bounds the cost a stored digest can ask Verify to pay.
	maxMemoryKiB = 1 << 20
	maxTime      = 16
)

type params struct {
	memory  uint32
	time    uint32
	threads uint8
}

var current = params{memory: 64 * 1024, time: 1, threads: 4}

var b64 = base64.RawStdEncoding

// Hash returns a salted Argon2id digest in PHC string form.
func Hash(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, current.time, current.memory, current.threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, current.memory, current.time, current.threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether plaintext matches digest. Argon2id and legacy bcrypt
// digests are accepted. Malformed digests never match.
func Verify(plaintext, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	}

	p, salt, key, ok := decode(digest)
	if !ok {
		return false
	}
	check := argon2.IDKey([]byte(plaintext), salt, p.time, p.memory, p.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, check) == 1
}

// NeedsRehash reports digests that should be replaced after the next
// successful Verify: bcrypt rows and Argon2id rows hashed with weaker
// parameters than the current ones.
func NeedsRehash(digest string) bool {
	if isBcrypt(digest) {
		return true
	}
	p, _, _, ok := decode(digest)
	if !ok {
		return false
	}
	return p.memory < current.memory || p.time < current.time
}

func decode(digest string) (params, []byte, []byte, bool) {
	fields := strings.Split(digest, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return params{}, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params{}, nil, nil, false
	}

	var p params
	if n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil || n != 3 {
		return params{}, nil, nil, false
	}
	if p.memory == 0 || p.memory > maxMemoryKiB || p.time == 0 || p.time > maxTime || p.threads == 0 {
		return params{}, nil, nil, false
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return params{}, nil, nil, false
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return params{}, nil, nil, false
	}
	return p, salt, key, true
}

func isBcrypt(digest string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(digest, prefix) {
			return true
		}
	}
	return false
}
