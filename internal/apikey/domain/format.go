package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

const (
	KeyPrefix        = "kfdb_live_"
	displayPrefixLen = 15
)

var keyFormat = regexp.MustCompile(`(?i)^kfdb_live_[a-z0-9]{10,}$`)

// ValidFormat reports whether raw looks like a key this service issues.
func ValidFormat(raw string) bool {
	return keyFormat.MatchString(raw)
}

// DisplayPrefix is the non-secret label stored alongside the key.
func DisplayPrefix(raw string) string {
	if len(raw) <= displayPrefixLen {
		return raw + "..."
	}
	return raw[:displayPrefixLen] + "..."
}

// Fingerprint is the peppered HMAC used to locate a key row. It narrows the
// candidate set; possession is still proven against KeyHash.
func Fingerprint(pepper []byte, raw string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
