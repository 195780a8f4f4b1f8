package misc

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashHeader carries the hex SHA-256 of a body followed by the shared key.
const HashHeader = "HashSHA256"

// SumSHA256 hashes value followed by key. value is never modified.
func SumSHA256(value []byte, key string) string {
	h := sha256.New()
	h.Write(value)
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySHA256 reports whether got is the SumSHA256 of value and key. Hex
// case and surrounding blanks are ignored; the comparison is constant time.
func VerifySHA256(value []byte, key, got string) bool {
	want := SumSHA256(value, key)
	got = strings.ToLower(strings.TrimSpace(got))
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
