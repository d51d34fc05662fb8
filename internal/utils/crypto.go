// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// SecureCompare is an exact, case-sensitive comparison in constant time.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskSecret keeps the first and last four characters of a key.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		if secret == "" {
			return ""
		}
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
