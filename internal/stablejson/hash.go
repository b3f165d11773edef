package stablejson

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText returns the hex-encoded SHA-256 digest of the given text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// HashObject canonically serializes v and hashes the result. Two values that
// marshal to the same canonical JSON always share a digest.
func HashObject(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashText(string(data)), nil
}
