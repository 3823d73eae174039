package texture

import (
	"crypto/sha512"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-512 of data. Cache keys are derived
// from the source file bytes, so an edited file never hits a stale entry.
func Hash(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}
