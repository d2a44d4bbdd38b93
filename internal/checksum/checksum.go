// Package checksum hashes note content for ETags and vault change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// JSON returns the digest of v's JSON encoding. Values that cannot be
// encoded hash as the empty input.
func JSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = nil
	}
	return Sum(data)
}
