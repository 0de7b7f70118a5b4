// Package hash derives content keys for cached model answers.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the hex encoded SHA-256 digest of data.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// AnswerKey derives a deterministic cache key for one model request.
// Parts are separated by NUL so that shifting text between parts changes the key.
func AnswerKey(model, system, prompt string) string {
	data := make([]byte, 0, len(model)+len(system)+len(prompt)+2)
	data = append(data, model...)
	data = append(data, 0)
	data = append(data, system...)
	data = append(data, 0)
	data = append(data, prompt...)
	return SHA256(data)
}
