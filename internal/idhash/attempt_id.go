// Package idhash computes deterministic identifiers for trade attempts.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAttemptID computes a deterministic id for one logical trade.
// Formula: SHA256(mint|side|nonce)
// All retries of the same logical trade share one attempt id; the nonce
// distinguishes separate trades on the same mint and side.
// Returns hex-encoded hash (64 characters).
func ComputeAttemptID(mint, side, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s", mint, side, nonce)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
