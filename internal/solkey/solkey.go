// Package solkey validates Solana-style base58 addresses.
package solkey

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidAddress reports whether s decodes to a 32-byte public key.
// Token accounts are PDAs and need not be on the curve, so this is the
// check used for mints and pools.
func ValidAddress(s string) bool {
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// ValidWallet reports whether s is a 32-byte key on the ed25519 curve.
// Wallet addresses are real keypairs and must be on-curve.
func ValidWallet(s string) bool {
	decoded, err := base58.Decode(s)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
