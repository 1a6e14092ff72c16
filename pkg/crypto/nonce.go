package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NonceBytes is the nonce entropy: 128 bits from the OS CSPRNG.
const NonceBytes = 16

// RandomNonceHex returns a fresh nonce rendered as 32 lowercase hex chars.
func RandomNonceHex() (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
