package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// Key file persistence. The protocol assumes only the ability to call
// Sign(message); how the key rests on disk is implementation-defined. This
// implementation stores the 32-byte Ed25519 seed either in the clear (test
// fixtures, CI) or sealed with XSalsa20-Poly1305 under an Argon2id-derived
// key.

const keyFileVersion = 1

// Argon2id parameters. Changing these changes the file format version.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

type keyFile struct {
	Version   int    `json:"version"`
	PublicKey string `json:"public_key"`
	Seed      string `json:"seed,omitempty"` // hex, plaintext variant only

	KDF        string `json:"kdf,omitempty"` // "argon2id"
	Salt       string `json:"salt,omitempty"`
	Nonce      string `json:"nonce,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
}

// SaveKeyFile writes the private key's seed to path with 0600 permissions.
// A nil or empty passphrase writes the plaintext variant; otherwise the seed
// is sealed under the passphrase.
func SaveKeyFile(path string, priv ed25519.PrivateKey, passphrase []byte) error {
	pub := priv.Public().(ed25519.PublicKey)
	kf := keyFile{
		Version:   keyFileVersion,
		PublicKey: hex.EncodeToString(pub),
	}

	seed := priv.Seed()
	if len(passphrase) == 0 {
		kf.Seed = hex.EncodeToString(seed)
	} else {
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("salt generation failed: %w", err)
		}
		var nonce [24]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return fmt.Errorf("nonce generation failed: %w", err)
		}
		var sealKey [32]byte
		copy(sealKey[:], argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen))

		sealed := secretbox.Seal(nil, seed, &nonce, &sealKey)

		kf.KDF = "argon2id"
		kf.Salt = base64.RawStdEncoding.EncodeToString(salt)
		kf.Nonce = base64.RawStdEncoding.EncodeToString(nonce[:])
		kf.Ciphertext = base64.RawStdEncoding.EncodeToString(sealed)
	}

	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("key file encoding failed: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("key file write failed: %w", err)
	}
	return nil
}

// LoadKeyFile reads a key file written by SaveKeyFile. The passphrase is
// required iff the file is encrypted.
func LoadKeyFile(path string, passphrase []byte) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("key file read failed: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("key file parse failed: %w", err)
	}
	if kf.Version != keyFileVersion {
		return nil, fmt.Errorf("unsupported key file version %d", kf.Version)
	}

	var seed []byte
	switch {
	case kf.Seed != "":
		seed, err = hex.DecodeString(kf.Seed)
		if err != nil {
			return nil, fmt.Errorf("invalid seed hex: %w", err)
		}
	case kf.KDF == "argon2id":
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("key file is encrypted: passphrase required")
		}
		salt, err := base64.RawStdEncoding.DecodeString(kf.Salt)
		if err != nil {
			return nil, fmt.Errorf("invalid salt: %w", err)
		}
		nonceRaw, err := base64.RawStdEncoding.DecodeString(kf.Nonce)
		if err != nil || len(nonceRaw) != 24 {
			return nil, fmt.Errorf("invalid nonce")
		}
		sealed, err := base64.RawStdEncoding.DecodeString(kf.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("invalid ciphertext: %w", err)
		}
		var nonce [24]byte
		copy(nonce[:], nonceRaw)
		var sealKey [32]byte
		copy(sealKey[:], argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen))
		seed, err = openSealed(sealed, &nonce, &sealKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("key file has neither seed nor a supported kdf")
	}

	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)

	if kf.PublicKey != "" {
		gotPub := hex.EncodeToString(priv.Public().(ed25519.PublicKey))
		if gotPub != kf.PublicKey {
			return nil, fmt.Errorf("key file public key mismatch: stored %s, derived %s", kf.PublicKey, gotPub)
		}
	}
	return priv, nil
}

func openSealed(sealed []byte, nonce *[24]byte, key *[32]byte) ([]byte, error) {
	out, ok := secretbox.Open(nil, sealed, nonce, key)
	if !ok {
		return nil, fmt.Errorf("key decryption failed: wrong passphrase or corrupted file")
	}
	return out, nil
}
