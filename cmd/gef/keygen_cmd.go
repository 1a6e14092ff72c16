package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/guardclaw/gef/pkg/crypto"
)

// runKeygenCmd implements `gef keygen`: generate an Ed25519 keypair, write
// the key file, print the public key hex. The passphrase, if any, comes
// from an environment variable so it never appears in process listings.
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		out           string
		passphraseEnv string
	)
	cmd.StringVar(&out, "out", "", "Key file path (REQUIRED)")
	cmd.StringVar(&passphraseEnv, "passphrase-env", "", "Environment variable holding the key-file passphrase; omit for a plaintext key file")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if out == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
		return 2
	}

	var passphrase []byte
	if passphraseEnv != "" {
		value := os.Getenv(passphraseEnv)
		if value == "" {
			_, _ = fmt.Fprintf(stderr, "Error: environment variable %s is empty\n", passphraseEnv)
			return 2
		}
		passphrase = []byte(value)
	}

	provider, err := crypto.NewMemoryKeyProvider()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	signer := crypto.NewSigner(provider)

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	priv := provider.PrivateKey()
	if err := crypto.SaveKeyFile(out, priv, passphrase); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "key file:   %s\n", out)
	_, _ = fmt.Fprintf(stdout, "public key: %s\n", signer.PublicKeyHex())
	return 0
}
