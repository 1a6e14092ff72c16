package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/guardclaw/gef/pkg/crypto"
	"github.com/guardclaw/gef/pkg/ledger"
)

// runEmitCmd implements `gef emit`: append one signed record to a ledger
// from the command line.
func runEmitCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("emit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		ledgerPath    string
		keyPath       string
		agentID       string
		recordType    string
		payloadJSON   string
		passphraseEnv string
		syncWrites    bool
	)
	cmd.StringVar(&ledgerPath, "ledger", "", "Ledger file path (REQUIRED)")
	cmd.StringVar(&keyPath, "key", "", "Key file path (REQUIRED)")
	cmd.StringVar(&agentID, "agent", "", "Agent id (REQUIRED)")
	cmd.StringVar(&recordType, "type", "", "Record type: execution, intent, result, failure (REQUIRED)")
	cmd.StringVar(&payloadJSON, "payload", "{}", "Payload as a JSON object")
	cmd.StringVar(&passphraseEnv, "passphrase-env", "", "Environment variable holding the key-file passphrase")
	cmd.BoolVar(&syncWrites, "sync", false, "fsync after the append")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if ledgerPath == "" || keyPath == "" || agentID == "" || recordType == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --ledger, --key, --agent, and --type are required")
		return 2
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: --payload must be a JSON object: %v\n", err)
		return 2
	}

	var passphrase []byte
	if passphraseEnv != "" {
		passphrase = []byte(os.Getenv(passphraseEnv))
	}
	priv, err := crypto.LoadKeyFile(keyPath, passphrase)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	signer := crypto.NewSigner(crypto.MemoryKeyProviderFromKey(priv))

	opts := []ledger.Option{}
	if syncWrites {
		opts = append(opts, ledger.WithSync())
	}
	h, err := ledger.Open(ledgerPath, signer, agentID, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = h.Close() }()

	env, err := h.Append(recordType, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "appended %s sequence=%d record_id=%s\n", env.RecordType, env.Sequence, env.RecordID)
	return 0
}
