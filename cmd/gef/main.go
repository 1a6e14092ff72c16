// Command gef is the reference tool for the GuardClaw Execution Framework:
// it generates signing keys, appends evidence records, and verifies ledgers
// offline. The verifier needs nothing but the ledger file and, optionally,
// the signer's public key.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	configureLogging(stderr)

	switch args[1] {
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "emit":
		return runEmitCmd(args[2:], stdout, stderr)
	case "head":
		return runHeadCmd(args[2:], stdout, stderr)
	case "inspect":
		return runInspectCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "gef: unknown command %q\n\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func configureLogging(stderr io.Writer) {
	level := slog.LevelInfo
	switch strings.ToUpper(os.Getenv("GEF_LOG_LEVEL")) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `gef - GuardClaw Execution Framework reference tool

Usage:
  gef verify <ledger> [--public-key HEX] [--format human|json|compact]
             [--quiet] [--export PATH] [--range START:END] [--agent ID]
  gef keygen --out PATH [--passphrase-env VAR]
  gef emit --ledger PATH --key PATH --agent ID --type TYPE
           [--payload JSON] [--passphrase-env VAR] [--sync]
  gef head <ledger>
  gef inspect <ledger> [--archive DB --name NAME]

Exit codes for verify:
  0  ledger fully valid (schema + chain + signatures)
  1  ledger has violations
  2  error (missing file, unsupported version, bad arguments)
`)
}
