package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/guardclaw/gef/pkg/archive"
	"github.com/guardclaw/gef/pkg/replay"
)

// runInspectCmd implements `gef inspect`: summarize a ledger's contents and
// optionally mirror it into a SQLite archive for ad-hoc querying.
func runInspectCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("inspect", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		archivePath string
		ledgerName  string
		publicKey   string
	)
	cmd.StringVar(&archivePath, "archive", "", "Mirror the ledger into this SQLite database (requires a valid ledger)")
	cmd.StringVar(&ledgerName, "name", "default", "Ledger name inside the archive")
	cmd.StringVar(&publicKey, "public-key", "", "Trusted signer public key for the pre-mirror verification")

	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		_, _ = fmt.Fprintln(stderr, "Usage: gef inspect <ledger> [flags]")
		return 2
	}
	path := args[0]
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if cmd.NArg() != 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: gef inspect <ledger> [flags]")
		return 2
	}

	envs, err := replay.LoadEnvelopes(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	counts := make(map[string]int)
	agents := make(map[string]bool)
	for _, env := range envs {
		counts[env.RecordType]++
		agents[env.AgentID] = true
	}

	_, _ = fmt.Fprintf(stdout, "entries: %d\n", len(envs))
	_, _ = fmt.Fprintf(stdout, "agents:  %d\n", len(agents))
	types := make([]string, 0, len(counts))
	for rt := range counts {
		types = append(types, rt)
	}
	sort.Strings(types)
	for _, rt := range types {
		_, _ = fmt.Fprintf(stdout, "  %-10s %d\n", rt, counts[rt])
	}
	if len(envs) > 0 {
		first := envs[0]
		last := envs[len(envs)-1]
		_, _ = fmt.Fprintf(stdout, "window:  %s .. %s\n", first.Timestamp, last.Timestamp)
	}

	if archivePath == "" {
		return 0
	}

	store, err := archive.Open(archivePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = store.Close() }()

	var opts []replay.Option
	if publicKey != "" {
		opts = append(opts, replay.WithPolicyKey(publicKey))
	}
	if _, err := store.MirrorFile(context.Background(), ledgerName, path, opts...); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "mirrored into %s as %q\n", archivePath, ledgerName)
	return 0
}
