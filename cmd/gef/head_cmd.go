package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/guardclaw/gef/pkg/replay"
)

// runHeadCmd implements `gef head`: print the chain-head commitment of a
// ledger. The head hash is the causal hash any subsequent entry would
// reference; anchoring it externally (a git commit, a timestamping service)
// freezes the ledger's history up to that point.
func runHeadCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("head", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: gef head <ledger>")
		return 2
	}

	summary, err := replay.VerifyFile(cmd.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if summary.TotalEntries == 0 {
		_, _ = fmt.Fprintln(stdout, "ledger is empty")
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "head hash:     %s\n", summary.HeadHash)
	_, _ = fmt.Fprintf(stdout, "head sequence: %d\n", summary.HeadSequence)
	_, _ = fmt.Fprintf(stdout, "entries:       %d\n", summary.TotalEntries)
	if !summary.OverallValid {
		_, _ = fmt.Fprintf(stdout, "note: ledger has %d violations; run gef verify\n", len(summary.Violations))
		return 1
	}
	return 0
}
