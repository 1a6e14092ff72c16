package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/guardclaw/gef/pkg/replay"
)

// runVerifyCmd implements `gef verify`.
//
// Exit codes:
//
//	0 = ledger fully valid
//	1 = ledger has violations
//	2 = runtime error (file missing, unsupported major version, bad flags)
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		publicKey  string
		format     string
		quiet      bool
		exportPath string
		seqRange   string
		agentID    string
	)
	cmd.StringVar(&publicKey, "public-key", "", "Trusted signer public key (64 hex chars); every entry must match")
	cmd.StringVar(&format, "format", "human", "Output format: human, json, compact")
	cmd.BoolVar(&quiet, "quiet", false, "No output; exit code only")
	cmd.StringVar(&exportPath, "export", "", "Write the full JSON report to a file")
	cmd.StringVar(&seqRange, "range", "", "Report only violations at positions [START, END), e.g. 0:1000")
	cmd.StringVar(&agentID, "agent", "", "Report only violations on entries from this agent_id")

	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		_, _ = fmt.Fprintln(stderr, "Usage: gef verify <ledger> [flags]")
		return 2
	}
	path := args[0]
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if cmd.NArg() != 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: gef verify <ledger> [flags]")
		return 2
	}

	var rangeStart, rangeEnd int64 = -1, -1
	if seqRange != "" {
		parts := strings.SplitN(seqRange, ":", 2)
		var err1, err2 error
		if len(parts) == 2 {
			rangeStart, err1 = strconv.ParseInt(parts[0], 10, 64)
			rangeEnd, err2 = strconv.ParseInt(parts[1], 10, 64)
		}
		if len(parts) != 2 || err1 != nil || err2 != nil || rangeStart < 0 || rangeEnd <= rangeStart {
			_, _ = fmt.Fprintf(stderr, "Error: invalid --range %q, use START:END with END > START >= 0\n", seqRange)
			return 2
		}
	}

	var opts []replay.Option
	if publicKey != "" {
		opts = append(opts, replay.WithPolicyKey(publicKey))
	}

	summary, err := replay.VerifyFile(path, opts...)
	if err != nil {
		if !quiet {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 2
	}

	// Filtering narrows the report, never the verdict or the head hash:
	// those always represent the full ledger.
	shown := summary.Violations
	if rangeStart >= 0 {
		shown = filterRange(shown, rangeStart, rangeEnd)
	}
	if agentID != "" {
		shown = filterAgent(shown, path, agentID)
	}

	if exportPath != "" {
		if err := exportReport(exportPath, path, summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: export failed: %v\n", err)
		}
	}

	if quiet {
		return exitCode(summary)
	}

	switch format {
	case "json":
		outputJSON(stdout, path, summary, shown)
	case "compact":
		outputCompact(stdout, path, summary)
	case "human":
		outputHuman(stdout, path, summary, shown)
	default:
		_, _ = fmt.Fprintf(stderr, "Error: unknown --format %q\n", format)
		return 2
	}
	return exitCode(summary)
}

func exitCode(s *replay.ReplaySummary) int {
	if s.OverallValid {
		return 0
	}
	return 1
}

func filterRange(violations []replay.ChainViolation, start, end int64) []replay.ChainViolation {
	out := make([]replay.ChainViolation, 0, len(violations))
	for _, v := range violations {
		if v.AtSequence >= start && v.AtSequence < end {
			out = append(out, v)
		}
	}
	return out
}

// filterAgent keeps violations whose entry belongs to agentID. When any
// line of the ledger cannot be parsed, LoadEnvelopes fails and no filtering
// is applied: every violation stays in the report.
func filterAgent(violations []replay.ChainViolation, path, agentID string) []replay.ChainViolation {
	envs, err := replay.LoadEnvelopes(path)
	if err != nil {
		return violations
	}
	out := make([]replay.ChainViolation, 0, len(violations))
	for _, v := range violations {
		if v.AtSequence < int64(len(envs)) && envs[v.AtSequence] != nil {
			if envs[v.AtSequence].AgentID != agentID {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

type report struct {
	Ledger string `json:"ledger"`
	*replay.ReplaySummary
	ShownViolations []replay.ChainViolation `json:"shown_violations,omitempty"`
}

func exportReport(exportPath, ledgerPath string, s *replay.ReplaySummary) error {
	data, err := json.MarshalIndent(report{Ledger: ledgerPath, ReplaySummary: s}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(exportPath, append(data, '\n'), 0o600)
}

func outputJSON(w io.Writer, path string, s *replay.ReplaySummary, shown []replay.ChainViolation) {
	data, err := json.MarshalIndent(report{Ledger: path, ReplaySummary: s, ShownViolations: shown}, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(w, `{"error":%q}`+"\n", err.Error())
		return
	}
	_, _ = fmt.Fprintln(w, string(data))
}

func outputCompact(w io.Writer, path string, s *replay.ReplaySummary) {
	verdict := "VALID"
	if !s.OverallValid {
		verdict = "INVALID"
	}
	_, _ = fmt.Fprintf(w, "%s %s entries=%d violations=%d head=%s\n",
		verdict, path, s.TotalEntries, len(s.Violations), s.HeadHash)
}

func outputHuman(w io.Writer, path string, s *replay.ReplaySummary, shown []replay.ChainViolation) {
	_, _ = fmt.Fprintf(w, "Ledger:      %s\n", path)
	_, _ = fmt.Fprintf(w, "Version:     %s\n", s.GEFVersion)
	_, _ = fmt.Fprintf(w, "Entries:     %d\n", s.TotalEntries)
	_, _ = fmt.Fprintf(w, "Schema:      %s\n", okFail(s.SchemaValid))
	_, _ = fmt.Fprintf(w, "Chain:       %s\n", okFail(s.ChainValid))
	_, _ = fmt.Fprintf(w, "Signatures:  %s\n", okFail(s.SignaturesValid))
	if s.HeadHash != "" {
		_, _ = fmt.Fprintf(w, "Head:        %s (sequence %d)\n", s.HeadHash, s.HeadSequence)
	}

	for _, warning := range s.Warnings {
		_, _ = fmt.Fprintf(w, "warning: entry %d: %s\n", warning.AtSequence, warning.Detail)
	}
	if len(shown) > 0 {
		_, _ = fmt.Fprintf(w, "\nViolations (%d shown of %d total):\n", len(shown), len(s.Violations))
		for _, v := range shown {
			_, _ = fmt.Fprintf(w, "  [%s] entry %d: %s\n", v.Kind, v.AtSequence, v.Detail)
			if v.Expected != "" || v.Actual != "" {
				_, _ = fmt.Fprintf(w, "      expected %s\n      actual   %s\n", v.Expected, v.Actual)
			}
		}
	}

	verdict := "LEDGER VALID"
	if !s.OverallValid {
		verdict = "LEDGER INVALID"
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", verdict)
}

func okFail(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
