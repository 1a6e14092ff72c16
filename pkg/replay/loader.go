package replay

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/guardclaw/gef/pkg/envelope"
)

// LoadEnvelopes parses every line of a ledger, including an unterminated
// final line, into envelopes without verifying anything. Inspection tooling and the archive mirror use
// it after (or instead of) a verification pass; an unparsable line is an
// error here, not a violation.
func LoadEnvelopes(path string) ([]*envelope.Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var out []*envelope.Envelope
	position := 0
	for scanner.Scan() {
		line := bytes.TrimSuffix(scanner.Bytes(), []byte{'\r'})
		env, _ := envelope.ParseLine(line)
		if env == nil {
			return nil, fmt.Errorf("replay: line %d is not a parsable envelope", position)
		}
		out = append(out, env)
		position++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay: read: %w", err)
	}
	return out, nil
}
