//go:build !unix

package ledger

import "os"

// Platforms without advisory locks: the caller is responsible for ensuring a
// single writer per ledger file.
func lockExclusive(_ *os.File) error { return nil }

func unlock(_ *os.File) {}
