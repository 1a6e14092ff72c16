package envelope

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Compat classifies a ledger's gef_version against this implementation.
type Compat int

const (
	// CompatExact: the ledger version is one this implementation fully
	// implements.
	CompatExact Compat = iota
	// CompatForwardMinor: same major, newer minor. Unknown record types are
	// reported as warnings, not violations.
	CompatForwardMinor
)

// VersionError is the one condition that halts verification outright: a
// gef_version whose major this implementation does not speak.
type VersionError struct {
	Version string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported gef_version %q: this verifier implements %s and cannot interpret a different major version", e.Version, Version)
}

var supportedVersion = semver.MustParse(Version)

// CheckCompat decides how to treat a ledger carrying gefVersion. A different
// major (or an unparsable version) is fatal.
func CheckCompat(gefVersion string) (Compat, error) {
	v, err := semver.NewVersion(gefVersion)
	if err != nil {
		return 0, &VersionError{Version: gefVersion}
	}
	if v.Major() != supportedVersion.Major() {
		return 0, &VersionError{Version: gefVersion}
	}
	if v.Minor() > supportedVersion.Minor() {
		return CompatForwardMinor, nil
	}
	return CompatExact, nil
}

func versionSyntaxOK(v string) bool {
	_, err := semver.NewVersion(v)
	return err == nil
}

func sameMajor(a, b string) bool {
	va, err := semver.NewVersion(a)
	if err != nil {
		return false
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return false
	}
	return va.Major() == vb.Major()
}
