package envelope

// Version is the protocol version this implementation speaks.
const Version = "1.0"

// Record types registered for gef_version 1.x.
const (
	RecordTypeExecution = "execution"
	RecordTypeIntent    = "intent"
	RecordTypeResult    = "result"
	RecordTypeFailure   = "failure"
)

var v1RecordTypes = map[string]bool{
	RecordTypeExecution: true,
	RecordTypeIntent:    true,
	RecordTypeResult:    true,
	RecordTypeFailure:   true,
}

// RegisteredTypes returns the record types registered for a gef_version,
// or nil for versions this implementation does not know.
func RegisteredTypes(gefVersion string) []string {
	if !sameMajor(gefVersion, Version) {
		return nil
	}
	return []string{RecordTypeExecution, RecordTypeIntent, RecordTypeResult, RecordTypeFailure}
}

// IsRegistered reports whether recordType belongs to the registry for
// gefVersion. Versions with a different major have no registry here.
func IsRegistered(gefVersion, recordType string) bool {
	if !sameMajor(gefVersion, Version) {
		return false
	}
	return v1RecordTypes[recordType]
}
