package domain

// ErrorKind classifies per-record and systemic failures as data.
type ErrorKind string

const (
	KindNone                      ErrorKind = ""
	KindMalformedRecord           ErrorKind = "MALFORMED_RECORD"
	KindSchemaMismatch            ErrorKind = "SCHEMA_MISMATCH"
	KindMissingRequiredField      ErrorKind = "MISSING_REQUIRED_FIELD"
	KindOrphanOutcome             ErrorKind = "ORPHAN_OUTCOME"
	KindPlaceholderValue          ErrorKind = "PLACEHOLDER_VALUE"
	KindPolicySignatureConflict   ErrorKind = "POLICY_SIGNATURE_CONFLICT"
	KindSnapshotCommitInterrupted ErrorKind = "SNAPSHOT_COMMIT_INTERRUPTED"
	KindIOFailure                 ErrorKind = "IO_FAILURE"
	KindFiltered                  ErrorKind = "FILTERED"
)
