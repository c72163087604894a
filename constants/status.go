package constants

// FileStatus is the per-file outcome shown in the results table.
type FileStatus string

// Stable values (these exact strings are shown to users and stored in batch_file).
const (
	StatusSuccess     FileStatus = "Success"
	StatusNoData      FileStatus = "Error: No data extracted"
	StatusReadFailure FileStatus = "Error: Could not read file"
)

// PartialPrefix starts every partial success status, e.g. "Partial success (missing: Description)".
const PartialPrefix = "Partial success"

// StatusKind buckets a status string for counters and summaries.
type StatusKind string

const (
	KindSuccess   StatusKind = "success"
	KindPartial   StatusKind = "partial"
	KindError     StatusKind = "error"
	KindReadError StatusKind = "read_error"
)
