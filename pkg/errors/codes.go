package errors

// Code classifies an engine error for callers at the request boundary.
type Code string

const (
	CodeUnknown     Code = "UNKNOWN"
	CodeValidation  Code = "VALIDATION"
	CodeForbidden   Code = "FORBIDDEN"
	CodeNotFound    Code = "NOT_FOUND"
	CodeNotEligible Code = "NOT_ELIGIBLE"
	CodeConflict    Code = "CONFLICT"
	CodeInternal    Code = "INTERNAL"
)
