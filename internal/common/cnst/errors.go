package cnst

import "errors"

var (
	// ErrTenantNotFound is returned when a tenant id does not resolve
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrAttemptNotFound is returned when an ingestion attempt does not exist or is out of scope
	ErrAttemptNotFound = errors.New("ingestion attempt not found")
	// ErrDuplicateUpload is returned when the same file content was already ingested for a tenant
	ErrDuplicateUpload = errors.New("duplicate upload")
	// ErrInvalidTransition is returned when an attempt is not in the status a transition expects
	ErrInvalidTransition = errors.New("invalid attempt status transition")
	// ErrNoValidRows is returned when normalization accepted zero rows
	ErrNoValidRows = errors.New("no valid rows")
	// ErrRunnerStopped is returned when work is enqueued on a stopped runner
	ErrRunnerStopped = errors.New("pipeline runner stopped")
	// ErrQueueFull is returned when the in-memory queue cannot accept more attempts
	ErrQueueFull = errors.New("pipeline queue full")
	// ErrAccessDenied is returned when a viewer has no membership granting the requested access
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidKind is returned for an unknown analytics result kind
	ErrInvalidKind = errors.New("invalid result kind")
)
