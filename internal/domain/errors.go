package domain

import "errors"

// Common errors. Callers match them with errors.Is after unwrapping.
var (
	// ErrNotFound indicates a requested file or category is absent.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates an operator without a live admin session
	// attempted a privileged action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorageUnavailable indicates an I/O failure reading or writing the
	// ledger or file bytes.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDeliveryFailed indicates a single-recipient send failure during a
	// broadcast. It is counted locally, never propagated out of the run.
	ErrDeliveryFailed = errors.New("delivery failed")
)
