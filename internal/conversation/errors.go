package conversation

import "errors"

var (
	// ErrOperationInProgress is returned when the per-user lock could not be
	// acquired after every retry — surfaced to the user verbatim.
	ErrOperationInProgress = errors.New("operation in progress, please try again in a moment")
)
