package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the recoverable failure modes. Handlers map these
// to HTTP statuses with errors.Is; anything else is treated as an
// internal persistence fault.
var (
	// ErrNotFound means the referenced record or user does not exist or
	// is soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the operation is not legal in the record's
	// current (status, workflow_status) combination.
	ErrInvalidState = errors.New("invalid state")

	// ErrForbidden means the actor's role lacks privilege for the action.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports the required business fields missing from a
// non-session save.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required fields missing: %s", strings.Join(e.Missing, ", "))
}
