package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no entry exists under the requested id.
var ErrNotFound = errors.New("entry not found")

// InputError reports invalid caller input: a missing locator, a malformed
// document, an invalid slug. Never worth retrying.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func inputErrorf(format string, args ...any) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports that an id or slug is already taken and the caller
// did not ask to overwrite.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflictErrorf(format string, args ...any) *ConflictError {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports an ownership mismatch on a restricted
// operation.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// StoreError wraps an I/O failure talking to the document store. Reads and
// overwrite-writes are safe to retry; create-if-absent writes are not.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
