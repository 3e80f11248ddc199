package errors

import "errors"

// This package defines the sentinel errors shared across layers. Services wrap
// them with fmt.Errorf("%w: ...") and the API layer maps them to HTTP status
// codes with errors.Is.

var (
	// ErrNotFound signifies that a requested chat or message could not be located.
	// Mapped to 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that a payload failed schema or business rule checks.
	// Mapped to 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signifies that an operation conflicts with the current state of a
	// resource, e.g. deleting a message that is still being streamed.
	// Mapped to 409 Conflict.
	ErrConflict = errors.New("resource conflict")

	// ErrPermission signifies that the caller may not perform the action.
	// Mapped to 403 Forbidden.
	ErrPermission = errors.New("permission denied")

	// ErrInternal signifies an unexpected server-side failure.
	// Mapped to 500 Internal Server Error.
	ErrInternal = errors.New("internal server error")
)
