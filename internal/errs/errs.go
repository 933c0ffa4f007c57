// Package errs defines the sentinel error kinds shared by the services.
// Handlers translate them to HTTP statuses in httpx; callers test with
// errors.Is.
package errs

import "errors"

var (
	// ErrValidation marks a malformed or missing required field.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization marks an acting party that is not a participant of
	// the target message.
	ErrAuthorization = errors.New("not a participant")

	// ErrNotFound marks a message or attachment that does not exist or is
	// no longer visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrDependency marks an unavailable collaborator (user directory,
	// attachment store, table store).
	ErrDependency = errors.New("dependency unavailable")
)
