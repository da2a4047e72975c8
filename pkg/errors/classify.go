package errors

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL error classes surfaced by lib/pq.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// ClassifyStore maps driver-level persistence failures onto the domain
// taxonomy so callers never inspect engine-specific codes. A unique
// constraint violation becomes CONFLICT, a missing row NOT_FOUND, a broken
// reference VALIDATION_ERROR, everything else INTERNAL.
func ClassifyStore(err error, message string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Clone(ErrNotFound, message)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return Wrap(err, ErrConflict.Code, ErrConflict.Status, message)
		case pqForeignKeyViolation:
			return Wrap(err, ErrValidation.Code, ErrValidation.Status, message)
		}
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// ClassifyRemote maps transport-level failures of an upstream HTTP call.
// Already classified errors pass through untouched; timeouts, connection
// errors and anything else that never produced a response become
// REMOTE_UNAVAILABLE.
func ClassifyRemote(err error, message string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrRemoteUnavailable.Code, ErrRemoteUnavailable.Status, message)
}
