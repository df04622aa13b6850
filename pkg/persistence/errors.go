// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrManuscriptNotFound indicates a manuscript was not found by the given identifier.
	ErrManuscriptNotFound = errors.New("manuscript not found")

	// ErrManuscriptAlreadyExists indicates a manuscript with the same identifier already exists.
	ErrManuscriptAlreadyExists = errors.New("manuscript already exists")

	// ErrConflict indicates the stored revision moved since the caller read it.
	ErrConflict = errors.New("revision conflict")

	// ErrUserNotFound indicates a user was not found by the given identifier.
	ErrUserNotFound = errors.New("user not found")
)

// ManuscriptError wraps manuscript-related errors with additional context.
type ManuscriptError struct {
	Op           string // Operation being performed (e.g., "GetByID", "Update")
	ManuscriptID string
	Revision     int64 // Expected revision for Update, zero otherwise
	Err          error
}

func (e *ManuscriptError) Error() string {
	if e.Revision > 0 {
		return fmt.Sprintf("%s operation failed for manuscript %s at revision %d: %v", e.Op, e.ManuscriptID, e.Revision, e.Err)
	}

	return fmt.Sprintf("%s operation failed for manuscript %s: %v", e.Op, e.ManuscriptID, e.Err)
}

func (e *ManuscriptError) Unwrap() error {
	return e.Err
}

func (e *ManuscriptError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewManuscriptError creates a new manuscript error.
func NewManuscriptError(op, manuscriptID string, err error) *ManuscriptError {
	return &ManuscriptError{Op: op, ManuscriptID: manuscriptID, Err: err}
}

// NewConflictError reports a failed compare-and-set.
func NewConflictError(op, manuscriptID string, expectedRevision int64) *ManuscriptError {
	return &ManuscriptError{Op: op, ManuscriptID: manuscriptID, Revision: expectedRevision, Err: ErrConflict}
}

// UserError wraps user lookups.
type UserError struct {
	Op     string
	UserID string
	Err    error
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s operation failed for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func (e *UserError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewUserError creates a new user error.
func NewUserError(op, userID string, err error) *UserError {
	return &UserError{Op: op, UserID: userID, Err: err}
}

// IsManuscriptNotFound checks if an error indicates a manuscript was not found.
func IsManuscriptNotFound(err error) bool {
	return errors.Is(err, ErrManuscriptNotFound)
}

// IsConflict checks if an error is a revision conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUserNotFound checks if an error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
