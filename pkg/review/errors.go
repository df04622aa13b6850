package review

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyAssigned   = errors.New("reviewer already assigned")
	ErrNotAssigned       = errors.New("reviewer not assigned")
	ErrAuthorConflict    = errors.New("reviewer is an author of the manuscript")
	ErrAlreadyResponded  = errors.New("invitation already answered")
	ErrNotAccepted       = errors.New("invitation not accepted")
	ErrAlreadySubmitted  = errors.New("review already submitted for this version")
	ErrInvalidDecision   = errors.New("invalid decision")
	ErrEmptyReviewerID   = errors.New("reviewer ID cannot be empty")
	ErrInvalidReminder   = errors.New("reminder days must not be negative")
	ErrDeadlineInThePast = errors.New("deadline must be after the assignment")
)

// AssignmentError carries the reviewer an assignment mutation failed for.
type AssignmentError struct {
	Op         string
	ReviewerID string
	Err        error
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("%s failed for reviewer %s: %v", e.Op, e.ReviewerID, e.Err)
}

func (e *AssignmentError) Unwrap() error {
	return e.Err
}

func (e *AssignmentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func assignmentError(op, reviewerID string, err error) error {
	return &AssignmentError{Op: op, ReviewerID: reviewerID, Err: err}
}

// IsConflict reports whether err is a roster state conflict rather than bad input.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyAssigned) ||
		errors.Is(err, ErrAlreadyResponded) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrNotAccepted)
}

// IsValidation reports whether err was caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrEmptyReviewerID) ||
		errors.Is(err, ErrInvalidReminder) ||
		errors.Is(err, ErrDeadlineInThePast) ||
		errors.Is(err, ErrAuthorConflict)
}

// IsNotAssigned reports whether err names a reviewer missing from the roster.
func IsNotAssigned(err error) bool {
	return errors.Is(err, ErrNotAssigned)
}
