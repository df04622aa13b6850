package workflow

import (
	"errors"
	"fmt"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/dukex/folio/pkg/review"
)

var (
	// Validation errors (400 Bad Request).
	ErrValidation      = errors.New("invalid request")
	ErrInvalidOutcome  = errors.New("invalid decision outcome")
	ErrReviewerRole    = errors.New("user is not a peer reviewer")
	ErrUnknownReviewer = errors.New("reviewer not found")

	// Caller errors.
	ErrUnauthenticated = errors.New("caller identity required")
	ErrForbidden       = errors.New("caller is not allowed to perform this operation")

	// Conflicts (409 Conflict).
	ErrInvalidTransition = errors.New("operation not allowed in current status")
	ErrTooManyConflicts  = errors.New("manuscript changed concurrently too many times")
	ErrReminderNotDue    = errors.New("reminder not due")

	ErrNotFound = persistence.ErrManuscriptNotFound
)

// TransitionError reports an operation that the manuscript's status does not allow.
type TransitionError struct {
	Op           string
	ManuscriptID string
	From         models.Status
	To           models.Status
	Err          error
}

func (e *TransitionError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("%s %s: %s -> %s: %v", e.Op, e.ManuscriptID, e.From, e.To, e.Err)
	}

	return fmt.Sprintf("%s %s: from %s: %v", e.Op, e.ManuscriptID, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func (e *TransitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func transitionError(op, id string, from, to models.Status) error {
	return &TransitionError{Op: op, ManuscriptID: id, From: from, To: to, Err: ErrInvalidTransition}
}

func validationError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrValidation, err)
}

// IsValidation reports errors caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidOutcome) ||
		errors.Is(err, ErrReviewerRole) ||
		errors.Is(err, ErrUnknownReviewer) ||
		review.IsValidation(err)
}

// IsConflict reports errors caused by the manuscript's current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTooManyConflicts) ||
		errors.Is(err, persistence.ErrManuscriptAlreadyExists) ||
		review.IsConflict(err)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func IsNotFound(err error) bool {
	return persistence.IsManuscriptNotFound(err)
}

// IsReviewerNotFound reports operations addressed to a reviewer who is not on the roster.
func IsReviewerNotFound(err error) bool {
	return review.IsNotAssigned(err)
}

// ErrorKind names the class of err for traces: unauthenticated, forbidden,
// not_found, validation, conflict or internal.
func ErrorKind(err error) string {
	switch {
	case IsUnauthenticated(err):
		return "unauthenticated"
	case IsForbidden(err):
		return "forbidden"
	case IsNotFound(err), IsReviewerNotFound(err):
		return "not_found"
	case IsValidation(err):
		return "validation"
	case IsConflict(err):
		return "conflict"
	default:
		return "internal"
	}
}
