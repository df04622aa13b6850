package notification

import (
	"errors"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnknownCaller   = errors.New("caller is not a known user")
	ErrValidation      = errors.New("invalid notification request")
	ErrNoRecipients    = errors.New("at least one recipient is required")
	ErrEmptyRecipient  = errors.New("recipient id cannot be empty")
)

// RecipientError is a per-recipient preparation failure. It does not abort
// the batch for the other recipients.
type RecipientError struct {
	RecipientID string `json:"recipientId"`
	Error       string `json:"error"`
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrUnknownCaller)
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
