package service

import (
	"errors"
	"fmt"

	"github.com/comings/prepaid-api/internal/core/domain"
)

var (
	ErrRejected              = errors.New("request rejected")
	ErrDuplicateRequest      = errors.New("duplicate request")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrForbidden             = errors.New("forbidden")
	ErrNothingToUpdate       = errors.New("nothing to update")
	ErrUnsupportedProvider   = errors.New("unsupported social provider")
	ErrPinLocked             = errors.New("pin locked")
	ErrPinRequired           = errors.New("pin confirmation required")
	ErrPinIncorrect          = errors.New("incorrect pin")
	ErrPinAlreadySet         = errors.New("pin already set")
	ErrSubscriptionSuspended = errors.New("subscription suspended")
	ErrBillingKeyRequired    = errors.New("billing key required")
	ErrInvalidTransition     = errors.New("invalid subscription transition")
)

// UpstreamError is a rejection reported by an external provider. Message is
// shown to the user as is.
type UpstreamError struct {
	Provider string
	Code     string
	Message  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s rejected request: %s %s", e.Provider, e.Code, e.Message)
}

// MessageError attaches the message shown to the user to one of the
// sentinels above or in domain.
type MessageError struct {
	Err     error
	Message string
}

func (e *MessageError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

func reject(message string) error {
	return &MessageError{Err: ErrRejected, Message: message}
}

func conflict(message string) error {
	return &MessageError{Err: domain.ErrDuplicate, Message: message}
}

func withMessage(err error, message string) error {
	return &MessageError{Err: err, Message: message}
}
