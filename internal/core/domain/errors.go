package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceRemaining    = errors.New("balance remaining")
	ErrAlreadyCancelled    = errors.New("transaction already cancelled")
	ErrInvalidInput        = errors.New("invalid input")
)

// InsufficientBalanceError carries the balance observed when a debit was refused.
type InsufficientBalanceError struct {
	Current int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: current %d", e.Current)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ValidationError reports a rejected input field with a user facing message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
