package services

import "errors"

// ErrQuotaExceeded is returned when a free account has used its daily
// generations.
var ErrQuotaExceeded = errors.New("free generation quota exhausted")

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// PaymentRequiredError wraps ErrQuotaExceeded with the message shown to the
// user.
type PaymentRequiredError struct{ Message string }

func (e *PaymentRequiredError) Error() string { return e.Message }

func (e *PaymentRequiredError) Unwrap() error { return ErrQuotaExceeded }
