package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every BusinessError wraps exactly one of these (or an
// unexpected cause) so the transport layer can classify it with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeDatabaseError    = "DATABASE_ERROR"
	ErrCodeCacheError       = "CACHE_ERROR"
	ErrCodeUnexpected       = "UNEXPECTED_ERROR"
	ErrCodePhoneTaken       = "PHONE_ALREADY_REGISTERED"
	ErrCodeLoanHasPayments  = "LOAN_HAS_PAYMENTS"
	ErrCodeOverpayment      = "OVERPAYMENT"
	ErrCodeBorrowerMismatch = "BORROWER_MISMATCH"
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
)

func Validation(message string) *BusinessError {
	return NewBusinessError(ErrCodeValidation, message, ErrValidation)
}

func Validationf(format string, args ...any) *BusinessError {
	return Validation(fmt.Sprintf(format, args...))
}

func Conflict(message string) *BusinessError {
	return NewBusinessError(ErrCodeConflict, message, ErrConflict)
}

func Unauthorized(message string) *BusinessError {
	return NewBusinessError(ErrCodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *BusinessError {
	return NewBusinessError(ErrCodeForbidden, message, ErrForbidden)
}

// WrapNotFound reports a missing entity, e.g. WrapNotFound("Loan", id).
func WrapNotFound(entity, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with ID %s not found", entity, id),
		ErrNotFound,
	)
}

// WrapNotFoundBy reports an entity missing under a lookup key other than its
// ID, e.g. WrapNotFoundBy("Borrower", "phone", "9876543210").
func WrapNotFoundBy(entity, field, value string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with %s %s not found", entity, field, value),
		ErrNotFound,
	)
}

func WrapPhoneTaken(phone string) *BusinessError {
	return NewBusinessError(
		ErrCodePhoneTaken,
		fmt.Sprintf("Phone number %s is already registered", phone),
		ErrConflict,
	)
}

func WrapLoanHasPayments(loanID string, count int) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanHasPayments,
		fmt.Sprintf("Loan with ID %s still has %d payment(s) recorded against it", loanID, count),
		ErrConflict,
	)
}

func WrapOverpayment(amount, remaining string) *BusinessError {
	return NewBusinessError(
		ErrCodeOverpayment,
		fmt.Sprintf("Payment amount %s exceeds remaining amount %s", amount, remaining),
		ErrValidation,
	)
}

func WrapBorrowerMismatch(loanID, borrowerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeBorrowerMismatch,
		fmt.Sprintf("Borrower %s is not the borrower of loan %s", borrowerID, loanID),
		ErrValidation,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// Wrap passes business errors through untouched and classifies anything
// else as a database failure.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}
	return WrapDatabaseError(err)
}

// Code returns the machine-readable code of err, or ErrCodeUnexpected.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeUnexpected
}

// Message returns the human-readable part of err.
func Message(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
