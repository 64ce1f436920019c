package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordExists is returned when a deposit record already exists for
	// the user address or user id at creation time.
	ErrRecordExists = errors.New("deposit record already exists")

	// ErrRecordNotFound is returned when no deposit record matches the
	// requested user address or user id.
	ErrRecordNotFound = errors.New("deposit record not found")

	// ErrTxNotFound is returned by the ledger client when the indexer has
	// no transaction for the requested hash.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrAlreadyRefunded marks a refund request against a terminal record.
	// Distinct from a failed refund so callers can tell "already done"
	// from "succeeded now".
	ErrAlreadyRefunded = errors.New("deposit already refunded")

	// ErrNotVerified is returned when an operation requires a verified
	// deposit and the record is still unverified.
	ErrNotVerified = errors.New("deposit not verified")

	// ErrNoSenderWallet is returned when verification or refund is
	// requested before the user has supplied a sender wallet address.
	ErrNoSenderWallet = errors.New("no sender wallet on record")

	// ErrRefundSubmission wraps wallet-service failures building or
	// broadcasting the refund transaction. The record stays retryable.
	ErrRefundSubmission = errors.New("refund submission failed")

	// ErrSignupCompleted is returned when signup completion is requested
	// on a record that is already completed.
	ErrSignupCompleted = errors.New("signup already completed")
)

// ValidationError reports a malformed signup input field. It is surfaced
// immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
