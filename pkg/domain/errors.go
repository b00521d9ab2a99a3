package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by the ledger core matches exactly one
// of these with errors.Is.
var (
	ErrInvalidRequest = errors.New("invalid transaction request")
	ErrNotFound       = errors.New("account not found")
	ErrLimitExceeded  = errors.New("credit limit exceeded")
	ErrTransient      = errors.New("storage temporarily unavailable")
	ErrInternal       = errors.New("internal storage failure")
)

var (
	ErrInsufficientFunds          = fmt.Errorf("%w: account does not have available limit for this debit amount", ErrLimitExceeded)
	ErrUnknownBankTransactionType = fmt.Errorf("%w: unknown bank transaction type", ErrInvalidRequest)
	ErrInvalidAmount              = fmt.Errorf("%w: value must be a positive integer", ErrInvalidRequest)
	ErrInvalidDescription         = fmt.Errorf("%w: description must have between 1 and 10 characters", ErrInvalidRequest)
	ErrBalanceOverflow            = fmt.Errorf("%w: value overflows account balance", ErrLimitExceeded)
)

// IsClassified reports whether err already belongs to the taxonomy.
func IsClassified(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrInternal)
}

// Classify wraps unknown errors as ErrInternal and leaves classified ones as they are.
func Classify(err error) error {
	if err == nil || IsClassified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
