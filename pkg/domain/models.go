package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// StatementSize is how many transactions a statement lists.
const StatementSize = 10

type Account struct {
	Id           int    `json:"id"`
	Name         string `json:"name"`
	Balance      int64  `json:"balance"`
	BalanceLimit int64  `json:"balance_limit"`
}

// Transaction is an immutable entry of an account's log.
type Transaction struct {
	Id          int64           `json:"-"`
	AccountId   int             `json:"-"`
	Amount      int64           `json:"value"`
	Type        TransactionKind `json:"kind"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"insertedAt"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("transaction_kind", func(fl validator.FieldLevel) bool {
		k, ok := fl.Field().Interface().(TransactionKind)
		return ok && k.Valid()
	})
	if err != nil {
		panic(fmt.Sprintf("register transaction_kind validation: %v", err))
	}
	return v
}

// TransactionRequest is a parsed client request, not yet validated.
// Description length is counted in characters, not bytes.
type TransactionRequest struct {
	Value       int64           `validate:"gt=0"`
	Type        TransactionKind `validate:"transaction_kind"`
	Description string          `validate:"min=1,max=10"`
}

func (r TransactionRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].StructField() {
		case "Value":
			return ErrInvalidAmount
		case "Type":
			return ErrUnknownBankTransactionType
		case "Description":
			return ErrInvalidDescription
		}
	}
	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

// Delta is the signed amount the request applies to the balance.
func (r TransactionRequest) Delta() int64 {
	return r.Type.Sign() * r.Value
}

// Balance is the account state after a committed transaction.
type Balance struct {
	Balance      int64 `json:"balance"`
	BalanceLimit int64 `json:"creditLimit"`
}

// Snapshot is a point-in-time read of an account row.
type Snapshot struct {
	Balance      int64
	BalanceLimit int64
	AsOf         time.Time
}

type Statement struct {
	Balance          int64         `json:"balance"`
	BalanceLimit     int64         `json:"creditLimit"`
	AsOf             time.Time     `json:"asOf"`
	LastTransactions []Transaction `json:"lastTransactions"`
}

// ApplyDelta returns the candidate balance, ErrBalanceOverflow if it does not
// fit in an int64, or ErrInsufficientFunds if it would go below -limit.
func ApplyDelta(balance, limit, delta int64) (int64, error) {
	if (delta > 0 && balance > math.MaxInt64-delta) || (delta < 0 && balance < math.MinInt64-delta) {
		return balance, ErrBalanceOverflow
	}
	candidate := balance + delta
	if candidate < -limit {
		return balance, ErrInsufficientFunds
	}
	return candidate, nil
}
