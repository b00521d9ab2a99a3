package domain

import "fmt"

// TransactionKind is the two-valued transaction tag. The zero value is invalid.
type TransactionKind uint8

const (
	Credit TransactionKind = iota + 1
	Debit
)

// ParseTransactionKind accepts exactly "c" or "d".
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch s {
	case "c":
		return Credit, nil
	case "d":
		return Debit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBankTransactionType, s)
	}
}

func (k TransactionKind) Valid() bool {
	return k == Credit || k == Debit
}

func (k TransactionKind) String() string {
	switch k {
	case Credit:
		return "c"
	case Debit:
		return "d"
	default:
		return "unknown"
	}
}

// Sign returns +1 for credits and -1 for debits.
func (k TransactionKind) Sign() int64 {
	if k == Debit {
		return -1
	}
	return 1
}

func (k TransactionKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, ErrUnknownBankTransactionType
	}
	return []byte(k.String()), nil
}

func (k *TransactionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
