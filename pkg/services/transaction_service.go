package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

// AccountStore is the storage contract the ledger core depends on.
//
// ApplyDelta must run as one atomic unit: lock the account, check the credit
// limit, update the balance and append t, all or nothing. Calls for the same
// account must not interleave.
type AccountStore interface {
	ApplyDelta(ctx context.Context, accountId int, delta int64, t domain.Transaction) (domain.Balance, error)
	ReadSnapshot(ctx context.Context, accountId int) (domain.Snapshot, error)
	ReadRecentLog(ctx context.Context, accountId int, limit int) ([]domain.Transaction, error)
}

type TransactionService struct {
	store  AccountStore
	logger *zap.Logger
}

func NewTransactionService(store AccountStore, logger *zap.Logger) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{store: store, logger: logger}
}

// Apply validates req and applies it to the account. Invalid requests never
// reach the store.
func (s *TransactionService) Apply(ctx context.Context, accountId int, req domain.TransactionRequest) (domain.Balance, error) {
	if err := req.Validate(); err != nil {
		return domain.Balance{}, err
	}

	t := domain.Transaction{
		AccountId:   accountId,
		Amount:      req.Value,
		Type:        req.Type,
		Description: req.Description,
	}

	balance, err := s.store.ApplyDelta(ctx, accountId, req.Delta(), t)
	if err != nil {
		err = domain.Classify(err)
		s.logFailure("transaction rejected", accountId, err)
		return domain.Balance{}, err
	}

	s.logger.Debug("transaction applied",
		zap.Int("account_id", accountId),
		zap.Stringer("kind", req.Type),
		zap.Int64("value", req.Value),
		zap.Int64("balance", balance.Balance),
	)
	return balance, nil
}

// Statement reads the balance and then the recent log. A transaction may
// commit between the two reads.
func (s *TransactionService) Statement(ctx context.Context, accountId int) (domain.Statement, error) {
	snap, err := s.store.ReadSnapshot(ctx, accountId)
	if err != nil {
		err = domain.Classify(err)
		s.logFailure("statement failed", accountId, err)
		return domain.Statement{}, err
	}

	transactions, err := s.store.ReadRecentLog(ctx, accountId, domain.StatementSize)
	if err != nil {
		err = domain.Classify(err)
		s.logFailure("statement failed", accountId, err)
		return domain.Statement{}, err
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	return domain.Statement{
		Balance:          snap.Balance,
		BalanceLimit:     snap.BalanceLimit,
		AsOf:             snap.AsOf,
		LastTransactions: transactions,
	}, nil
}

func (s *TransactionService) logFailure(msg string, accountId int, err error) {
	fields := []zap.Field{zap.Int("account_id", accountId), zap.Error(err)}
	switch {
	case errors.Is(err, domain.ErrTransient), errors.Is(err, domain.ErrInternal):
		s.logger.Error(msg, fields...)
	default:
		s.logger.Debug(msg, fields...)
	}
}
