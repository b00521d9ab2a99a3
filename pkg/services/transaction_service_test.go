package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andrenbrandao/ledger/pkg/domain"
	"github.com/andrenbrandao/ledger/pkg/repositories"
)

// stubStore counts calls and returns canned results.
type stubStore struct {
	applyCalls atomic.Int64
	readCalls  atomic.Int64
	applyErr   error
	snapErr    error
	logErr     error
	lastDelta  int64
	lastRecord domain.Transaction
}

func (s *stubStore) ApplyDelta(_ context.Context, _ int, delta int64, t domain.Transaction) (domain.Balance, error) {
	s.applyCalls.Add(1)
	s.lastDelta = delta
	s.lastRecord = t
	if s.applyErr != nil {
		return domain.Balance{}, s.applyErr
	}
	return domain.Balance{Balance: delta, BalanceLimit: 1000}, nil
}

func (s *stubStore) ReadSnapshot(context.Context, int) (domain.Snapshot, error) {
	s.readCalls.Add(1)
	return domain.Snapshot{Balance: 1, BalanceLimit: 2, AsOf: time.Now()}, s.snapErr
}

func (s *stubStore) ReadRecentLog(context.Context, int, int) ([]domain.Transaction, error) {
	s.readCalls.Add(1)
	return nil, s.logErr
}

func newScenarioService(t *testing.T) *TransactionService {
	t.Helper()
	store := repositories.NewMemoryAccountRepository(domain.Account{Id: 1, BalanceLimit: 1000})
	return NewTransactionService(store, zap.NewNop())
}

func TestApplyScenario(t *testing.T) {
	ctx := context.Background()
	s := newScenarioService(t)

	got, err := s.Apply(ctx, 1, domain.TransactionRequest{Value: 500, Type: domain.Debit, Description: "compra"})
	require.NoError(t, err)
	assert.Equal(t, domain.Balance{Balance: -500, BalanceLimit: 1000}, got)

	_, err = s.Apply(ctx, 1, domain.TransactionRequest{Value: 600, Type: domain.Debit, Description: "compra2"})
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)

	got, err = s.Apply(ctx, 1, domain.TransactionRequest{Value: 100, Type: domain.Credit, Description: "deposito"})
	require.NoError(t, err)
	assert.Equal(t, domain.Balance{Balance: -400, BalanceLimit: 1000}, got)

	statement, err := s.Statement(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-400), statement.Balance)
	assert.Equal(t, int64(1000), statement.BalanceLimit)
	require.Len(t, statement.LastTransactions, 2)
	assert.Equal(t, int64(100), statement.LastTransactions[0].Amount)
	assert.Equal(t, domain.Credit, statement.LastTransactions[0].Type)
	assert.Equal(t, "deposito", statement.LastTransactions[0].Description)
	assert.Equal(t, int64(500), statement.LastTransactions[1].Amount)
	assert.Equal(t, domain.Debit, statement.LastTransactions[1].Type)
}

func TestApplyRejectsInvalidRequestsWithoutTouchingStorage(t *testing.T) {
	store := &stubStore{}
	s := NewTransactionService(store, nil)

	requests := []domain.TransactionRequest{
		{Value: 0, Type: domain.Credit, Description: "x"},
		{Value: -1, Type: domain.Debit, Description: "x"},
		{Value: 1, Description: "x"},
		{Value: 1, Type: domain.Credit, Description: ""},
		{Value: 1, Type: domain.Credit, Description: "12345678901"},
	}
	for _, req := range requests {
		_, err := s.Apply(context.Background(), 1, req)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	}
	assert.Zero(t, store.applyCalls.Load())
}

func TestApplySignsDelta(t *testing.T) {
	store := &stubStore{}
	s := NewTransactionService(store, nil)

	_, err := s.Apply(context.Background(), 3, domain.TransactionRequest{Value: 70, Type: domain.Debit, Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, int64(-70), store.lastDelta)
	assert.Equal(t, domain.Transaction{AccountId: 3, Amount: 70, Type: domain.Debit, Description: "d"}, store.lastRecord)

	_, err = s.Apply(context.Background(), 3, domain.TransactionRequest{Value: 70, Type: domain.Credit, Description: "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(70), store.lastDelta)
}

func TestApplyPropagatesTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		want     error
	}{
		{"not found", domain.ErrNotFound, domain.ErrNotFound},
		{"limit", domain.ErrInsufficientFunds, domain.ErrLimitExceeded},
		{"transient", domain.ErrTransient, domain.ErrTransient},
		{"unknown becomes internal", errors.New("disk on fire"), domain.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTransactionService(&stubStore{applyErr: tt.storeErr}, nil)
			_, err := s.Apply(context.Background(), 1, domain.TransactionRequest{Value: 1, Type: domain.Credit, Description: "x"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStatementErrors(t *testing.T) {
	s := NewTransactionService(&stubStore{snapErr: domain.ErrNotFound}, nil)
	_, err := s.Statement(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	s = NewTransactionService(&stubStore{logErr: errors.New("boom")}, nil)
	_, err = s.Statement(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrInternal)
}

func TestStatementEmptyLogIsNotNil(t *testing.T) {
	store := &stubStore{}
	s := NewTransactionService(store, nil)

	statement, err := s.Statement(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, statement.LastTransactions)
	assert.Empty(t, statement.LastTransactions)
	assert.Zero(t, store.applyCalls.Load())
}

func TestConcurrentDebitsKeepInvariant(t *testing.T) {
	ctx := context.Background()
	s := newScenarioService(t)

	var succeeded atomic.Int64
	var g errgroup.Group
	for range 50 {
		g.Go(func() error {
			_, err := s.Apply(ctx, 1, domain.TransactionRequest{Value: 30, Type: domain.Debit, Description: "race"})
			if err == nil {
				succeeded.Add(1)
				return nil
			}
			if errors.Is(err, domain.ErrLimitExceeded) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	statement, err := s.Statement(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(33), succeeded.Load())
	assert.Equal(t, -30*succeeded.Load(), statement.Balance)
	assert.GreaterOrEqual(t, statement.Balance, -statement.BalanceLimit)
}
