package repositories

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

type accountStore interface {
	ApplyDelta(ctx context.Context, accountId int, delta int64, t domain.Transaction) (domain.Balance, error)
	ReadSnapshot(ctx context.Context, accountId int) (domain.Snapshot, error)
	ReadRecentLog(ctx context.Context, accountId int, limit int) ([]domain.Transaction, error)
}

// storeFactory returns a store holding exactly the given accounts.
type storeFactory func(t *testing.T, accounts ...domain.Account) accountStore

func record(kind domain.TransactionKind, amount int64, description string) domain.Transaction {
	return domain.Transaction{Amount: amount, Type: kind, Description: description}
}

func debit(ctx context.Context, s accountStore, id int, amount int64, description string) (domain.Balance, error) {
	return s.ApplyDelta(ctx, id, -amount, record(domain.Debit, amount, description))
}

func credit(ctx context.Context, s accountStore, id int, amount int64, description string) (domain.Balance, error) {
	return s.ApplyDelta(ctx, id, amount, record(domain.Credit, amount, description))
}

func runAccountStoreSuite(t *testing.T, newStore storeFactory) {
	t.Run("unknown account", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, domain.Account{Id: 1, Name: "a", BalanceLimit: 1000})

		_, err := credit(ctx, s, 99, 10, "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = s.ReadSnapshot(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("limit boundary", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, domain.Account{Id: 1, Name: "a", BalanceLimit: 1000})

		got, err := debit(ctx, s, 1, 1000, "all")
		require.NoError(t, err)
		assert.Equal(t, domain.Balance{Balance: -1000, BalanceLimit: 1000}, got)

		_, err = debit(ctx, s, 1, 1, "one more")
		assert.ErrorIs(t, err, domain.ErrLimitExceeded)

		snap, err := s.ReadSnapshot(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(-1000), snap.Balance)
		assert.Equal(t, int64(1000), snap.BalanceLimit)
		assert.False(t, snap.AsOf.IsZero())

		log, err := s.ReadRecentLog(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, log, 1)
		assert.Equal(t, "all", log[0].Description)
	})

	t.Run("recent log is newest first and bounded", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, domain.Account{Id: 1, Name: "a", BalanceLimit: 0})

		for i := range 12 {
			_, err := credit(ctx, s, 1, int64(i+1), fmt.Sprintf("t%d", i))
			require.NoError(t, err)
		}

		log, err := s.ReadRecentLog(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, log, 10)
		for i, entry := range log {
			assert.Equal(t, fmt.Sprintf("t%d", 11-i), entry.Description)
			assert.Equal(t, int64(12-i), entry.Amount)
			assert.Equal(t, domain.Credit, entry.Type)
			assert.Equal(t, 1, entry.AccountId)
			if i > 0 {
				assert.False(t, entry.CreatedAt.After(log[i-1].CreatedAt))
			}
		}

		empty := newStore(t, domain.Account{Id: 2, Name: "b", BalanceLimit: 0})
		log, err = empty.ReadRecentLog(ctx, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, log)
	})

	t.Run("concurrent debits never pass the limit", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, domain.Account{Id: 1, Name: "a", BalanceLimit: 1000})

		var succeeded, rejected atomic.Int64
		var g errgroup.Group
		for range 25 {
			g.Go(func() error {
				_, err := debit(ctx, s, 1, 100, "concurrent")
				switch {
				case err == nil:
					succeeded.Add(1)
				case assert.ErrorIs(t, err, domain.ErrLimitExceeded):
					rejected.Add(1)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int64(10), succeeded.Load())
		assert.Equal(t, int64(15), rejected.Load())

		snap, err := s.ReadSnapshot(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(-1000), snap.Balance)
	})

	t.Run("balance equals sum of applied deltas", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t,
			domain.Account{Id: 1, Name: "a", Balance: 50, BalanceLimit: 500},
			domain.Account{Id: 2, Name: "b", BalanceLimit: 100},
		)

		var applied [3]atomic.Int64
		var g errgroup.Group
		for i := range 40 {
			id := 1 + i%2
			amount := int64(10 + i)
			kind := domain.Debit
			if i%3 == 0 {
				kind = domain.Credit
			}
			g.Go(func() error {
				delta := kind.Sign() * amount
				_, err := s.ApplyDelta(ctx, id, delta, record(kind, amount, "mix"))
				if err == nil {
					applied[id].Add(delta)
					return nil
				}
				assert.ErrorIs(t, err, domain.ErrLimitExceeded)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		first, err := s.ReadSnapshot(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 50+applied[1].Load(), first.Balance)
		assert.GreaterOrEqual(t, first.Balance, -first.BalanceLimit)

		second, err := s.ReadSnapshot(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, applied[2].Load(), second.Balance)
		assert.GreaterOrEqual(t, second.Balance, -second.BalanceLimit)
	})

	t.Run("reads do not mutate", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, domain.Account{Id: 1, Name: "a", BalanceLimit: 1000})
		_, err := debit(ctx, s, 1, 300, "once")
		require.NoError(t, err)

		for range 3 {
			snap, err := s.ReadSnapshot(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(-300), snap.Balance)
			log, err := s.ReadRecentLog(ctx, 1, 10)
			require.NoError(t, err)
			assert.Len(t, log, 1)
		}
	})
}
