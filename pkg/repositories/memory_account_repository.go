package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

// MemoryAccountRepository keeps the ledger in process memory. Each account has
// its own mutex, so writes to different accounts do not contend.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[int]*memoryAccount
	seq      int64
	seqMu    sync.Mutex
	now      func() time.Time
}

type memoryAccount struct {
	mu           sync.Mutex
	balance      int64
	balanceLimit int64
	log          []domain.Transaction
}

func NewMemoryAccountRepository(accounts ...domain.Account) *MemoryAccountRepository {
	r := &MemoryAccountRepository{
		accounts: make(map[int]*memoryAccount, len(accounts)),
		now:      time.Now,
	}
	for _, a := range accounts {
		r.accounts[a.Id] = &memoryAccount{balance: a.Balance, balanceLimit: a.BalanceLimit}
	}
	return r
}

// AddAccount provisions an account. Existing accounts are left untouched.
func (r *MemoryAccountRepository) AddAccount(a domain.Account) error {
	if a.BalanceLimit < 0 || a.Balance < -a.BalanceLimit {
		return fmt.Errorf("%w: account %d violates its credit limit", domain.ErrInvalidRequest, a.Id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.Id]; !ok {
		r.accounts[a.Id] = &memoryAccount{balance: a.Balance, balanceLimit: a.BalanceLimit}
	}
	return nil
}

func (r *MemoryAccountRepository) lookup(accountId int) (*memoryAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountId]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (r *MemoryAccountRepository) nextSeq() int64 {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	r.seq++
	return r.seq
}

func (r *MemoryAccountRepository) ApplyDelta(ctx context.Context, accountId int, delta int64, t domain.Transaction) (domain.Balance, error) {
	account, err := r.lookup(accountId)
	if err != nil {
		return domain.Balance{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Balance{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	account.mu.Lock()
	defer account.mu.Unlock()

	newBalance, err := domain.ApplyDelta(account.balance, account.balanceLimit, delta)
	if err != nil {
		return domain.Balance{}, err
	}

	t.Id = r.nextSeq()
	t.AccountId = accountId
	t.CreatedAt = r.now().UTC()
	if n := len(account.log); n > 0 && t.CreatedAt.Before(account.log[n-1].CreatedAt) {
		t.CreatedAt = account.log[n-1].CreatedAt
	}

	account.balance = newBalance
	account.log = append(account.log, t)

	return domain.Balance{Balance: newBalance, BalanceLimit: account.balanceLimit}, nil
}

func (r *MemoryAccountRepository) ReadSnapshot(_ context.Context, accountId int) (domain.Snapshot, error) {
	account, err := r.lookup(accountId)
	if err != nil {
		return domain.Snapshot{}, err
	}

	account.mu.Lock()
	defer account.mu.Unlock()
	return domain.Snapshot{
		Balance:      account.balance,
		BalanceLimit: account.balanceLimit,
		AsOf:         r.now().UTC(),
	}, nil
}

// ReadRecentLog returns a copy of the newest entries. The log is appended in
// commit order, so walking it backwards yields most recent first.
func (r *MemoryAccountRepository) ReadRecentLog(_ context.Context, accountId int, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = domain.StatementSize
	}
	account, err := r.lookup(accountId)
	if err != nil {
		return nil, err
	}

	account.mu.Lock()
	defer account.mu.Unlock()

	n := min(limit, len(account.log))
	out := make([]domain.Transaction, 0, n)
	for i := len(account.log) - 1; i >= len(account.log)-n; i-- {
		out = append(out, account.log[i])
	}
	return out, nil
}

func (r *MemoryAccountRepository) Ping(context.Context) error {
	return nil
}
