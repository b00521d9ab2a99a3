package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

const DefaultAcquireTimeout = 3 * time.Second

// AccountRepository stores accounts and their transaction log in PostgreSQL.
// Same-account writes are serialized by the row lock taken in GetAccount.
type AccountRepository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

func NewAccountRepository(pool *pgxpool.Pool, acquireTimeout time.Duration) *AccountRepository {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &AccountRepository{pool: pool, acquireTimeout: acquireTimeout}
}

// GetAccount reads the account row and locks it until tx ends.
func GetAccount(ctx context.Context, tx pgx.Tx, accountId int) (domain.Account, error) {
	currAccount := domain.Account{Id: accountId}
	row := tx.QueryRow(ctx, "SELECT balance, balance_limit FROM accounts WHERE id = $1 FOR UPDATE;", accountId)
	err := row.Scan(&currAccount.Balance, &currAccount.BalanceLimit)

	if errors.Is(err, pgx.ErrNoRows) {
		return currAccount, domain.ErrNotFound
	}
	if err != nil {
		return currAccount, err
	}

	return currAccount, nil
}

// acquire takes a pooled connection, failing with ErrTransient once the
// acquire timeout elapses instead of queueing forever.
func (r *AccountRepository) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	conn, err := r.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", domain.ErrTransient, err)
	}
	return conn, nil
}

func (r *AccountRepository) ApplyDelta(ctx context.Context, accountId int, delta int64, t domain.Transaction) (domain.Balance, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.Balance{}, classifyPgError(err)
	}
	// No-op after a successful commit.
	defer tx.Rollback(context.WithoutCancel(ctx))

	account, err := GetAccount(ctx, tx, accountId)
	if err != nil {
		return domain.Balance{}, classifyPgError(err)
	}

	newBalance, err := domain.ApplyDelta(account.Balance, account.BalanceLimit, delta)
	if err != nil {
		return domain.Balance{}, err
	}

	if _, err := tx.Exec(ctx, "UPDATE accounts SET balance = $1 WHERE id = $2;", newBalance, accountId); err != nil {
		return domain.Balance{}, classifyPgError(err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO transactions (account_id, amount, type, description, created_at) VALUES ($1, $2, $3, $4, clock_timestamp());",
		accountId, t.Amount, t.Type.String(), t.Description,
	)
	if err != nil {
		return domain.Balance{}, classifyPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Balance{}, classifyPgError(err)
	}

	return domain.Balance{Balance: newBalance, BalanceLimit: account.BalanceLimit}, nil
}

func (r *AccountRepository) ReadSnapshot(ctx context.Context, accountId int) (domain.Snapshot, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer conn.Release()

	var snap domain.Snapshot
	row := conn.QueryRow(ctx, "SELECT balance, balance_limit, now() FROM accounts WHERE id = $1;", accountId)
	err = row.Scan(&snap.Balance, &snap.BalanceLimit, &snap.AsOf)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, classifyPgError(err)
	}
	return snap, nil
}

func (r *AccountRepository) ReadRecentLog(ctx context.Context, accountId int, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = domain.StatementSize
	}

	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, account_id, amount, type, description, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2;`, accountId, limit)
	if err != nil {
		return nil, classifyPgError(err)
	}

	transactions, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, classifyPgError(err)
	}
	return transactions, nil
}

func scanTransaction(row pgx.CollectableRow) (domain.Transaction, error) {
	var (
		t    domain.Transaction
		kind string
	)
	if err := row.Scan(&t.Id, &t.AccountId, &t.Amount, &kind, &t.Description, &t.CreatedAt); err != nil {
		return t, err
	}
	parsed, err := domain.ParseTransactionKind(kind)
	if err != nil {
		return t, fmt.Errorf("%w: stored transaction %d: %w", domain.ErrInternal, t.Id, err)
	}
	t.Type = parsed
	return t, nil
}

// Ping checks that a connection can be acquired and used.
func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
