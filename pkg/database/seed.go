package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

// DefaultAccounts are provisioned by Seed.
var DefaultAccounts = []domain.Account{
	{Id: 1, Name: "o barato sai caro", BalanceLimit: 100000},
	{Id: 2, Name: "zan corp ltda", BalanceLimit: 80000},
	{Id: 3, Name: "les cruders", BalanceLimit: 1000000},
	{Id: 4, Name: "padaria joia de cocaia", BalanceLimit: 10000000},
	{Id: 5, Name: "kid mais", BalanceLimit: 500000},
}

// Seed inserts accounts that do not exist yet and moves the id sequence past them.
func Seed(ctx context.Context, pool *pgxpool.Pool, accounts []domain.Account) error {
	batch := &pgx.Batch{}
	for _, a := range accounts {
		batch.Queue(
			"INSERT INTO accounts (id, name, balance, balance_limit) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING;",
			a.Id, a.Name, a.Balance, a.BalanceLimit,
		)
	}
	batch.Queue("SELECT setval(pg_get_serial_sequence('accounts', 'id'), GREATEST((SELECT MAX(id) FROM accounts), 1));")

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("unable to seed database: %w", err)
	}
	return nil
}
