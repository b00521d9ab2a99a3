package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

// sqlAccount maps the accounts table.
type sqlAccount struct {
	ID           int    `gorm:"primaryKey;autoIncrement:false"`
	Name         string `gorm:"size:50;not null"`
	Balance      int64  `gorm:"not null;default:0;check:balance_within_limit,balance >= -balance_limit"`
	BalanceLimit int64  `gorm:"not null"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction maps the transactions table.
type sqlTransaction struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	AccountID   int        `gorm:"not null;index:idx_transactions_account_recent,priority:1"`
	Account     sqlAccount `gorm:"foreignKey:AccountID"`
	Amount      int64      `gorm:"not null"`
	Type        string     `gorm:"type:char(1);not null"`
	Description string     `gorm:"size:10;not null"`
	CreatedAt   time.Time  `gorm:"type:datetime(6);not null;index:idx_transactions_account_recent,priority:2,sort:desc"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// MySQLAccountRepository is the gorm backed store. Writes lock the account row
// with SELECT ... FOR UPDATE inside a transaction. Timestamps come from the
// database clock, never from the process running the query.
type MySQLAccountRepository struct {
	db             *gorm.DB
	acquireTimeout time.Duration
}

func NewMySQLAccountRepository(db *gorm.DB, acquireTimeout time.Duration) *MySQLAccountRepository {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &MySQLAccountRepository{db: db, acquireTimeout: acquireTimeout}
}

// session pins one pooled connection for the unit of work. Waiting for the
// connection is bounded by acquireTimeout; the work itself runs under ctx.
func (r *MySQLAccountRepository) session(ctx context.Context) (*gorm.DB, func(), error) {
	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, nil, classifyMySQLError(err)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	conn, err := sqlDB.Conn(acquireCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: acquire connection: %w", domain.ErrTransient, err)
	}

	db := r.db.Session(&gorm.Session{Context: ctx})
	db.Statement.ConnPool = conn
	return db, func() { _ = conn.Close() }, nil
}

// AutoMigrate creates the tables when they do not exist yet.
func (r *MySQLAccountRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

// Seed inserts accounts, ignoring ids that already exist.
func (r *MySQLAccountRepository) Seed(ctx context.Context, accounts []domain.Account) error {
	rows := make([]sqlAccount, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, sqlAccount{ID: a.Id, Name: a.Name, Balance: a.Balance, BalanceLimit: a.BalanceLimit})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return classifyMySQLError(err)
}

func (r *MySQLAccountRepository) ApplyDelta(ctx context.Context, accountId int, delta int64, t domain.Transaction) (domain.Balance, error) {
	db, release, err := r.session(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	defer release()

	var result domain.Balance
	err = db.Transaction(func(tx *gorm.DB) error {
		var account sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", accountId).
			Take(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		newBalance, err := domain.ApplyDelta(account.Balance, account.BalanceLimit, delta)
		if err != nil {
			return err
		}

		if err := tx.Model(&account).Update("balance", newBalance).Error; err != nil {
			return err
		}

		createdAt, err := nextCreatedAt(tx, accountId)
		if err != nil {
			return err
		}

		record := sqlTransaction{
			AccountID:   accountId,
			Amount:      t.Amount,
			Type:        t.Type.String(),
			Description: t.Description,
			CreatedAt:   createdAt,
		}
		if err := tx.Omit("Account").Create(&record).Error; err != nil {
			return err
		}

		result = domain.Balance{Balance: newBalance, BalanceLimit: account.BalanceLimit}
		return nil
	})
	if err != nil {
		return domain.Balance{}, classifyMySQLError(err)
	}
	return result, nil
}

// logClock is the database clock next to the newest entry of an account log.
type logClock struct {
	Now    time.Time
	Latest sql.NullTime
}

// nextCreatedAt must run while the account row is locked. The result never
// precedes the newest entry already logged for the account.
func nextCreatedAt(tx *gorm.DB, accountId int) (time.Time, error) {
	var clock logClock
	err := tx.Raw(
		"SELECT UTC_TIMESTAMP(6) AS now, MAX(created_at) AS latest FROM transactions WHERE account_id = ?",
		accountId,
	).Scan(&clock).Error
	if err != nil {
		return time.Time{}, err
	}
	if clock.Latest.Valid && clock.Latest.Time.After(clock.Now) {
		return clock.Latest.Time, nil
	}
	return clock.Now, nil
}

type snapshotRow struct {
	Balance      int64
	BalanceLimit int64
	AsOf         time.Time
}

func (r *MySQLAccountRepository) ReadSnapshot(ctx context.Context, accountId int) (domain.Snapshot, error) {
	db, release, err := r.session(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer release()

	var row snapshotRow
	result := db.Raw(
		"SELECT balance, balance_limit, UTC_TIMESTAMP(6) AS as_of FROM accounts WHERE id = ?",
		accountId,
	).Scan(&row)
	if result.Error != nil {
		return domain.Snapshot{}, classifyMySQLError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return domain.Snapshot{
		Balance:      row.Balance,
		BalanceLimit: row.BalanceLimit,
		AsOf:         row.AsOf,
	}, nil
}

func (r *MySQLAccountRepository) ReadRecentLog(ctx context.Context, accountId int, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = domain.StatementSize
	}

	db, release, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var rows []sqlTransaction
	err = db.
		Where("account_id = ?", accountId).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, classifyMySQLError(err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		kind, err := domain.ParseTransactionKind(row.Type)
		if err != nil {
			return nil, domain.Classify(err)
		}
		out = append(out, domain.Transaction{
			Id:          row.ID,
			AccountId:   row.AccountID,
			Amount:      row.Amount,
			Type:        kind,
			Description: row.Description,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

func (r *MySQLAccountRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
