package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andrenbrandao/ledger/pkg/domain"
)

// classifyPgError maps pgx failures onto the domain error taxonomy.
func classifyPgError(err error) error {
	if err == nil || domain.IsClassified(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure,
			pgerrcode.DeadlockDetected,
			pgerrcode.LockNotAvailable,
			pgerrcode.QueryCanceled,
			pgerrcode.TooManyConnections,
			pgerrcode.AdminShutdown,
			pgerrcode.CannotConnectNow:
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		case pgerrcode.CheckViolation:
			// balance_within_limit constraint
			return fmt.Errorf("%w: %w", domain.ErrLimitExceeded, err)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}

// MySQL server error numbers treated as contention.
const (
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlTooManyConns     = 1040
	mysqlCheckConstraint  = 3819
	mysqlForeignKeyParent = 1452
)

func classifyMySQLError(err error) error {
	if err == nil || domain.IsClassified(err) {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock, mysqlTooManyConns:
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		case mysqlCheckConstraint:
			return fmt.Errorf("%w: %w", domain.ErrLimitExceeded, err)
		case mysqlForeignKeyParent:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}
