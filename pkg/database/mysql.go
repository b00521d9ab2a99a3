package database

import (
	"context"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type MySQLConfig struct {
	DSN             string
	MaxConns        int
	ConnectAttempts int
}

// OpenMySQL opens a gorm handle with a bounded connection pool.
func OpenMySQL(ctx context.Context, cfg MySQLConfig, log *zap.Logger) (*gorm.DB, error) {
	dsn, err := mysqlDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		// ApplyDelta opens its own transaction.
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Error),
	}

	var db *gorm.DB
	err = retry(ctx, cfg.ConnectAttempts, log, func() error {
		var err error
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", cfg.ConnectAttempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("connected to mysql", zap.Int("max_conns", cfg.MaxConns))
	return db, nil
}

// CloseMySQL releases the pool behind db.
func CloseMySQL(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mysqlDSN turns on parseTime so datetime columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
