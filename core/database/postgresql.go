package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"consult-booking/core/config"
	"consult-booking/core/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// IDatabase is satisfied by both the pooled handle and an open transaction, so
// repositories can be bound to either.
type IDatabase interface {
	ExecContext(ctx context.Context, query string, args ...any) (int64, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error)
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	Rebind(query string) string
}

// Transactor runs fn inside a single transaction. A nil error from fn commits,
// anything else rolls back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx IDatabase) error) error
}

type Database struct {
	sqlx *sqlx.DB
}

type Tx struct {
	tx *sqlx.Tx
}

func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

func InitDB(cfg config.DatabaseConfig) (*Database, error) {
	logger.Info("Database:Init:Start")

	sqlxDB, err := sqlx.Connect("postgres", DSN(cfg))
	if err != nil {
		logger.Error("Database:Init:Connect:Error", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlxDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlxDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err = sqlxDB.Ping(); err != nil {
		logger.Error("Database:Init:Ping:Error", "error", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database:Init:Success",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
		"maxOpenConns", cfg.MaxOpenConns,
		"maxIdleConns", cfg.MaxIdleConns,
	)

	return &Database{sqlx: sqlxDB}, nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Database {
	return &Database{sqlx: db}
}

func (d *Database) Close() error {
	return d.sqlx.Close()
}

func (d *Database) WithTx(ctx context.Context, fn func(tx IDatabase) error) (err error) {
	sqlxTx, err := d.sqlx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlxTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&Tx{tx: sqlxTx}); err != nil {
		if rbErr := sqlxTx.Rollback(); rbErr != nil {
			logger.Error("Database:WithTx:Rollback:Error", "error", rbErr)
		}
		return err
	}

	if err = sqlxTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (d *Database) ExecContext(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.sqlx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *Database) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return d.sqlx.GetContext(ctx, dest, query, args...)
}

func (d *Database) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return d.sqlx.SelectContext(ctx, dest, query, args...)
}

func (d *Database) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sqlx.QueryRowContext(ctx, query, args...)
}

func (d *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sqlx.QueryContext(ctx, query, args...)
}

func (d *Database) NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error) {
	return d.sqlx.NamedQueryContext(ctx, query, arg)
}

func (d *Database) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return d.sqlx.NamedExecContext(ctx, query, arg)
}

func (d *Database) Rebind(query string) string {
	return d.sqlx.Rebind(query)
}

// WithTx on an open transaction joins it.
func (t *Tx) WithTx(_ context.Context, fn func(tx IDatabase) error) error {
	return fn(t)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *Tx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return t.tx.GetContext(ctx, dest, query, args...)
}

func (t *Tx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return t.tx.SelectContext(ctx, dest, query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error) {
	return sqlx.NamedQueryContext(ctx, t.tx, query, arg)
}

func (t *Tx) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return t.tx.NamedExecContext(ctx, query, arg)
}

func (t *Tx) Rebind(query string) string {
	return t.tx.Rebind(query)
}
