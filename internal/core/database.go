// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"

	"github.com/carterperez-dev/insurance-backend/internal/config"
)

type Database struct {
	DB *sqlx.DB
}

func NewDatabase(
	ctx context.Context,
	cfg config.DatabaseConfig,
) (*Database, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverPostgres
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if driver == config.DriverSQLite {
		// one writer; in-memory databases also live and die with their
		// single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(jitteredDuration(cfg.ConnMaxLifetime))
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close() //nolint:errcheck // cleanup on connection failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx. Queries are written
// with '?' placeholders and passed through Rebind for the active driver.
type DBTX interface {
	sqlx.ExtContext
	sqlx.ExecerContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(
		ctx context.Context,
		dest any,
		query string,
		args ...any,
	) error
}

var (
	_ DBTX = (*sqlx.DB)(nil)
	_ DBTX = (*sqlx.Tx)(nil)
)

// TxManager runs multi-row writes inside a transaction. The number of
// transactions in flight is bounded; callers wait for a slot up to the
// configured timeout and then fail with TimeoutError.
type TxManager struct {
	db    *sqlx.DB
	slots *semaphore.Weighted
	wait  time.Duration
}

func NewTxManager(db *sqlx.DB, maxConcurrent int, wait time.Duration) *TxManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &TxManager{
		db:    db,
		slots: semaphore.NewWeighted(int64(maxConcurrent)),
		wait:  wait,
	}
}

func (m *TxManager) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return m.InTxWithOptions(ctx, nil, fn)
}

func (m *TxManager) InTxWithOptions(
	ctx context.Context,
	opts *sql.TxOptions,
	fn func(tx *sqlx.Tx) error,
) error {
	waitCtx, cancel := context.WithTimeout(ctx, m.wait)
	err := m.slots.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		txWaitTimeouts.Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TimeoutError("acquire transaction", ctxErr)
		}
		return TimeoutError("acquire transaction", err)
	}
	defer m.slots.Release(1)

	err = InTxWithOptions(ctx, m.db, opts, fn)
	if err != nil && !IsAppError(err) && isContextError(err) {
		return TimeoutError("transaction", err)
	}
	return err
}

func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	return InTxWithOptions(ctx, db, nil, fn)
}

func InTxWithOptions(
	ctx context.Context,
	db *sqlx.DB,
	opts *sql.TxOptions,
	fn func(tx *sqlx.Tx) error,
) error {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() //nolint:errcheck // best-effort rollback on panic
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %w (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// IsDuplicateKeyError reports unique-constraint violations from either
// supported driver.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// MapError converts driver-level errors into the package sentinels.
// Context errors pass through untouched.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}

	if isContextError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case "23514":
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func jitteredDuration(base time.Duration) time.Duration {
	if base < 7 {
		return base
	}
	//nolint:gosec // G404: non-security-sensitive jitter for connection pool
	jitter := time.Duration(rand.Int64N(int64(base / 7)))
	return base + jitter
}
