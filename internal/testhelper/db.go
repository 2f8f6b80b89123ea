// AngelaMos | 2026
// db.go

package testhelper

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// NewDB opens a private in-memory SQLite database with the full schema
// applied. It is closed when the test ends.
func NewDB(t testing.TB) *core.Database {
	t.Helper()

	ctx := context.Background()
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000",
		uuid.NewString(),
	)

	db, err := core.NewDatabase(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    dsn,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close() //nolint:errcheck // test teardown
	})

	require.NoError(t, core.Migrate(ctx, db.DB))

	return db
}

func NewTxManager(db *core.Database) *core.TxManager {
	return core.NewTxManager(db.DB, 1, 2*time.Second)
}

func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Clock returns a fixed time source.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Date builds a UTC midnight for y-m-d.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateUser inserts a user row directly and returns its id.
func CreateUser(t testing.TB, db *core.Database, role string) string {
	t.Helper()

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := db.DB.ExecContext(context.Background(), `
		INSERT INTO users (id, email, password_hash, name, role, token_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		id,
		id+"@example.test",
		"not-a-real-hash",
		"Test "+role,
		role,
		now,
		now,
	)
	require.NoError(t, err)

	return id
}

// Count returns the number of rows in table matching the optional where
// clause.
func Count(t testing.TB, db *core.Database, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	require.NoError(t, db.DB.GetContext(context.Background(), &n, query, args...))
	return n
}
