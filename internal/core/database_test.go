// AngelaMos | 2026
// database_test.go

package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/testhelper"
)

const insertUser = `
	INSERT INTO users (id, email, password_hash, name, role, token_version, created_at, updated_at)
	VALUES (?, ?, 'x', 'n', ?, 0, ?, ?)`

func addUser(ctx context.Context, db core.DBTX, id, email, role string) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, db.Rebind(insertUser), id, email, role, now, now)
	return core.MapError(err, "insert user")
}

func TestInTx(t *testing.T) {
	db := testhelper.NewDB(t)
	txm := testhelper.NewTxManager(db)
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		err := txm.InTx(ctx, func(tx *sqlx.Tx) error {
			return addUser(ctx, tx, uuid.NewString(), "a@example.test", "user")
		})
		require.NoError(t, err)
		assert.Equal(t, 1, testhelper.Count(t, db, "users", "email = ?", "a@example.test"))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		failure := errors.New("second step failed")
		err := txm.InTx(ctx, func(tx *sqlx.Tx) error {
			if err := addUser(ctx, tx, uuid.NewString(), "b@example.test", "user"); err != nil {
				return err
			}
			return failure
		})
		assert.ErrorIs(t, err, failure)
		assert.Zero(t, testhelper.Count(t, db, "users", "email = ?", "b@example.test"))
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		assert.PanicsWithValue(t, "boom", func() {
			_ = txm.InTx(ctx, func(tx *sqlx.Tx) error {
				if err := addUser(ctx, tx, uuid.NewString(), "c@example.test", "user"); err != nil {
					return err
				}
				panic("boom")
			})
		})
		assert.Zero(t, testhelper.Count(t, db, "users", "email = ?", "c@example.test"))

		require.NoError(t, txm.InTx(ctx, func(*sqlx.Tx) error { return nil }))
	})
}

func TestTxManagerSaturation(t *testing.T) {
	db := testhelper.NewDB(t)
	txm := core.NewTxManager(db.DB, 1, 50*time.Millisecond)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- txm.InTx(ctx, func(*sqlx.Tx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := txm.InTx(ctx, func(*sqlx.Tx) error { return nil })
	assert.Equal(t, core.KindTimeout, core.KindOf(err))

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, txm.InTx(ctx, func(*sqlx.Tx) error { return nil }))
}

func TestMapError(t *testing.T) {
	db := testhelper.NewDB(t)
	ctx := context.Background()

	require.NoError(t, addUser(ctx, db.DB, "u-1", "dup@example.test", "user"))

	err := addUser(ctx, db.DB, uuid.NewString(), "dup@example.test", "user")
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	err = addUser(ctx, db.DB, uuid.NewString(), "root@example.test", "root")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = db.DB.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, expires_at, created_at)
		VALUES ('t-1', 'ghost', 'h', 'f', ?, ?)`, time.Now().UTC(), time.Now().UTC())
	assert.ErrorIs(t, core.MapError(err, "insert token"), core.ErrNotFound)

	var id string
	err = db.DB.GetContext(ctx, &id, `SELECT id FROM users WHERE id = 'missing'`)
	assert.ErrorIs(t, core.MapError(err, "get user"), core.ErrNotFound)
}

func TestPolicyCheckConstraints(t *testing.T) {
	db := testhelper.NewDB(t)
	ctx := context.Background()
	require.NoError(t, addUser(ctx, db.DB, "u-1", "owner@example.test", "user"))

	insert := func(number string, start, end time.Time, premium string) error {
		now := time.Now().UTC()
		_, err := db.DB.ExecContext(ctx, `
			INSERT INTO policies (id, user_id, policy_number, type, start_date, end_date,
				premium, coverage_amount, status, created_at, updated_at)
			VALUES (?, 'u-1', ?, 'auto', ?, ?, ?, '5000', 'active', ?, ?)`,
			uuid.NewString(), number, start, end, premium, now, now)
		return core.MapError(err, "insert policy")
	}

	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)

	require.NoError(t, insert("POL-1", jan, dec, "100"))
	assert.ErrorIs(t, insert("POL-2", dec, jan, "100"), core.ErrInvalidInput)
	assert.ErrorIs(t, insert("POL-3", jan, jan, "100"), core.ErrInvalidInput)
	assert.ErrorIs(t, insert("POL-4", jan, dec, "0"), core.ErrInvalidInput)
	assert.Equal(t, 1, testhelper.Count(t, db, "policies", ""))
}

func TestRunCascade(t *testing.T) {
	db := testhelper.NewDB(t)
	txm := testhelper.NewTxManager(db)
	ctx := context.Background()

	require.NoError(t, addUser(ctx, db.DB, "u-1", "one@example.test", "user"))
	require.NoError(t, addUser(ctx, db.DB, "u-2", "two@example.test", "user"))
	for _, owner := range []string{"u-1", "u-1", "u-2"} {
		_, err := db.DB.ExecContext(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, expires_at, created_at)
			VALUES (?, ?, ?, 'f', ?, ?)`,
			uuid.NewString(), owner, uuid.NewString(),
			time.Now().UTC(), time.Now().UTC())
		require.NoError(t, err)
	}

	steps := []core.CascadeStep{
		{Table: "refresh_tokens", Query: `DELETE FROM refresh_tokens WHERE user_id = ?`},
		{Table: "users", Query: `DELETE FROM users WHERE id = ? AND id = ?`, Args: 2},
	}

	var counts core.DeletionCounts
	err := txm.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		counts, err = core.RunCascade(ctx, tx, steps, "u-1")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, core.DeletionCounts{"refresh_tokens": 2, "users": 1}, counts)
	assert.Equal(t, 1, testhelper.Count(t, db, "refresh_tokens", ""))
	assert.Equal(t, 1, testhelper.Count(t, db, "users", ""))
}
