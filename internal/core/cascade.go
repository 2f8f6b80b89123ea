// AngelaMos | 2026
// cascade.go

package core

import (
	"context"
	"fmt"
)

// CascadeStep deletes the rows of one table that hang off a root entity.
// Query takes exactly the root id as its bound arguments, once per '?'.
type CascadeStep struct {
	Table string
	Query string
	Args  int
}

// DeletionCounts maps table name to the number of rows removed.
type DeletionCounts map[string]int64

// RunCascade executes steps in order against db (normally a *sqlx.Tx)
// and stops at the first failure. It never commits; the caller owns the
// transaction.
func RunCascade(
	ctx context.Context,
	db DBTX,
	steps []CascadeStep,
	rootID string,
) (DeletionCounts, error) {
	counts := make(DeletionCounts, len(steps))

	for _, step := range steps {
		n := step.Args
		if n < 1 {
			n = 1
		}
		args := make([]any, n)
		for i := range args {
			args[i] = rootID
		}

		result, err := db.ExecContext(ctx, db.Rebind(step.Query), args...)
		if err != nil {
			return nil, fmt.Errorf("delete from %s: %w", step.Table, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("delete from %s: %w", step.Table, err)
		}
		counts[step.Table] = rows
	}

	return counts, nil
}
