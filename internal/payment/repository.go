// AngelaMos | 2026
// repository.go

package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Insert(ctx context.Context, p *Payment) (bool, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	GetOwned(ctx context.Context, userID, id string) (*Payment, error)
	ListByUser(ctx context.Context, userID string) ([]Payment, error)
	ListByPolicy(ctx context.Context, policyID string) ([]Payment, error)
	UpdateStatus(ctx context.Context, id string, status Status, now time.Time) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx core.DBTX) Repository {
	return &repository{db: tx}
}

const paymentColumns = `p.id, p.policy_id, p.amount, p.payment_date, p.payment_method,
	p.transaction_id, p.status, p.created_at, p.updated_at`

// Insert stores p unless its transaction id already exists, reporting
// false in that case.
func (r *repository) Insert(ctx context.Context, p *Payment) (bool, error) {
	query := `
		INSERT INTO payments (
			id, policy_id, amount, payment_date, payment_method,
			transaction_id, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		p.ID,
		p.PolicyID,
		p.Amount,
		p.PaymentDate,
		p.PaymentMethod,
		p.TransactionID,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return false, core.MapError(err, "insert payment")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) GetByTransactionID(
	ctx context.Context,
	transactionID string,
) (*Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p
		WHERE p.transaction_id = ?`

	var p Payment
	if err := r.db.GetContext(ctx, &p, r.db.Rebind(query), transactionID); err != nil {
		return nil, core.MapError(err, "get payment by transaction id")
	}

	return &p, nil
}

func (r *repository) GetOwned(
	ctx context.Context,
	userID, id string,
) (*Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p
		JOIN policies pol ON pol.id = p.policy_id
		WHERE p.id = ? AND pol.user_id = ?`

	var p Payment
	if err := r.db.GetContext(ctx, &p, r.db.Rebind(query), id, userID); err != nil {
		return nil, core.MapError(err, "get payment")
	}

	return &p, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p
		JOIN policies pol ON pol.id = p.policy_id
		WHERE pol.user_id = ?
		ORDER BY p.payment_date DESC, p.created_at DESC`

	var payments []Payment
	if err := r.db.SelectContext(ctx, &payments, r.db.Rebind(query), userID); err != nil {
		return nil, core.MapError(err, "list payments")
	}

	return payments, nil
}

func (r *repository) ListByPolicy(
	ctx context.Context,
	policyID string,
) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p
		WHERE p.policy_id = ?
		ORDER BY p.payment_date DESC`

	var payments []Payment
	if err := r.db.SelectContext(ctx, &payments, r.db.Rebind(query), policyID); err != nil {
		return nil, core.MapError(err, "list policy payments")
	}

	return payments, nil
}

func (r *repository) UpdateStatus(
	ctx context.Context,
	id string,
	status Status,
	now time.Time,
) error {
	query := `UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), status, now, id)
	if err != nil {
		return core.MapError(err, "update payment status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update payment status: %w", core.ErrNotFound)
	}

	return nil
}
