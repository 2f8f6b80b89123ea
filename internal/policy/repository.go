// AngelaMos | 2026
// repository.go

package policy

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Insert(ctx context.Context, p *Policy) (bool, error)
	InsertBeneficiaries(ctx context.Context, bs []Beneficiary) error
	GetByID(ctx context.Context, id string) (*Policy, error)
	GetOwned(ctx context.Context, userID, id string) (*Policy, error)
	ListByUser(ctx context.Context, userID string) ([]Policy, error)
	ListBeneficiaries(ctx context.Context, policyID string) ([]Beneficiary, error)
	Update(ctx context.Context, userID, id string, set map[string]any) error
	CompareAndSetStatus(
		ctx context.Context,
		id string,
		from, to Status,
		now time.Time,
	) (bool, error)
	ListReconcilable(ctx context.Context) ([]statusRow, error)
	DeleteTree(ctx context.Context, id string) (core.DeletionCounts, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
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

const policyColumns = `id, user_id, policy_number, type, start_date, end_date,
	premium, coverage_amount, status, details, created_at, updated_at`

// Insert writes p unless its policy number is already taken, in which
// case it reports false so the caller can regenerate.
func (r *repository) Insert(ctx context.Context, p *Policy) (bool, error) {
	query := `
		INSERT INTO policies (` + policyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (policy_number) DO NOTHING`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		p.ID,
		p.UserID,
		p.PolicyNumber,
		p.Type,
		p.StartDate,
		p.EndDate,
		p.Premium,
		p.CoverageAmount,
		p.Status,
		p.Details,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return false, core.MapError(err, "insert policy")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert policy: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) InsertBeneficiaries(
	ctx context.Context,
	bs []Beneficiary,
) error {
	if len(bs) == 0 {
		return nil
	}

	insert := sq.Insert("beneficiaries").
		Columns("id", "policy_id", "name", "relationship", "percentage", "created_at")
	for _, b := range bs {
		insert = insert.Values(b.ID, b.PolicyID, b.Name, b.Relationship, b.Percentage, b.CreatedAt)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build beneficiaries insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return core.MapError(err, "insert beneficiaries")
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = ?`

	var p Policy
	if err := r.db.GetContext(ctx, &p, r.db.Rebind(query), id); err != nil {
		return nil, core.MapError(err, "get policy")
	}

	return &p, nil
}

func (r *repository) GetOwned(
	ctx context.Context,
	userID, id string,
) (*Policy, error) {
	query := `SELECT ` + policyColumns + `
		FROM policies
		WHERE id = ? AND user_id = ?`

	var p Policy
	if err := r.db.GetContext(ctx, &p, r.db.Rebind(query), id, userID); err != nil {
		return nil, core.MapError(err, "get policy")
	}

	return &p, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Policy, error) {
	query := `SELECT ` + policyColumns + `
		FROM policies
		WHERE user_id = ?
		ORDER BY created_at DESC, policy_number DESC`

	var policies []Policy
	if err := r.db.SelectContext(ctx, &policies, r.db.Rebind(query), userID); err != nil {
		return nil, core.MapError(err, "list policies")
	}

	return policies, nil
}

func (r *repository) ListBeneficiaries(
	ctx context.Context,
	policyID string,
) ([]Beneficiary, error) {
	query := `
		SELECT id, policy_id, name, relationship, percentage, created_at
		FROM beneficiaries
		WHERE policy_id = ?
		ORDER BY percentage DESC, name ASC`

	var bs []Beneficiary
	if err := r.db.SelectContext(ctx, &bs, r.db.Rebind(query), policyID); err != nil {
		return nil, core.MapError(err, "list beneficiaries")
	}

	return bs, nil
}

// Update writes only the columns present in set.
func (r *repository) Update(
	ctx context.Context,
	userID, id string,
	set map[string]any,
) error {
	query, args, err := sq.Update("policies").
		SetMap(set).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build policy update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return core.MapError(err, "update policy")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update policy: %w", core.ErrNotFound)
	}

	return nil
}

// CompareAndSetStatus moves the policy to `to` only while it is still in
// `from`. It reports whether the row changed.
func (r *repository) CompareAndSetStatus(
	ctx context.Context,
	id string,
	from, to Status,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE policies
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), to, now, id, from)
	if err != nil {
		return false, core.MapError(err, "set policy status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set policy status: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) ListReconcilable(ctx context.Context) ([]statusRow, error) {
	query := `
		SELECT id, start_date, end_date, status
		FROM policies
		WHERE status <> ?`

	var rows []statusRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), StatusCancelled); err != nil {
		return nil, core.MapError(err, "list reconcilable policies")
	}

	return rows, nil
}

// policyTree lists the rows owned by one policy, children first.
var policyTree = []core.CascadeStep{
	{
		Table: "claim_photos",
		Query: `DELETE FROM claim_photos WHERE claim_id IN
			(SELECT id FROM claims WHERE policy_id = ?)`,
	},
	{
		Table: "claim_updates",
		Query: `DELETE FROM claim_updates WHERE claim_id IN
			(SELECT id FROM claims WHERE policy_id = ?)`,
	},
	{Table: "claims", Query: `DELETE FROM claims WHERE policy_id = ?`},
	{Table: "payments", Query: `DELETE FROM payments WHERE policy_id = ?`},
	{Table: "beneficiaries", Query: `DELETE FROM beneficiaries WHERE policy_id = ?`},
	{Table: "policies", Query: `DELETE FROM policies WHERE id = ?`},
}

func (r *repository) DeleteTree(
	ctx context.Context,
	id string,
) (core.DeletionCounts, error) {
	counts, err := core.RunCascade(ctx, r.db, policyTree, id)
	if err != nil {
		return nil, fmt.Errorf("delete policy tree: %w", err)
	}
	if counts["policies"] == 0 {
		return nil, fmt.Errorf("delete policy tree: %w", core.ErrNotFound)
	}
	return counts, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	query := `SELECT status, COUNT(*) AS n FROM policies GROUP BY status`

	var rows []struct {
		Status Status `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, core.MapError(err, "count policies")
	}

	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}
