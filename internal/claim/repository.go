// AngelaMos | 2026
// repository.go

package claim

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Insert(ctx context.Context, c *Claim) (bool, error)
	InsertUpdate(ctx context.Context, u *Update) error
	InsertPhotos(ctx context.Context, photos []Photo) error
	GetByID(ctx context.Context, id string) (*Claim, error)
	GetOwned(ctx context.Context, userID, id string) (*Claim, error)
	ListByUser(ctx context.Context, userID string) ([]Claim, error)
	ListUpdates(ctx context.Context, claimIDs []string) ([]Update, error)
	ListPhotos(ctx context.Context, claimIDs []string) ([]Photo, error)
	CompareAndSetStatus(
		ctx context.Context,
		id string,
		from, to Status,
		now time.Time,
	) (bool, error)
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

const claimColumns = `id, policy_id, user_id, claim_number, incident_type, incident_date,
	location, description, estimated_amount, contact_phone, additional_info,
	status, created_at, updated_at`

// Insert stores c unless its claim number is taken, reporting false in
// that case.
func (r *repository) Insert(ctx context.Context, c *Claim) (bool, error) {
	query := `
		INSERT INTO claims (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (claim_number) DO NOTHING`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		c.ID,
		c.PolicyID,
		c.UserID,
		c.ClaimNumber,
		c.IncidentType,
		c.IncidentDate,
		c.Location,
		c.Description,
		c.EstimatedAmount,
		c.ContactPhone,
		c.AdditionalInfo,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return false, core.MapError(err, "insert claim")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert claim: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) InsertUpdate(ctx context.Context, u *Update) error {
	query := `
		INSERT INTO claim_updates (
			id, claim_id, title, description, status_before, status_after,
			actor_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		u.ID,
		u.ClaimID,
		u.Title,
		u.Description,
		u.StatusBefore,
		u.StatusAfter,
		u.ActorID,
		u.CreatedAt,
	)
	if err != nil {
		return core.MapError(err, "insert claim update")
	}

	return nil
}

func (r *repository) InsertPhotos(ctx context.Context, photos []Photo) error {
	if len(photos) == 0 {
		return nil
	}

	insert := sq.Insert("claim_photos").
		Columns("id", "claim_id", "url", "caption", "created_at")
	for _, p := range photos {
		insert = insert.Values(p.ID, p.ClaimID, p.URL, p.Caption, p.CreatedAt)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build claim photos insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return core.MapError(err, "insert claim photos")
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	var c Claim
	if err := r.db.GetContext(ctx, &c, r.db.Rebind(query), id); err != nil {
		return nil, core.MapError(err, "get claim")
	}

	return &c, nil
}

func (r *repository) GetOwned(
	ctx context.Context,
	userID, id string,
) (*Claim, error) {
	query := `SELECT ` + claimColumns + `
		FROM claims
		WHERE id = ? AND user_id = ?`

	var c Claim
	if err := r.db.GetContext(ctx, &c, r.db.Rebind(query), id, userID); err != nil {
		return nil, core.MapError(err, "get claim")
	}

	return &c, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Claim, error) {
	query := `SELECT ` + claimColumns + `
		FROM claims
		WHERE user_id = ?
		ORDER BY created_at DESC, claim_number DESC`

	var claims []Claim
	if err := r.db.SelectContext(ctx, &claims, r.db.Rebind(query), userID); err != nil {
		return nil, core.MapError(err, "list claims")
	}

	return claims, nil
}

// ListUpdates returns the audit entries of every claim in claimIDs,
// newest first.
func (r *repository) ListUpdates(
	ctx context.Context,
	claimIDs []string,
) ([]Update, error) {
	if len(claimIDs) == 0 {
		return nil, nil
	}

	query, args, err := sq.Select(
		"id", "claim_id", "title", "description", "status_before",
		"status_after", "actor_id", "created_at",
	).
		From("claim_updates").
		Where(sq.Eq{"claim_id": claimIDs}).
		OrderBy("created_at DESC", "seq DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim updates query: %w", err)
	}

	var updates []Update
	if err := r.db.SelectContext(ctx, &updates, r.db.Rebind(query), args...); err != nil {
		return nil, core.MapError(err, "list claim updates")
	}

	return updates, nil
}

func (r *repository) ListPhotos(
	ctx context.Context,
	claimIDs []string,
) ([]Photo, error) {
	if len(claimIDs) == 0 {
		return nil, nil
	}

	query, args, err := sq.Select("id", "claim_id", "url", "caption", "created_at").
		From("claim_photos").
		Where(sq.Eq{"claim_id": claimIDs}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim photos query: %w", err)
	}

	var photos []Photo
	if err := r.db.SelectContext(ctx, &photos, r.db.Rebind(query), args...); err != nil {
		return nil, core.MapError(err, "list claim photos")
	}

	return photos, nil
}

func (r *repository) CompareAndSetStatus(
	ctx context.Context,
	id string,
	from, to Status,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE claims
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), to, now, id, from)
	if err != nil {
		return false, core.MapError(err, "set claim status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set claim status: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	query := `SELECT status, COUNT(*) AS n FROM claims GROUP BY status`

	var rows []struct {
		Status Status `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, core.MapError(err, "count claims")
	}

	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}
