// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	MarkAsUsed(ctx context.Context, id, replacedByID string, now time.Time) error
	RevokeByID(ctx context.Context, id string, now time.Time) error
	RevokeByFamilyID(ctx context.Context, familyID string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) error
	GetActiveSessionsForUser(
		ctx context.Context,
		userID string,
		now time.Time,
	) ([]RefreshToken, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
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

const tokenColumns = `id, user_id, token_hash, family_id, expires_at, created_at,
	is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address`

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, family_id, expires_at, created_at,
			is_used, user_agent, ip_address
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		token.ID,
		token.UserID,
		token.TokenHash,
		token.FamilyID,
		token.ExpiresAt,
		token.CreatedAt,
		false,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		return core.MapError(err, "create refresh token")
	}

	return nil
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = ?`

	var token RefreshToken
	if err := r.db.GetContext(ctx, &token, r.db.Rebind(query), tokenHash); err != nil {
		return nil, core.MapError(err, "find refresh token")
	}

	return &token, nil
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE id = ?`

	var token RefreshToken
	if err := r.db.GetContext(ctx, &token, r.db.Rebind(query), id); err != nil {
		return nil, core.MapError(err, "find refresh token")
	}

	return &token, nil
}

// MarkAsUsed flips the token to used exactly once. A second caller gets
// ErrNotFound, which the service treats as reuse.
func (r *repository) MarkAsUsed(
	ctx context.Context,
	id, replacedByID string,
	now time.Time,
) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = ?, used_at = ?, replaced_by_id = ?
		WHERE id = ? AND is_used = ?`

	return r.execOne(ctx, "mark refresh token as used", query,
		true, now, replacedByID, id, false)
}

func (r *repository) RevokeByID(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL`

	return r.execOne(ctx, "revoke refresh token", query, now, id)
}

func (r *repository) RevokeByFamilyID(
	ctx context.Context,
	familyID string,
	now time.Time,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE family_id = ? AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), now, familyID); err != nil {
		return core.MapError(err, "revoke token family")
	}

	return nil
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID string,
	now time.Time,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), now, userID); err != nil {
		return core.MapError(err, "revoke all user tokens")
	}

	return nil
}

func (r *repository) GetActiveSessionsForUser(
	ctx context.Context,
	userID string,
	now time.Time,
) ([]RefreshToken, error) {
	query := `SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE user_id = ?
			AND revoked_at IS NULL
			AND is_used = ?
			AND expires_at > ?
		ORDER BY created_at DESC`

	var tokens []RefreshToken
	if err := r.db.SelectContext(ctx, &tokens, r.db.Rebind(query), userID, false, now); err != nil {
		return nil, core.MapError(err, "get active sessions")
	}

	return tokens, nil
}

func (r *repository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), cutoff)
	if err != nil {
		return 0, core.MapError(err, "delete expired tokens")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return core.MapError(err, op)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
