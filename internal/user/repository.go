// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type Repository interface {
	WithTx(tx core.DBTX) Repository
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	IncrementTokenVersion(ctx context.Context, id string, now time.Time) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	DeleteCascade(ctx context.Context, id string) (core.DeletionCounts, error)
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

const userColumns = `id, email, password_hash, name, role, token_version,
	created_at, updated_at`

const ownedPolicies = `SELECT id FROM policies WHERE user_id = ?`

const ownedClaims = `SELECT c.id FROM claims c
	JOIN policies p ON p.id = c.policy_id
	WHERE p.user_id = ?`

// userTree lists the deletion order for a user. Every table that points
// at the user's policies is emptied before the policies themselves.
var userTree = []core.CascadeStep{
	{Table: "claim_photos", Query: `DELETE FROM claim_photos WHERE claim_id IN (` + ownedClaims + `)`},
	{Table: "claim_updates", Query: `DELETE FROM claim_updates WHERE claim_id IN (` + ownedClaims + `)`},
	{Table: "claims", Query: `DELETE FROM claims WHERE policy_id IN (` + ownedPolicies + `)`},
	{Table: "payments", Query: `DELETE FROM payments WHERE policy_id IN (` + ownedPolicies + `)`},
	{Table: "beneficiaries", Query: `DELETE FROM beneficiaries WHERE policy_id IN (` + ownedPolicies + `)`},
	{Table: "policies", Query: `DELETE FROM policies WHERE user_id = ?`},
	{Table: "refresh_tokens", Query: `DELETE FROM refresh_tokens WHERE user_id = ?`},
	{Table: "users", Query: `DELETE FROM users WHERE id = ?`},
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, name, role, token_version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.TokenVersion,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return core.MapError(err, "create user")
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	var user User
	if err := r.db.GetContext(ctx, &user, r.db.Rebind(query), id); err != nil {
		return nil, core.MapError(err, "get user")
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	var user User
	if err := r.db.GetContext(ctx, &user, r.db.Rebind(query), email); err != nil {
		return nil, core.MapError(err, "get user by email")
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = ?, role = ?, updated_at = ?
		WHERE id = ?`

	return r.execOne(ctx, "update user", query,
		user.Name,
		user.Role,
		user.UpdatedAt,
		user.ID,
	)
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
	now time.Time,
) error {
	query := `
		UPDATE users
		SET password_hash = ?, updated_at = ?
		WHERE id = ?`

	return r.execOne(ctx, "update password", query, passwordHash, now, id)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
	now time.Time,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = ?
		WHERE id = ?`

	return r.execOne(ctx, "increment token version", query, now, id)
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
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

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	where := sq.And{}
	if params.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(params.Search)) + "%"
		where = append(where, sq.Or{
			sq.Expr(`LOWER(email) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`LOWER(name) LIKE ? ESCAPE '\'`, pattern),
		})
	}
	if params.Role != "" {
		where = append(where, sq.Eq{"role": params.Role})
	}

	countQuery, countArgs, err := sq.Select("COUNT(*)").From("users").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, core.MapError(err, "count users")
	}

	query, args, err := sq.Select(
		"id", "email", "name", "role", "token_version", "created_at", "updated_at",
	).
		From("users").
		Where(where).
		OrderBy("created_at DESC", "email ASC").
		Limit(uint64(params.PageSize)).
		Offset(uint64(params.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users: %w", err)
	}

	var users []User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, 0, core.MapError(err, "list users")
	}

	return users, total, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE email = ?`

	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(query), email); err != nil {
		return false, core.MapError(err, "check email exists")
	}

	return n > 0, nil
}

// DeleteCascade removes the user and everything that depends on it. It
// must run inside a transaction; a user row that is already gone is
// reported as ErrNotFound.
func (r *repository) DeleteCascade(
	ctx context.Context,
	id string,
) (core.DeletionCounts, error) {
	counts, err := core.RunCascade(ctx, r.db, userTree, id)
	if err != nil {
		return nil, err
	}

	if counts["users"] == 0 {
		return nil, fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	return counts, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
