// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/insurance-backend/internal/auth"
	"github.com/carterperez-dev/insurance-backend/internal/core"
)

type Service struct {
	repo   Repository
	txm    *core.TxManager
	now    func() time.Time
	logger *slog.Logger
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	repo Repository,
	txm *core.TxManager,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:   repo,
		txm:    txm,
		now:    time.Now,
		logger: logger.With("service", "user"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	now := s.now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Name:         name,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID, s.now().UTC())
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash, s.now().UTC())
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, core.LookupError("user", "get user", err)
	}
	return user, nil
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, core.LookupError("user", "update user", err)
	}

	if req.Name == nil {
		return nil, core.NoOpError("no fields to update")
	}

	user.Name = strings.TrimSpace(*req.Name)
	user.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, core.LookupError("user", "update user", err)
	}

	return user, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	actingAdminID, id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, core.ValidationError(core.FieldError{
			Field:   "role",
			Message: "must be one of user, admin",
		})
	}

	if err := s.requireAdmin(ctx, actingAdminID); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, core.LookupError("user", "update role", err)
	}

	if user.ID == actingAdminID && role != RoleAdmin {
		return nil, core.ForbiddenError("admins cannot demote themselves")
	}

	user.Role = role
	user.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, core.LookupError("user", "update role", err)
	}

	s.logger.InfoContext(ctx, "user role changed",
		"user_id", user.ID,
		"role", role,
		"actor_id", actingAdminID,
	)

	return user, nil
}

// DeleteUser removes a non-admin user together with every policy, claim,
// claim history entry, photo, payment, beneficiary and refresh token that
// belongs to it. Either everything is removed or nothing is.
func (s *Service) DeleteUser(
	ctx context.Context,
	actingAdminID, targetID string,
) (_ *DeletionSummary, err error) {
	ctx, span := core.StartSpan(ctx, "user.DeleteUser",
		attribute.String("user.target_id", targetID))
	defer func() { core.EndSpan(span, err) }()

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, core.LookupError("user", "delete user", err)
	}

	if err := s.requireAdmin(ctx, actingAdminID); err != nil {
		return nil, err
	}

	if target.ID == actingAdminID {
		return nil, core.ForbiddenError("admins cannot delete themselves")
	}
	if target.IsAdmin() {
		return nil, core.ForbiddenError("admin accounts cannot be deleted")
	}

	var counts core.DeletionCounts
	err = s.txm.InTx(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		counts, txErr = s.repo.WithTx(tx).DeleteCascade(ctx, target.ID)
		return txErr
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) && !core.IsAppError(err) {
			return nil, core.NotFoundError("user")
		}
		if core.IsAppError(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "user deletion rolled back",
			"user_id", target.ID,
			"actor_id", actingAdminID,
			"error", err,
		)
		return nil, core.PersistenceError("delete user", err)
	}

	summary := newDeletionSummary(target.ID, counts)

	core.RecordLifecycle("user", "deleted")
	s.logger.InfoContext(ctx, "user deleted",
		"user_id", target.ID,
		"actor_id", actingAdminID,
		"policies", summary.Policies,
		"claims", summary.Claims,
		"payments", summary.Payments,
	)

	return summary, nil
}

// requireAdmin re-reads the acting user's role from the store. Anything
// other than a stored admin role is refused.
func (s *Service) requireAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return core.ForbiddenError("")
	}

	actor, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ForbiddenError("")
	}
	if err != nil {
		return core.StoreError("load acting user", err)
	}

	if !actor.IsAdmin() {
		return core.ForbiddenError("admin role required")
	}
	return nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	users, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, core.StoreError("list users", err)
	}
	return users, total, nil
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, core.UnauthorizedError("")
	}

	return s.GetUser(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, core.UnauthorizedError("")
	}

	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) EmailExists(
	ctx context.Context,
	email string,
) (bool, error) {
	return s.repo.ExistsByEmail(ctx, strings.ToLower(email))
}

func (s *Service) Count(ctx context.Context) (int, error) {
	_, total, err := s.repo.List(ctx, ListUsersParams{PageSize: 1})
	if err != nil {
		return 0, core.StoreError("count users", err)
	}
	return total, nil
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
