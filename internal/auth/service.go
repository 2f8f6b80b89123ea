// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/middleware"
)

const KindTokenReuse core.Kind = "TOKEN_REUSE_DETECTED"

const blacklistPrefix = "blacklist:"

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	TokenVersion int
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name string,
	) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	repo         Repository
	txm          *core.TxManager
	jwt          *JWTManager
	userProvider UserProvider
	hasher       *core.PasswordHasher
	redis        *redis.Client
	now          func() time.Time
	logger       *slog.Logger
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithBlacklist enables access-token revocation on logout. Without it
// logout only revokes the refresh token.
func WithBlacklist(client *redis.Client) ServiceOption {
	return func(s *Service) { s.redis = client }
}

func NewService(
	repo Repository,
	txm *core.TxManager,
	jwt *JWTManager,
	userProvider UserProvider,
	hasher *core.PasswordHasher,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:         repo,
		txm:          txm,
		jwt:          jwt,
		userProvider: userProvider,
		hasher:       hasher,
		now:          time.Now,
		logger:       logger.With("service", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // burn the same time as a real verification
			_, _, _ = s.hasher.VerifyTimingSafe(req.Password, nil)
			return nil, core.UnauthorizedError("invalid email or password")
		}
		return nil, core.StoreError("get user", err)
	}

	valid, newHash, err := s.hasher.VerifyTimingSafe(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, core.UnauthorizedError("invalid email or password")
	}

	if newHash != "" {
		if err := s.userProvider.UpdatePassword(ctx, user.ID, newHash); err != nil {
			s.logger.WarnContext(ctx, "password rehash failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return s.issue(ctx, user, userAgent, ipAddress, "", nil)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("email")
		}
		return nil, core.StoreError("create user", err)
	}

	return s.issue(ctx, user, userAgent, ipAddress, "", nil)
}

// Refresh exchanges a refresh token for a new pair. Presenting a token
// that was already exchanged revokes its whole family.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	now := s.now().UTC()

	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.TokenInvalidError()
		}
		return nil, core.StoreError("find refresh token", err)
	}

	if stored.IsUsed {
		return nil, s.reuseDetected(ctx, stored, now)
	}

	if !stored.UsableAt(now) {
		if stored.IsRevoked() {
			return nil, core.TokenRevokedError()
		}
		return nil, core.TokenExpiredError()
	}

	user, err := s.userProvider.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.TokenInvalidError()
		}
		return nil, core.StoreError("get user", err)
	}

	resp, err := s.issue(ctx, user, userAgent, ipAddress, stored.FamilyID, stored)
	if errors.Is(err, core.ErrNotFound) {
		return nil, s.reuseDetected(ctx, stored, now)
	}
	return resp, err
}

func (s *Service) reuseDetected(
	ctx context.Context,
	stored *RefreshToken,
	now time.Time,
) error {
	if err := s.repo.RevokeByFamilyID(ctx, stored.FamilyID, now); err != nil {
		s.logger.ErrorContext(ctx, "revoke token family failed",
			"family_id", stored.FamilyID,
			"error", err,
		)
	}

	s.logger.WarnContext(ctx, "refresh token reuse detected",
		"user_id", stored.UserID,
		"family_id", stored.FamilyID,
	)

	return core.NewAppError(
		core.ErrTokenRevoked,
		"security alert: token reuse detected, all sessions revoked",
		http.StatusUnauthorized,
		KindTokenReuse,
	)
}

// Logout revokes the presented refresh token and, when a blacklist is
// configured, the access token used for the call.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	if claims == nil {
		return core.UnauthorizedError("")
	}
	now := s.now().UTC()

	if refreshToken != "" {
		stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
		switch {
		case errors.Is(err, core.ErrNotFound):
		case err != nil:
			return core.StoreError("find refresh token", err)
		case stored.UserID != claims.UserID:
			return core.ForbiddenError("cannot revoke another user's token")
		default:
			if err := s.repo.RevokeByID(ctx, stored.ID, now); err != nil &&
				!errors.Is(err, core.ErrNotFound) {
				return core.StoreError("revoke refresh token", err)
			}
		}
	}

	return s.RevokeAccessToken(ctx, claims.TokenID, claims.ExpiresAt)
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID, s.now().UTC()); err != nil {
		return core.StoreError("revoke all tokens", err)
	}

	if err := s.userProvider.IncrementTokenVersion(ctx, userID); err != nil {
		return core.LookupError("user", "increment token version", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	if s.redis == nil || jti == "" {
		return nil
	}

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return core.PersistenceError("blacklist token", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	if s.redis == nil {
		return false, nil
	}

	exists, err := s.redis.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

// VerifyAccessToken validates the token and then checks revocation
// state. Any failure rejects the token, and the role returned is the one
// currently stored for the user rather than the one in the token.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.IsAccessTokenBlacklisted(ctx, claims.TokenID)
	if err != nil {
		s.logger.ErrorContext(ctx, "blacklist lookup failed", "error", err)
		return nil, core.TimeoutError("verify token", err)
	}
	if revoked {
		return nil, core.TokenRevokedError()
	}

	user, err := s.userProvider.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.TokenInvalidError()
		}
		return nil, core.StoreError("verify token", err)
	}

	if claims.TokenVersion < user.TokenVersion {
		return nil, core.TokenRevokedError()
	}

	claims.Role = user.Role
	return claims, nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, core.StoreError("get sessions", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return core.LookupError("session", "find session", err)
	}

	if token.UserID != userID {
		return core.NotFoundError("session")
	}

	if err := s.repo.RevokeByID(ctx, sessionID, s.now().UTC()); err != nil {
		return core.LookupError("session", "revoke session", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return core.LookupError("user", "get user", err)
	}

	valid, _, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return core.UnauthorizedError("current password is incorrect")
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, userID, newHash); err != nil {
		return core.LookupError("user", "update password", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, core.LookupError("user", "get user", err)
	}

	return toUserResponse(user), nil
}

// PurgeExpired deletes refresh tokens that expired before cutoff.
func (s *Service) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, core.StoreError("purge refresh tokens", err)
	}
	return n, nil
}

// issue signs an access token and stores a new refresh token. When
// previous is set it is marked used in the same transaction; a previous
// token that was consumed concurrently surfaces as ErrNotFound.
func (s *Service) issue(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	previous *RefreshToken,
) (*AuthResponse, error) {
	now := s.now().UTC()

	accessToken, expiresAt, err := s.jwt.CreateAccessToken(middleware.AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(familyID, now)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	token := &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		CreatedAt: now,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	err = s.txm.InTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		if previous != nil {
			if err := repo.MarkAsUsed(ctx, previous.ID, token.ID, now); err != nil {
				return err
			}
		}
		return repo.Create(ctx, token)
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, core.StoreError("store refresh token", err)
	}

	return &AuthResponse{
		User: *toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
			ExpiresAt:    expiresAt,
		},
	}, nil
}

func toUserResponse(user *UserInfo) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
