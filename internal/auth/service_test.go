// AngelaMos | 2026
// service_test.go

package auth_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/insurance-backend/internal/auth"
	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/testhelper"
	"github.com/carterperez-dev/insurance-backend/internal/user"
)

type fixture struct {
	db   *core.Database
	svc  *auth.Service
	jwt  *auth.JWTManager
	user *user.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfg := config.JWTConfig{
		PrivateKeyPath:     filepath.Join(dir, "private.pem"),
		PublicKeyPath:      filepath.Join(dir, "public.pem"),
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "insurance-test",
		Audience:           "insurance-test-api",
	}
	require.NoError(t, auth.GenerateKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath))

	jwtManager, err := auth.NewJWTManager(cfg)
	require.NoError(t, err)

	db := testhelper.NewDB(t)
	txm := testhelper.NewTxManager(db)
	logger := testhelper.Logger()

	users := user.NewService(user.NewRepository(db.DB), txm, logger)
	hasher := core.NewPasswordHasher(core.ArgonParams{
		Memory:  1024,
		Time:    1,
		Threads: 1,
		KeyLen:  32,
		SaltLen: 16,
	})

	return &fixture{
		db:   db,
		jwt:  jwtManager,
		user: users,
		svc: auth.NewService(
			auth.NewRepository(db.DB),
			txm,
			jwtManager,
			users,
			hasher,
			logger,
		),
	}
}

func (f *fixture) register(t *testing.T, email string) *auth.AuthResponse {
	t.Helper()

	resp, err := f.svc.Register(context.Background(), auth.RegisterRequest{
		Email:    email,
		Password: "correct horse battery",
		Name:     "Ana Torres",
	}, "go-test", "127.0.0.1")
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.register(t, "Ana@Example.com")
	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.Equal(t, "user", resp.User.Role)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)
	assert.Equal(t, 900, resp.Tokens.ExpiresIn)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)

	_, err := f.svc.Register(ctx, auth.RegisterRequest{
		Email:    "ana@example.com",
		Password: "another password",
		Name:     "Other",
	}, "", "")
	assert.Equal(t, core.KindConflict, core.KindOf(err))

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, auth.LoginRequest{
			Email:    "ana@example.com",
			Password: "wrong password",
		}, "", "")
		assert.Equal(t, core.KindUnauthorized, core.KindOf(err))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.Login(ctx, auth.LoginRequest{
			Email:    "nobody@example.com",
			Password: "correct horse battery",
		}, "", "")
		assert.Equal(t, core.KindUnauthorized, core.KindOf(err))
	})

	t.Run("success", func(t *testing.T) {
		login, err := f.svc.Login(ctx, auth.LoginRequest{
			Email:    "ana@example.com",
			Password: "correct horse battery",
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, login.User.ID)
	})
}

func TestVerifyAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := f.register(t, "ana@example.com")

	claims, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))

	_, err = f.svc.VerifyAccessToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	t.Run("role is read from the store", func(t *testing.T) {
		_, err := f.db.DB.ExecContext(ctx,
			`UPDATE users SET role = 'admin' WHERE id = ?`, resp.User.ID)
		require.NoError(t, err)

		claims, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("logout all revokes issued tokens", func(t *testing.T) {
		require.NoError(t, f.svc.LogoutAll(ctx, resp.User.ID))

		_, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
		assert.Equal(t, core.KindTokenRevoked, core.KindOf(err))
	})

	t.Run("deleted user", func(t *testing.T) {
		other := f.register(t, "gone@example.com")
		_, err := f.db.DB.ExecContext(ctx,
			`DELETE FROM users WHERE id = ?`, other.User.ID)
		require.NoError(t, err)

		_, err = f.svc.VerifyAccessToken(ctx, other.Tokens.AccessToken)
		assert.Equal(t, core.KindTokenInvalid, core.KindOf(err))
	})
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.register(t, "ana@example.com")

	second, err := f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	assert.Equal(t, auth.KindTokenReuse, core.KindOf(err))

	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken, "", "")
	assert.Equal(t, core.KindTokenRevoked, core.KindOf(err))

	_, err = f.svc.Refresh(ctx, "unknown", "", "")
	assert.Equal(t, core.KindTokenInvalid, core.KindOf(err))
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana@example.com")
	bob := f.register(t, "bob@example.com")

	sessions, err := f.svc.GetActiveSessions(ctx, ana.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "go-test", sessions[0].UserAgent)

	err = f.svc.RevokeSession(ctx, bob.User.ID, sessions[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, f.svc.RevokeSession(ctx, ana.User.ID, sessions[0].ID))

	sessions, err = f.svc.GetActiveSessions(ctx, ana.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana@example.com")
	bob := f.register(t, "bob@example.com")

	anaClaims, err := f.svc.VerifyAccessToken(ctx, ana.Tokens.AccessToken)
	require.NoError(t, err)

	err = f.svc.Logout(ctx, bob.Tokens.RefreshToken, anaClaims)
	assert.Equal(t, core.KindForbidden, core.KindOf(err))

	require.NoError(t, f.svc.Logout(ctx, ana.Tokens.RefreshToken, anaClaims))

	_, err = f.svc.Refresh(ctx, ana.Tokens.RefreshToken, "", "")
	assert.Equal(t, core.KindTokenRevoked, core.KindOf(err))

	assert.Equal(t, core.KindUnauthorized, core.KindOf(f.svc.Logout(ctx, "", nil)))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.register(t, "ana@example.com")

	err := f.svc.ChangePassword(ctx, ana.User.ID, "wrong password", "new password 123")
	assert.Equal(t, core.KindUnauthorized, core.KindOf(err))

	require.NoError(t, f.svc.ChangePassword(
		ctx, ana.User.ID, "correct horse battery", "new password 123"))

	_, err = f.svc.VerifyAccessToken(ctx, ana.Tokens.AccessToken)
	assert.Equal(t, core.KindTokenRevoked, core.KindOf(err))

	_, err = f.svc.Login(ctx, auth.LoginRequest{
		Email:    "ana@example.com",
		Password: "new password 123",
	}, "", "")
	require.NoError(t, err)
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ana@example.com")

	n, err := f.svc.PurgeExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.PurgeExpired(ctx, time.Now().UTC().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
