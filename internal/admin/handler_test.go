// AngelaMos | 2026
// handler_test.go

package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/insurance-backend/internal/admin"
	"github.com/carterperez-dev/insurance-backend/internal/claim"
	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/ident"
	"github.com/carterperez-dev/insurance-backend/internal/middleware"
	"github.com/carterperez-dev/insurance-backend/internal/policy"
	"github.com/carterperez-dev/insurance-backend/internal/testhelper"
	"github.com/carterperez-dev/insurance-backend/internal/user"
)

type tokens map[string]*middleware.AccessTokenClaims

func (t tokens) VerifyAccessToken(
	_ context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	if c, ok := t[token]; ok {
		return c, nil
	}
	return nil, core.ErrTokenInvalid
}

type fixture struct {
	router   http.Handler
	db       *core.Database
	policies *policy.Service
	claims   *claim.Service
	adminID  string
	userID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testhelper.NewDB(t)
	txm := testhelper.NewTxManager(db)
	ids := ident.New()
	logger := testhelper.Logger()

	users := user.NewService(user.NewRepository(db.DB), txm, logger)
	policies := policy.NewService(
		policy.NewRepository(db.DB), txm, ids, config.PolicyConfig{}, logger)
	claims := claim.NewService(claim.NewRepository(db.DB), policies, txm, ids, logger)

	f := &fixture{
		db:       db,
		policies: policies,
		claims:   claims,
		adminID:  testhelper.CreateUser(t, db, testhelper.RoleAdmin),
		userID:   testhelper.CreateUser(t, db, testhelper.RoleUser),
	}

	verifier := tokens{
		"admin": {UserID: f.adminID, Role: testhelper.RoleAdmin},
		"user":  {UserID: f.userID, Role: testhelper.RoleUser},
	}

	handler := admin.NewHandler(admin.HandlerConfig{
		DBStats:   db.Stats,
		DBPing:    db.Ping,
		UserCount: users.Count,
		Policies:  admin.StatusCounts(policies.StatusCounts),
		Claims:    admin.StatusCounts(claims.StatusCounts),
	})

	policyHandler := policy.NewHandler(policies)
	claimHandler := claim.NewHandler(claims)

	r := chi.NewRouter()
	handler.RegisterRoutes(r,
		middleware.Authenticator(verifier),
		middleware.RequireAdmin,
		user.NewHandler(users).RegisterAdminRoutes,
		func(r chi.Router) {
			r.Post("/policies/reconcile", policyHandler.Reconcile)
			r.Post("/claims/{claimID}/transition", claimHandler.Transition)
		},
	)
	f.router = r

	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func (f *fixture) seedClaim(t *testing.T) *claim.Claim {
	t.Helper()
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)

	p, err := f.policies.CreatePolicy(ctx, f.userID, policy.CreatePolicyInput{
		Type:           policy.TypeHome,
		StartDate:      today.AddDate(0, 0, -1),
		EndDate:        today.AddDate(1, 0, 0),
		Premium:        decimal.NewFromInt(250),
		CoverageAmount: decimal.NewFromInt(80000),
	})
	require.NoError(t, err)

	c, err := f.claims.SubmitClaim(ctx, f.userID, p.ID, claim.SubmitClaimInput{
		IncidentType:    "water damage",
		IncidentDate:    today.AddDate(0, 0, -1),
		Location:        "Calle Mayor 3",
		Description:     "Burst pipe in kitchen",
		EstimatedAmount: decimal.NewFromInt(1200),
	})
	require.NoError(t, err)
	return c
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	f := newFixture(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/admin/stats"},
		{http.MethodGet, "/admin/users"},
		{http.MethodDelete, "/admin/users/" + f.userID},
		{http.MethodPost, "/admin/policies/reconcile"},
	}

	for _, p := range paths {
		assert.Equal(t, http.StatusUnauthorized, f.do(t, p.method, p.path, "", nil).Code, p.path)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, p.method, p.path, "forged", nil).Code, p.path)
		assert.Equal(t, http.StatusForbidden, f.do(t, p.method, p.path, "user", nil).Code, p.path)
	}

	assert.Equal(t, 1, testhelper.Count(t, f.db, "users", "id = ?", f.userID))
}

func TestLifecycleStats(t *testing.T) {
	f := newFixture(t)
	f.seedClaim(t)

	rec := f.do(t, http.MethodGet, "/admin/stats", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats admin.SystemStatsResponse
	decodeData(t, rec, &stats)

	assert.Equal(t, 2, stats.Lifecycle.Users)
	assert.Equal(t, 1, stats.Lifecycle.Policies["active"])
	assert.Equal(t, 1, stats.Lifecycle.Claims["submitted"])
	assert.True(t, stats.Database.Healthy)
	assert.False(t, stats.Redis.Configured)
	assert.NotEmpty(t, stats.Runtime.GoVersion)
}

func TestTransitionClaimRoute(t *testing.T) {
	f := newFixture(t)
	c := f.seedClaim(t)
	path := "/admin/claims/" + c.ID + "/transition"

	rec := f.do(t, http.MethodPost, path, "admin", map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, path, "admin", map[string]string{"action": "cancel"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, path, "admin", map[string]string{
		"action": "review",
		"note":   "assigned to adjuster",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp claim.ClaimResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "under_review", resp.Status)
	assert.Len(t, resp.Updates, 2)
}

func TestDeleteUserRoute(t *testing.T) {
	f := newFixture(t)
	f.seedClaim(t)

	rec := f.do(t, http.MethodDelete, "/admin/users/"+f.adminID, "admin", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/admin/users/"+f.userID, "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary user.DeletionSummary
	decodeData(t, rec, &summary)
	assert.Equal(t, f.userID, summary.UserID)
	assert.Equal(t, int64(1), summary.Policies)
	assert.Equal(t, int64(1), summary.Claims)
	assert.Equal(t, int64(1), summary.ClaimUpdates)

	rec = f.do(t, http.MethodDelete, "/admin/users/"+f.userID, "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcileRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/policies/reconcile", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp policy.ReconcileResponse
	decodeData(t, rec, &resp)
	assert.Zero(t, resp.Updated)
}
