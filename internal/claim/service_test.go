// AngelaMos | 2026
// service_test.go

package claim

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/ident"
	"github.com/carterperez-dev/insurance-backend/internal/policy"
	"github.com/carterperez-dev/insurance-backend/internal/testhelper"
)

type fixture struct {
	db       *core.Database
	svc      *Service
	policies *policy.Service
	userID   string
	staffID  string
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testhelper.NewDB(t)
	now := testhelper.Date(2025, time.June, 15).Add(10 * time.Hour)
	f := &fixture{db: db, now: &now}
	clock := func() time.Time { return *f.now }

	txm := testhelper.NewTxManager(db)
	ids := ident.New()

	f.userID = testhelper.CreateUser(t, db, testhelper.RoleUser)
	f.staffID = testhelper.CreateUser(t, db, testhelper.RoleAdmin)
	f.policies = policy.NewService(
		policy.NewRepository(db.DB),
		txm,
		ids,
		config.PolicyConfig{CancelMode: config.CancelModeStatus},
		testhelper.Logger(),
		policy.WithClock(clock),
	)
	f.svc = NewService(
		NewRepository(db.DB),
		f.policies,
		txm,
		ids,
		testhelper.Logger(),
		WithClock(clock),
	)
	return f
}

func (f *fixture) tick() {
	*f.now = f.now.Add(time.Minute)
}

func (f *fixture) policy(t *testing.T, start, end time.Time) *policy.Policy {
	t.Helper()

	p, err := f.policies.CreatePolicy(context.Background(), f.userID, policy.CreatePolicyInput{
		Type:           policy.TypeHome,
		StartDate:      start,
		EndDate:        end,
		Premium:        decimal.NewFromInt(800),
		CoverageAmount: decimal.NewFromInt(200000),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) activePolicy(t *testing.T) *policy.Policy {
	t.Helper()
	return f.policy(t,
		testhelper.Date(2025, time.January, 1),
		testhelper.Date(2026, time.January, 1),
	)
}

func validInput() SubmitClaimInput {
	return SubmitClaimInput{
		IncidentType:    "water_damage",
		IncidentDate:    testhelper.Date(2025, time.June, 10),
		Location:        "Calle Mayor 1, Madrid",
		Description:     "Burst pipe flooded the kitchen",
		EstimatedAmount: decimal.RequireFromString("1250.50"),
		ContactPhone:    "+34 600 000 000",
		Photos: []PhotoInput{
			{URL: "https://img.example.test/1.jpg", Caption: "kitchen"},
			{URL: "https://img.example.test/2.jpg"},
		},
	}
}

func fieldNames(err error) []string {
	appErr, ok := core.AsAppError(err)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(appErr.Fields))
	for _, f := range appErr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestSubmitClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	c, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, c.Status)
	assert.Regexp(t, regexp.MustCompile(`^CLAIM-\d{6}-\d{4}$`), c.ClaimNumber)
	require.Len(t, c.Updates, 1)
	assert.Equal(t, "Siniestro registrado", c.Updates[0].Title)
	assert.Empty(t, c.Updates[0].StatusBefore)
	assert.Equal(t, string(StatusSubmitted), c.Updates[0].StatusAfter)
	assert.Len(t, c.Photos, 2)

	got, err := f.svc.GetClaim(ctx, f.userID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ClaimNumber, got.ClaimNumber)
	assert.True(t, got.EstimatedAmount.Equal(decimal.RequireFromString("1250.50")))
	require.NotNil(t, got.ContactPhone)
	assert.Equal(t, "+34 600 000 000", *got.ContactPhone)
	assert.Nil(t, got.AdditionalInfo)
	require.Len(t, got.Updates, 1)
	assert.Len(t, got.Photos, 2)
	assert.Equal(t, 1, testhelper.Count(t, f.db, "claim_updates", "claim_id = ?", c.ID))
}

func TestSubmitClaimEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.policy(t,
		testhelper.Date(2025, time.September, 1),
		testhelper.Date(2026, time.September, 1),
	)
	expired := f.policy(t,
		testhelper.Date(2023, time.January, 1),
		testhelper.Date(2024, time.January, 1),
	)
	cancelled := f.activePolicy(t)
	_, err := f.policies.CancelPolicy(ctx, f.userID, cancelled.ID)
	require.NoError(t, err)

	for name, id := range map[string]string{
		"pending":   pending.ID,
		"expired":   expired.ID,
		"cancelled": cancelled.ID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SubmitClaim(ctx, f.userID, id, validInput())
			require.Error(t, err)
			assert.Equal(t, core.KindPolicyNotEligible, core.KindOf(err))
			assert.Equal(t, 0, testhelper.Count(t, f.db, "claims", "policy_id = ?", id))
		})
	}

	t.Run("active", func(t *testing.T) {
		active := f.activePolicy(t)
		c, err := f.svc.SubmitClaim(ctx, f.userID, active.ID, validInput())
		require.NoError(t, err)
		assert.Equal(t, 1, testhelper.Count(t, f.db, "claim_updates",
			"claim_id = ? AND status_after = ?", c.ID, string(StatusSubmitted)))
	})
}

func TestSubmitClaimPolicyNotOwned(t *testing.T) {
	f := newFixture(t)
	p := f.activePolicy(t)
	stranger := testhelper.CreateUser(t, f.db, testhelper.RoleUser)

	_, err := f.svc.SubmitClaim(context.Background(), stranger, p.ID, validInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSubmitClaimValidation(t *testing.T) {
	f := newFixture(t)
	p := f.activePolicy(t)

	tests := []struct {
		name   string
		mutate func(*SubmitClaimInput)
		field  string
	}{
		{"blank description", func(in *SubmitClaimInput) { in.Description = "  " }, "description"},
		{"blank location", func(in *SubmitClaimInput) { in.Location = "" }, "location"},
		{"blank incident type", func(in *SubmitClaimInput) { in.IncidentType = "" }, "incident_type"},
		{"missing incident date", func(in *SubmitClaimInput) { in.IncidentDate = time.Time{} }, "incident_date"},
		{"future incident date", func(in *SubmitClaimInput) {
			in.IncidentDate = testhelper.Date(2025, time.June, 16)
		}, "incident_date"},
		{"zero amount", func(in *SubmitClaimInput) { in.EstimatedAmount = decimal.Zero }, "estimated_amount"},
		{"negative amount", func(in *SubmitClaimInput) {
			in.EstimatedAmount = decimal.NewFromInt(-5)
		}, "estimated_amount"},
		{"blank photo url", func(in *SubmitClaimInput) {
			in.Photos = append(in.Photos, PhotoInput{URL: " "})
		}, "photos[2].url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := f.svc.SubmitClaim(context.Background(), f.userID, p.ID, in)
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
			assert.Contains(t, fieldNames(err), tt.field)
		})
	}

	assert.Equal(t, 0, testhelper.Count(t, f.db, "claims", ""))
}

func TestSubmitClaimIncidentToday(t *testing.T) {
	f := newFixture(t)
	p := f.activePolicy(t)

	in := validInput()
	in.IncidentDate = testhelper.Date(2025, time.June, 15)

	_, err := f.svc.SubmitClaim(context.Background(), f.userID, p.ID, in)
	require.NoError(t, err)
}

// walk drives a claim to status using staff transitions.
func (f *fixture) walk(t *testing.T, c *Claim, actions ...Action) *Claim {
	t.Helper()

	for _, a := range actions {
		f.tick()
		var err error
		c, err = f.svc.TransitionClaim(context.Background(), f.staffID, c.ID, a, "")
		require.NoError(t, err)
	}
	return c
}

func TestCancelClaim(t *testing.T) {
	tests := []struct {
		name    string
		path    []Action
		allowed bool
	}{
		{"from submitted", nil, true},
		{"from under review", []Action{ActionReview}, true},
		{"from approved", []Action{ActionReview, ActionApprove}, false},
		{"from rejected", []Action{ActionReview, ActionReject}, false},
		{"from paid", []Action{ActionReview, ActionApprove, ActionSettle}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p := f.activePolicy(t)

			c, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
			require.NoError(t, err)
			c = f.walk(t, c, tt.path...)
			before := testhelper.Count(t, f.db, "claim_updates", "claim_id = ?", c.ID)

			f.tick()
			cancelled, err := f.svc.CancelClaim(ctx, f.userID, c.ID)

			after := testhelper.Count(t, f.db, "claim_updates", "claim_id = ?", c.ID)
			if !tt.allowed {
				require.Error(t, err)
				assert.Equal(t, core.KindInvalidTransition, core.KindOf(err))
				assert.Equal(t, before, after)

				got, getErr := f.svc.GetClaim(ctx, f.userID, c.ID)
				require.NoError(t, getErr)
				assert.Equal(t, c.Status, got.Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, cancelled.Status)
			assert.Equal(t, before+1, after)
			assert.Equal(t, "Siniestro cancelado", cancelled.Updates[0].Title)
			assert.Equal(t, string(c.Status), cancelled.Updates[0].StatusBefore)
			assert.Equal(t, string(StatusCancelled), cancelled.Updates[0].StatusAfter)
			assert.Equal(t, f.userID, cancelled.Updates[0].ActorID)
		})
	}
}

func TestCancelClaimTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	c, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)

	_, err = f.svc.CancelClaim(ctx, f.userID, c.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelClaim(ctx, f.userID, c.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestClaimNotOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	c, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)

	stranger := testhelper.CreateUser(t, f.db, testhelper.RoleUser)

	_, err = f.svc.GetClaim(ctx, stranger, c.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.CancelClaim(ctx, stranger, c.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	claims, err := f.svc.ListClaims(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestClaimHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	c, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)
	f.walk(t, c, ActionReview, ActionApprove, ActionSettle)

	got, err := f.svc.GetClaim(ctx, f.userID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)

	titles := make([]string, 0, len(got.Updates))
	for _, u := range got.Updates {
		titles = append(titles, u.Title)
	}
	assert.Equal(t, []string{
		"Siniestro pagado",
		"Siniestro aprobado",
		"Siniestro en revisión",
		"Siniestro registrado",
	}, titles)
	assert.Equal(t, f.staffID, got.Updates[0].ActorID)
}

func TestClaimHistoryNewestFirstWithinOneInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	c, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)
	c, err = f.svc.TransitionClaim(ctx, f.staffID, c.ID, ActionReview, "")
	require.NoError(t, err)
	_, err = f.svc.CancelClaim(ctx, f.userID, c.ID)
	require.NoError(t, err)

	got, err := f.svc.GetClaim(ctx, f.userID, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Updates, 3)
	assert.True(t, got.Updates[0].CreatedAt.Equal(got.Updates[2].CreatedAt))

	after := make([]string, 0, len(got.Updates))
	for _, u := range got.Updates {
		after = append(after, u.StatusAfter)
	}
	assert.Equal(t, []string{
		string(StatusCancelled),
		string(StatusUnderReview),
		string(StatusSubmitted),
	}, after)
}

func TestTransitionClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	c, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)

	t.Run("cancel is not a staff action", func(t *testing.T) {
		_, err := f.svc.TransitionClaim(ctx, f.staffID, c.ID, ActionCancel, "")
		assert.Equal(t, core.KindValidation, core.KindOf(err))
	})

	t.Run("approve needs review first", func(t *testing.T) {
		_, err := f.svc.TransitionClaim(ctx, f.staffID, c.ID, ActionApprove, "")
		assert.ErrorIs(t, err, core.ErrInvalidTransition)
	})

	t.Run("unknown claim", func(t *testing.T) {
		_, err := f.svc.TransitionClaim(ctx, f.staffID, "00000000-0000-0000-0000-000000000000", ActionReview, "")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("note is recorded", func(t *testing.T) {
		f.tick()
		got, err := f.svc.TransitionClaim(ctx, f.staffID, c.ID, ActionReview, " adjuster assigned ")
		require.NoError(t, err)
		assert.Equal(t, StatusUnderReview, got.Status)
		assert.Equal(t, "adjuster assigned", got.Updates[0].Description)
	})
}

func TestListClaimsAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	first, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)
	f.tick()
	second, err := f.svc.SubmitClaim(ctx, f.userID, p.ID, validInput())
	require.NoError(t, err)
	_, err = f.svc.CancelClaim(ctx, f.userID, first.ID)
	require.NoError(t, err)

	claims, err := f.svc.ListClaims(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, second.ID, claims[0].ID)
	assert.Len(t, claims[0].Updates, 1)
	assert.Len(t, claims[1].Updates, 2)
	assert.Len(t, claims[1].Photos, 2)

	counts, err := f.svc.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[StatusSubmitted])
	assert.Equal(t, 1, counts[StatusCancelled])
}
