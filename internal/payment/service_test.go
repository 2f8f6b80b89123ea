// AngelaMos | 2026
// service_test.go

package payment

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
	now      *time.Time
}

func newFixture(t *testing.T, opts ...ident.Option) *fixture {
	t.Helper()

	db := testhelper.NewDB(t)
	now := testhelper.Date(2025, time.June, 15).Add(10 * time.Hour)
	f := &fixture{db: db, now: &now}
	clock := func() time.Time { return *f.now }

	txm := testhelper.NewTxManager(db)

	f.userID = testhelper.CreateUser(t, db, testhelper.RoleUser)
	f.policies = policy.NewService(
		policy.NewRepository(db.DB),
		txm,
		ident.New(),
		config.PolicyConfig{},
		testhelper.Logger(),
		policy.WithClock(clock),
	)
	f.svc = NewService(
		NewRepository(db.DB),
		f.policies,
		txm,
		ident.New(opts...),
		testhelper.Logger(),
		WithClock(clock),
	)
	return f
}

func (f *fixture) policyFor(t *testing.T, userID string) *policy.Policy {
	t.Helper()

	p, err := f.policies.CreatePolicy(context.Background(), userID, policy.CreatePolicyInput{
		Type:           policy.TypeAuto,
		StartDate:      testhelper.Date(2025, time.January, 1),
		EndDate:        testhelper.Date(2026, time.January, 1),
		Premium:        decimal.NewFromInt(300),
		CoverageAmount: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	return p
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.policyFor(t, f.userID)

	pay, created, err := f.svc.RecordPayment(ctx, f.userID, p.ID, RecordPaymentInput{
		Amount: amount("100"),
		Method: "credit_card",
	})
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, StatusCompleted, pay.Status)
	assert.Equal(t, MethodCreditCard, pay.PaymentMethod)
	assert.Regexp(t, regexp.MustCompile(`^TR-\d{6}-\d{4}$`), pay.TransactionID)
	assert.Equal(t, f.now.UTC(), pay.PaymentDate)

	payments, err := f.svc.ListPayments(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(amount("100")))
	assert.Equal(t, pay.TransactionID, payments[0].TransactionID)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	p := f.policyFor(t, f.userID)

	for _, a := range []string{"0", "-10"} {
		_, _, err := f.svc.RecordPayment(context.Background(), f.userID, p.ID, RecordPaymentInput{
			Amount: amount(a),
			Method: "cash",
		})
		require.Error(t, err)
		assert.Equal(t, core.KindValidation, core.KindOf(err))
	}

	_, _, err := f.svc.RecordPayment(context.Background(), f.userID, p.ID, RecordPaymentInput{
		Amount: amount("10"),
		Status: Status("settled"),
	})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	assert.Equal(t, 0, testhelper.Count(t, f.db, "payments", ""))
}

func TestRecordPaymentUnknownMethodDefaults(t *testing.T) {
	f := newFixture(t)
	p := f.policyFor(t, f.userID)

	pay, _, err := f.svc.RecordPayment(context.Background(), f.userID, p.ID, RecordPaymentInput{
		Amount: amount("50"),
		Method: "bitcoin",
	})
	require.NoError(t, err)
	assert.Equal(t, MethodCreditCard, pay.PaymentMethod)
}

func TestRecordPaymentPolicyNotOwned(t *testing.T) {
	f := newFixture(t)
	p := f.policyFor(t, f.userID)
	stranger := testhelper.CreateUser(t, f.db, testhelper.RoleUser)

	_, _, err := f.svc.RecordPayment(context.Background(), stranger, p.ID, RecordPaymentInput{
		Amount: amount("100"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordPaymentIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.policyFor(t, f.userID)

	in := RecordPaymentInput{
		Amount:        amount("100"),
		Method:        "paypal",
		TransactionID: "order-7781",
	}

	first, created, err := f.svc.RecordPayment(ctx, f.userID, p.ID, in)
	require.NoError(t, err)
	assert.True(t, created)

	in.Amount = amount("999")
	again, created, err := f.svc.RecordPayment(ctx, f.userID, p.ID, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Amount.Equal(amount("100")))

	assert.Equal(t, 1, testhelper.Count(t, f.db, "payments", "transaction_id = ?", "order-7781"))
}

func TestRecordPaymentTransactionIDOnOtherPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := testhelper.CreateUser(t, f.db, testhelper.RoleUser)
	theirs := f.policyFor(t, other)
	mine := f.policyFor(t, f.userID)

	_, _, err := f.svc.RecordPayment(ctx, other, theirs.ID, RecordPaymentInput{
		Amount:        amount("75"),
		TransactionID: "shared-key",
	})
	require.NoError(t, err)

	_, _, err = f.svc.RecordPayment(ctx, f.userID, mine.ID, RecordPaymentInput{
		Amount:        amount("75"),
		TransactionID: "shared-key",
	})
	require.Error(t, err)
	assert.Equal(t, core.KindConflict, core.KindOf(err))
	assert.Equal(t, 0, testhelper.Count(t, f.db, "payments", "policy_id = ?", mine.ID))
}

func TestRecordPaymentRegeneratesCollidingID(t *testing.T) {
	draws := []int64{1, 1, 2}
	f := newFixture(t,
		ident.WithClock(func() time.Time { return time.UnixMilli(1_700_000_123_456) }),
		ident.WithRandom(func(int64) (int64, error) {
			n := draws[0]
			if len(draws) > 1 {
				draws = draws[1:]
			}
			return n, nil
		}),
	)
	ctx := context.Background()
	p := f.policyFor(t, f.userID)

	first, _, err := f.svc.RecordPayment(ctx, f.userID, p.ID, RecordPaymentInput{Amount: amount("10")})
	require.NoError(t, err)
	second, created, err := f.svc.RecordPayment(ctx, f.userID, p.ID, RecordPaymentInput{Amount: amount("20")})
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, "TR-123456-0001", first.TransactionID)
	assert.Equal(t, "TR-123456-0002", second.TransactionID)
	assert.Equal(t, 2, testhelper.Count(t, f.db, "payments", ""))
}

func TestUpdatePaymentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.policyFor(t, f.userID)

	pay, _, err := f.svc.RecordPayment(ctx, f.userID, p.ID, RecordPaymentInput{Amount: amount("100")})
	require.NoError(t, err)

	t.Run("invalid status", func(t *testing.T) {
		_, err := f.svc.UpdatePaymentStatus(ctx, f.userID, pay.ID, Status("void"))
		assert.Equal(t, core.KindValidation, core.KindOf(err))
	})

	t.Run("not owned", func(t *testing.T) {
		stranger := testhelper.CreateUser(t, f.db, testhelper.RoleUser)
		_, err := f.svc.UpdatePaymentStatus(ctx, stranger, pay.ID, StatusRefunded)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("refund", func(t *testing.T) {
		*f.now = f.now.Add(time.Hour)
		got, err := f.svc.UpdatePaymentStatus(ctx, f.userID, pay.ID, StatusRefunded)
		require.NoError(t, err)
		assert.Equal(t, StatusRefunded, got.Status)
		assert.Equal(t, f.now.UTC(), got.UpdatedAt)

		payments, err := f.svc.ListPayments(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, StatusRefunded, payments[0].Status)
	})
}

func TestListPaymentsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.policyFor(t, f.userID)

	for _, d := range []int{3, 20, 11} {
		_, _, err := f.svc.RecordPayment(ctx, f.userID, p.ID, RecordPaymentInput{
			Amount:      amount("10"),
			PaymentDate: testhelper.Date(2025, time.May, d),
		})
		require.NoError(t, err)
	}

	payments, err := f.svc.ListPayments(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, 20, payments[0].PaymentDate.Day())
	assert.Equal(t, 11, payments[1].PaymentDate.Day())
	assert.Equal(t, 3, payments[2].PaymentDate.Day())
}

func TestPolicyBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.policyFor(t, f.userID)

	record := func(a string, status Status) {
		_, _, err := f.svc.RecordPayment(ctx, f.userID, p.ID, RecordPaymentInput{
			Amount: amount(a),
			Status: status,
		})
		require.NoError(t, err)
	}

	record("100", StatusCompleted)
	record("50.25", StatusCompleted)
	record("40", StatusPending)
	record("30", StatusRefunded)
	record("20", StatusFailed)

	b, err := f.svc.PolicyBalance(ctx, f.userID, p.ID)
	require.NoError(t, err)
	assert.True(t, b.Paid.Equal(amount("150.25")), b.Paid.String())
	assert.True(t, b.Pending.Equal(amount("40")))
	assert.True(t, b.Refunded.Equal(amount("30")))
	assert.True(t, b.Outstanding.Equal(amount("149.75")), b.Outstanding.String())
	assert.False(t, b.Settled)

	record("149.75", StatusCompleted)
	b, err = f.svc.PolicyBalance(ctx, f.userID, p.ID)
	require.NoError(t, err)
	assert.True(t, b.Outstanding.IsZero())
	assert.True(t, b.Settled)

	stranger := testhelper.CreateUser(t, f.db, testhelper.RoleUser)
	_, err = f.svc.PolicyBalance(ctx, stranger, p.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
