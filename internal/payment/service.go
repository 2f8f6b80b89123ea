// AngelaMos | 2026
// service.go

package payment

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/ident"
	"github.com/carterperez-dev/insurance-backend/internal/policy"
)

// PolicyReader loads a policy owned by the caller.
type PolicyReader interface {
	GetPolicy(ctx context.Context, userID, policyID string) (*policy.Policy, error)
}

type Service struct {
	repo     Repository
	policies PolicyReader
	txm      *core.TxManager
	ids      *ident.Generator
	now      func() time.Time
	logger   *slog.Logger
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	repo Repository,
	policies PolicyReader,
	txm *core.TxManager,
	ids *ident.Generator,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:     repo,
		policies: policies,
		txm:      txm,
		ids:      ids,
		now:      time.Now,
		logger:   logger.With("service", "payment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPayment writes a payment against the caller's policy. The
// transaction id is the idempotency key: replaying a known id for the
// same policy returns the stored payment with created set to false.
func (s *Service) RecordPayment(
	ctx context.Context,
	userID, policyID string,
	in RecordPaymentInput,
) (_ *Payment, created bool, err error) {
	ctx, span := core.StartSpan(ctx, "payment.RecordPayment",
		attribute.String("policy.id", policyID))
	defer func() { core.EndSpan(span, err) }()

	p, err := s.policies.GetPolicy(ctx, userID, policyID)
	if err != nil {
		return nil, false, core.LookupError("policy", "record payment", err)
	}

	if fields := validateRecord(in); len(fields) > 0 {
		return nil, false, core.ValidationError(fields...)
	}

	method, known := NormalizeMethod(in.Method)
	if !known {
		s.logger.WarnContext(ctx, "unrecognized payment method, defaulting",
			"method", in.Method,
			"default", method,
			"policy_id", p.ID,
		)
	}

	status := in.Status
	if status == "" {
		status = StatusCompleted
	}

	now := s.now().UTC()
	paidAt := in.PaymentDate
	if paidAt.IsZero() {
		paidAt = now
	}

	pay := &Payment{
		ID:            uuid.NewString(),
		PolicyID:      p.ID,
		Amount:        in.Amount.Round(2),
		PaymentDate:   paidAt.UTC(),
		PaymentMethod: method,
		TransactionID: strings.TrimSpace(in.TransactionID),
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var replayed *Payment
	err = s.txm.InTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		if pay.TransactionID == "" {
			id, allocErr := ident.Allocate(s.ids.TransactionID, func(id string) (bool, error) {
				pay.TransactionID = id
				return repo.Insert(ctx, pay)
			})
			pay.TransactionID = id
			return allocErr
		}

		inserted, insErr := repo.Insert(ctx, pay)
		if insErr != nil || inserted {
			return insErr
		}

		existing, getErr := repo.GetByTransactionID(ctx, pay.TransactionID)
		if getErr != nil {
			return getErr
		}
		if existing.PolicyID != p.ID {
			return core.ConflictError("transaction id already used")
		}
		replayed = existing
		return nil
	})
	if err != nil {
		return nil, false, core.StoreError("record payment", err)
	}

	if replayed != nil {
		s.logger.InfoContext(ctx, "payment replayed",
			"payment_id", replayed.ID,
			"transaction_id", replayed.TransactionID,
		)
		return replayed, false, nil
	}

	core.RecordLifecycle("payment", string(pay.Status))
	s.logger.InfoContext(ctx, "payment recorded",
		"payment_id", pay.ID,
		"transaction_id", pay.TransactionID,
		"policy_id", p.ID,
		"amount", pay.Amount.StringFixed(2),
		"method", pay.PaymentMethod,
		"status", pay.Status,
	)

	return pay, true, nil
}

func (s *Service) UpdatePaymentStatus(
	ctx context.Context,
	userID, paymentID string,
	status Status,
) (_ *Payment, err error) {
	ctx, span := core.StartSpan(ctx, "payment.UpdatePaymentStatus",
		attribute.String("payment.status", string(status)))
	defer func() { core.EndSpan(span, err) }()

	if !status.Valid() {
		return nil, core.ValidationError(core.FieldError{
			Field:   "status",
			Message: "must be one of pending, completed, failed, refunded",
		})
	}

	pay, err := s.repo.GetOwned(ctx, userID, paymentID)
	if err != nil {
		return nil, core.LookupError("payment", "update payment status", err)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, pay.ID, status, now); err != nil {
		return nil, core.LookupError("payment", "update payment status", err)
	}

	from := pay.Status
	pay.Status = status
	pay.UpdatedAt = now

	core.RecordLifecycle("payment", string(status))
	s.logger.InfoContext(ctx, "payment status updated",
		"payment_id", pay.ID,
		"from", from,
		"to", status,
	)

	return pay, nil
}

func (s *Service) ListPayments(
	ctx context.Context,
	userID string,
) ([]Payment, error) {
	payments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, core.StoreError("list payments", err)
	}
	return payments, nil
}

// PolicyBalance totals the payments of a policy against its premium.
// Only completed payments count toward what has been paid.
func (s *Service) PolicyBalance(
	ctx context.Context,
	userID, policyID string,
) (*Balance, error) {
	p, err := s.policies.GetPolicy(ctx, userID, policyID)
	if err != nil {
		return nil, core.LookupError("policy", "policy balance", err)
	}

	payments, err := s.repo.ListByPolicy(ctx, p.ID)
	if err != nil {
		return nil, core.StoreError("policy balance", err)
	}

	b := &Balance{
		PolicyID: p.ID,
		Premium:  p.Premium,
		Paid:     decimal.Zero,
		Pending:  decimal.Zero,
		Refunded: decimal.Zero,
	}
	for _, pay := range payments {
		switch pay.Status {
		case StatusCompleted:
			b.Paid = b.Paid.Add(pay.Amount)
		case StatusPending:
			b.Pending = b.Pending.Add(pay.Amount)
		case StatusRefunded:
			b.Refunded = b.Refunded.Add(pay.Amount)
		case StatusFailed:
		}
	}

	b.Outstanding = decimal.Max(b.Premium.Sub(b.Paid), decimal.Zero)
	b.Settled = b.Outstanding.IsZero()

	return b, nil
}

func validateRecord(in RecordPaymentInput) []core.FieldError {
	var fields []core.FieldError

	if !in.Amount.IsPositive() {
		fields = append(fields, core.FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if in.Status != "" && !in.Status.Valid() {
		fields = append(fields, core.FieldError{
			Field:   "status",
			Message: "must be one of pending, completed, failed, refunded",
		})
	}

	return fields
}
