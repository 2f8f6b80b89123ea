// AngelaMos | 2026
// service.go

package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/ident"
)

type Service struct {
	repo       Repository
	txm        *core.TxManager
	ids        *ident.Generator
	cancelMode string
	now        func() time.Time
	logger     *slog.Logger
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
	ids *ident.Generator,
	cfg config.PolicyConfig,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	mode := cfg.CancelMode
	if mode == "" {
		mode = config.CancelModeStatus
	}

	s := &Service{
		repo:       repo,
		txm:        txm,
		ids:        ids,
		cancelMode: mode,
		now:        time.Now,
		logger:     logger.With("service", "policy"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreatePolicy(
	ctx context.Context,
	userID string,
	in CreatePolicyInput,
) (_ *Policy, err error) {
	ctx, span := core.StartSpan(ctx, "policy.CreatePolicy",
		attribute.String("policy.type", string(in.Type)))
	defer func() { core.EndSpan(span, err) }()

	if fields := validateCreate(in); len(fields) > 0 {
		return nil, core.ValidationError(fields...)
	}

	now := s.now().UTC()
	start, end := DateOf(in.StartDate), DateOf(in.EndDate)

	p := &Policy{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           in.Type,
		StartDate:      start,
		EndDate:        end,
		Premium:        in.Premium.Round(2),
		CoverageAmount: in.CoverageAmount.Round(2),
		Status:         ComputeStatus(start, end, now),
		Details:        in.Details,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	beneficiaries := make([]Beneficiary, 0, len(in.Beneficiaries))
	for _, b := range in.Beneficiaries {
		beneficiaries = append(beneficiaries, Beneficiary{
			ID:           uuid.NewString(),
			PolicyID:     p.ID,
			Name:         strings.TrimSpace(b.Name),
			Relationship: b.Relationship,
			Percentage:   b.Percentage,
			CreatedAt:    now,
		})
	}

	err = s.txm.InTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		number, allocErr := ident.Allocate(s.ids.PolicyNumber, func(n string) (bool, error) {
			p.PolicyNumber = n
			return repo.Insert(ctx, p)
		})
		if allocErr != nil {
			return allocErr
		}
		p.PolicyNumber = number

		return repo.InsertBeneficiaries(ctx, beneficiaries)
	})
	if err != nil {
		return nil, core.LookupError("user", "create policy", err)
	}

	p.Beneficiaries = beneficiaries

	core.RecordLifecycle("policy", string(p.Status))
	s.logger.InfoContext(ctx, "policy created",
		"policy_id", p.ID,
		"policy_number", p.PolicyNumber,
		"user_id", userID,
		"type", p.Type,
		"status", p.Status,
	)

	return p, nil
}

func (s *Service) UpdatePolicy(
	ctx context.Context,
	userID, policyID string,
	in UpdatePolicyInput,
) (_ *Policy, err error) {
	ctx, span := core.StartSpan(ctx, "policy.UpdatePolicy")
	defer func() { core.EndSpan(span, err) }()

	current, err := s.repo.GetOwned(ctx, userID, policyID)
	if err != nil {
		return nil, core.LookupError("policy", "update policy", err)
	}

	if in.IsEmpty() {
		return nil, core.NoOpError("no fields to update")
	}

	if current.IsCancelled() {
		return nil, core.InvalidTransitionError(string(StatusCancelled), "update")
	}

	if fields := validateUpdate(current, in); len(fields) > 0 {
		return nil, core.ValidationError(fields...)
	}

	set := map[string]any{"updated_at": s.now().UTC()}
	if in.StartDate != nil {
		set["start_date"] = DateOf(*in.StartDate)
	}
	if in.EndDate != nil {
		set["end_date"] = DateOf(*in.EndDate)
	}
	if in.Premium != nil {
		set["premium"] = in.Premium.Round(2)
	}
	if in.CoverageAmount != nil {
		set["coverage_amount"] = in.CoverageAmount.Round(2)
	}
	if in.Details != nil {
		set["details"] = in.Details
	}

	if err := s.repo.Update(ctx, userID, policyID, set); err != nil {
		return nil, core.LookupError("policy", "update policy", err)
	}

	return s.GetPolicy(ctx, userID, policyID)
}

// CancelPolicy ends a policy. In status mode the row is kept and moved to
// the terminal cancelled state; in delete mode the policy and everything
// hanging off it is removed and the last stored snapshot is returned.
func (s *Service) CancelPolicy(
	ctx context.Context,
	userID, policyID string,
) (_ *Policy, err error) {
	ctx, span := core.StartSpan(ctx, "policy.CancelPolicy",
		attribute.String("policy.cancel_mode", s.cancelMode))
	defer func() { core.EndSpan(span, err) }()

	p, err := s.repo.GetOwned(ctx, userID, policyID)
	if err != nil {
		return nil, core.LookupError("policy", "cancel policy", err)
	}

	if s.cancelMode == config.CancelModeDelete {
		if err := s.deleteTree(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	now := s.now().UTC()
	effective := StatusAt(p, now)
	if effective == StatusCancelled || effective == StatusExpired {
		return nil, core.InvalidTransitionError(string(effective), "cancel")
	}

	changed, err := s.repo.CompareAndSetStatus(ctx, p.ID, p.Status, StatusCancelled, now.UTC())
	if err != nil {
		return nil, core.StoreError("cancel policy", err)
	}
	if !changed {
		latest, getErr := s.repo.GetOwned(ctx, userID, policyID)
		if getErr != nil {
			return nil, core.LookupError("policy", "cancel policy", getErr)
		}
		return nil, core.InvalidTransitionError(string(StatusAt(latest, now)), "cancel")
	}

	core.RecordLifecycle("policy", string(StatusCancelled))
	s.logger.InfoContext(ctx, "policy cancelled",
		"policy_id", p.ID,
		"user_id", userID,
		"from", effective,
	)

	return s.GetPolicy(ctx, userID, policyID)
}

// DeletePolicy removes the policy together with its claims, claim
// history, photos, payments and beneficiaries in one transaction.
func (s *Service) DeletePolicy(
	ctx context.Context,
	userID, policyID string,
) (err error) {
	ctx, span := core.StartSpan(ctx, "policy.DeletePolicy")
	defer func() { core.EndSpan(span, err) }()

	p, err := s.repo.GetOwned(ctx, userID, policyID)
	if err != nil {
		return core.LookupError("policy", "delete policy", err)
	}

	return s.deleteTree(ctx, p)
}

func (s *Service) deleteTree(ctx context.Context, p *Policy) error {
	var counts core.DeletionCounts

	err := s.txm.InTx(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		counts, txErr = s.repo.WithTx(tx).DeleteTree(ctx, p.ID)
		return txErr
	})
	if err != nil {
		return core.LookupError("policy", "delete policy", err)
	}

	s.logger.InfoContext(ctx, "policy deleted",
		"policy_id", p.ID,
		"user_id", p.UserID,
		"claims", counts["claims"],
		"payments", counts["payments"],
		"beneficiaries", counts["beneficiaries"],
	)

	return nil
}

func (s *Service) ListPolicies(
	ctx context.Context,
	userID string,
) ([]Policy, error) {
	policies, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, core.StoreError("list policies", err)
	}

	now := s.now().UTC()
	for i := range policies {
		policies[i].Status = StatusAt(&policies[i], now)
	}

	return policies, nil
}

// GetPolicy returns the caller's policy with its beneficiaries and the
// status effective right now.
func (s *Service) GetPolicy(
	ctx context.Context,
	userID, policyID string,
) (*Policy, error) {
	p, err := s.repo.GetOwned(ctx, userID, policyID)
	if err != nil {
		return nil, core.LookupError("policy", "get policy", err)
	}

	beneficiaries, err := s.repo.ListBeneficiaries(ctx, p.ID)
	if err != nil {
		return nil, core.StoreError("get policy", err)
	}

	p.Beneficiaries = beneficiaries
	p.Status = StatusAt(p, s.now().UTC())

	return p, nil
}

// ReconcileAllStatuses persists the date-derived status of every
// non-cancelled policy whose stored status has drifted. Each write only
// lands while the row still holds the status that was read, so a
// concurrent cancellation always wins.
func (s *Service) ReconcileAllStatuses(
	ctx context.Context,
	now time.Time,
) (_ int, err error) {
	ctx, span := core.StartSpan(ctx, "policy.ReconcileAllStatuses")
	defer func() { core.EndSpan(span, err) }()

	rows, err := s.repo.ListReconcilable(ctx)
	if err != nil {
		return 0, core.StoreError("reconcile policies", err)
	}

	updated := 0
	for _, row := range rows {
		want := ComputeStatus(row.StartDate, row.EndDate, now)
		if want == row.Status {
			continue
		}

		changed, err := s.repo.CompareAndSetStatus(ctx, row.ID, row.Status, want, now.UTC())
		if err != nil {
			return updated, core.StoreError("reconcile policies", err)
		}
		if changed {
			updated++
			core.RecordLifecycle("policy", string(want))
		}
	}

	span.SetAttributes(attribute.Int("policy.reconciled", updated))
	return updated, nil
}

func (s *Service) StatusCounts(ctx context.Context) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, core.StoreError("count policies", err)
	}
	return counts, nil
}

func validateCreate(in CreatePolicyInput) []core.FieldError {
	var fields []core.FieldError

	if !in.Type.Valid() {
		fields = append(fields, core.FieldError{
			Field:   "type",
			Message: fmt.Sprintf("unknown policy type %q", in.Type),
		})
	}

	fields = append(fields, validateDates(in.StartDate, in.EndDate)...)
	fields = append(fields, validateAmount("premium", in.Premium)...)
	fields = append(fields, validateAmount("coverage_amount", in.CoverageAmount)...)
	fields = append(fields, validateBeneficiaries(in.Type, in.Beneficiaries)...)

	return fields
}

func validateUpdate(current *Policy, in UpdatePolicyInput) []core.FieldError {
	var fields []core.FieldError

	if in.StartDate != nil || in.EndDate != nil {
		start, end := current.StartDate, current.EndDate
		if in.StartDate != nil {
			start = *in.StartDate
		}
		if in.EndDate != nil {
			end = *in.EndDate
		}
		fields = append(fields, validateDates(start, end)...)
	}
	if in.Premium != nil {
		fields = append(fields, validateAmount("premium", *in.Premium)...)
	}
	if in.CoverageAmount != nil {
		fields = append(fields, validateAmount("coverage_amount", *in.CoverageAmount)...)
	}

	return fields
}

func validateDates(start, end time.Time) []core.FieldError {
	var fields []core.FieldError

	if start.IsZero() {
		fields = append(fields, core.FieldError{Field: "start_date", Message: "is required"})
	}
	if end.IsZero() {
		fields = append(fields, core.FieldError{Field: "end_date", Message: "is required"})
	}
	if len(fields) == 0 && !DateOf(end).After(DateOf(start)) {
		fields = append(fields, core.FieldError{
			Field:   "end_date",
			Message: "must be after start_date",
		})
	}

	return fields
}

func validateAmount(field string, v decimal.Decimal) []core.FieldError {
	if !v.IsPositive() {
		return []core.FieldError{{Field: field, Message: "must be greater than 0"}}
	}
	return nil
}

func validateBeneficiaries(t Type, bs []BeneficiaryInput) []core.FieldError {
	if t != TypeLife {
		if len(bs) > 0 {
			return []core.FieldError{{
				Field:   "beneficiaries",
				Message: "only life policies carry beneficiaries",
			}}
		}
		return nil
	}

	if len(bs) == 0 {
		return []core.FieldError{{
			Field:   "beneficiaries",
			Message: "life policies require at least one beneficiary",
		}}
	}

	var fields []core.FieldError
	total := 0
	for i, b := range bs {
		prefix := fmt.Sprintf("beneficiaries[%d].", i)

		if strings.TrimSpace(b.Name) == "" {
			fields = append(fields, core.FieldError{Field: prefix + "name", Message: "is required"})
		}
		if !b.Relationship.Valid() {
			fields = append(fields, core.FieldError{
				Field:   prefix + "relationship",
				Message: fmt.Sprintf("unknown relationship %q", b.Relationship),
			})
		}
		if b.Percentage < 1 || b.Percentage > 100 {
			fields = append(fields, core.FieldError{
				Field:   prefix + "percentage",
				Message: "must be between 1 and 100",
			})
		}
		total += b.Percentage
	}

	if total != 100 {
		fields = append(fields, core.FieldError{
			Field:   "beneficiaries",
			Message: fmt.Sprintf("percentages must sum to 100, got %d", total),
		})
	}

	return fields
}
