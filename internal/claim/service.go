// AngelaMos | 2026
// service.go

package claim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/insurance-backend/internal/core"
	"github.com/carterperez-dev/insurance-backend/internal/ident"
	"github.com/carterperez-dev/insurance-backend/internal/policy"
)

// PolicyReader loads a caller's policy with its effective status.
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
		logger:   logger.With("service", "claim"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitClaim files a claim against an active policy owned by userID. The
// claim, its first audit entry and its photos are written together.
func (s *Service) SubmitClaim(
	ctx context.Context,
	userID, policyID string,
	in SubmitClaimInput,
) (_ *Claim, err error) {
	ctx, span := core.StartSpan(ctx, "claim.SubmitClaim",
		attribute.String("policy.id", policyID))
	defer func() { core.EndSpan(span, err) }()

	p, err := s.policies.GetPolicy(ctx, userID, policyID)
	if err != nil {
		return nil, core.LookupError("policy", "submit claim", err)
	}

	if p.Status != policy.StatusActive {
		return nil, core.PolicyNotEligibleError(string(p.Status))
	}

	now := s.now().UTC()
	if fields := validateSubmit(in, now); len(fields) > 0 {
		return nil, core.ValidationError(fields...)
	}

	c := &Claim{
		ID:              uuid.NewString(),
		PolicyID:        p.ID,
		UserID:          userID,
		IncidentType:    strings.TrimSpace(in.IncidentType),
		IncidentDate:    policy.DateOf(in.IncidentDate),
		Location:        strings.TrimSpace(in.Location),
		Description:     strings.TrimSpace(in.Description),
		EstimatedAmount: in.EstimatedAmount.Round(2),
		ContactPhone:    optional(in.ContactPhone),
		AdditionalInfo:  optional(in.AdditionalInfo),
		Status:          StatusSubmitted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	first := Update{
		ID:          uuid.NewString(),
		ClaimID:     c.ID,
		Title:       submittedTitle,
		StatusAfter: string(StatusSubmitted),
		ActorID:     userID,
		CreatedAt:   now,
	}

	photos := make([]Photo, 0, len(in.Photos))
	for _, ph := range in.Photos {
		photos = append(photos, Photo{
			ID:        uuid.NewString(),
			ClaimID:   c.ID,
			URL:       strings.TrimSpace(ph.URL),
			Caption:   strings.TrimSpace(ph.Caption),
			CreatedAt: now,
		})
	}

	err = s.txm.InTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		number, allocErr := ident.Allocate(s.ids.ClaimNumber, func(n string) (bool, error) {
			c.ClaimNumber = n
			return repo.Insert(ctx, c)
		})
		if allocErr != nil {
			return allocErr
		}
		c.ClaimNumber = number

		if err := repo.InsertUpdate(ctx, &first); err != nil {
			return err
		}
		return repo.InsertPhotos(ctx, photos)
	})
	if err != nil {
		return nil, core.StoreError("submit claim", err)
	}

	c.Updates = []Update{first}
	c.Photos = photos

	core.RecordLifecycle("claim", string(c.Status))
	s.logger.InfoContext(ctx, "claim submitted",
		"claim_id", c.ID,
		"claim_number", c.ClaimNumber,
		"policy_id", p.ID,
		"user_id", userID,
	)

	return c, nil
}

// CancelClaim withdraws a claim on behalf of its owner.
func (s *Service) CancelClaim(
	ctx context.Context,
	userID, claimID string,
) (_ *Claim, err error) {
	ctx, span := core.StartSpan(ctx, "claim.CancelClaim")
	defer func() { core.EndSpan(span, err) }()

	c, err := s.repo.GetOwned(ctx, userID, claimID)
	if err != nil {
		return nil, core.LookupError("claim", "cancel claim", err)
	}

	if err := s.apply(ctx, c, userID, ActionCancel, ""); err != nil {
		return nil, err
	}

	return s.load(ctx, c)
}

// TransitionClaim moves a claim along one of the staff edges of the
// lifecycle and records who did it.
func (s *Service) TransitionClaim(
	ctx context.Context,
	actorID, claimID string,
	action Action,
	note string,
) (_ *Claim, err error) {
	ctx, span := core.StartSpan(ctx, "claim.TransitionClaim",
		attribute.String("claim.action", string(action)))
	defer func() { core.EndSpan(span, err) }()

	if !IsStaffAction(action) {
		return nil, core.ValidationError(core.FieldError{
			Field:   "action",
			Message: "must be one of review, approve, reject, settle",
		})
	}

	c, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, core.LookupError("claim", "transition claim", err)
	}

	if err := s.apply(ctx, c, actorID, action, strings.TrimSpace(note)); err != nil {
		return nil, err
	}

	return s.load(ctx, c)
}

// apply writes the status change and its audit entry in one transaction.
// The write only lands while the claim still holds the status that was
// read; otherwise the transition is judged against the fresh status.
func (s *Service) apply(
	ctx context.Context,
	c *Claim,
	actorID string,
	action Action,
	note string,
) error {
	to, err := Next(c.Status, action)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	entry := Update{
		ID:           uuid.NewString(),
		ClaimID:      c.ID,
		Title:        actionTitles[action],
		Description:  note,
		StatusBefore: string(c.Status),
		StatusAfter:  string(to),
		ActorID:      actorID,
		CreatedAt:    now,
	}

	err = s.txm.InTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		changed, casErr := repo.CompareAndSetStatus(ctx, c.ID, c.Status, to, now)
		if casErr != nil {
			return casErr
		}
		if !changed {
			latest, getErr := repo.GetByID(ctx, c.ID)
			if getErr != nil {
				return getErr
			}
			return core.InvalidTransitionError(string(latest.Status), string(action))
		}

		return repo.InsertUpdate(ctx, &entry)
	})
	if err != nil {
		return core.LookupError("claim", string(action)+" claim", err)
	}

	from := c.Status
	c.Status = to
	c.UpdatedAt = now

	core.RecordLifecycle("claim", string(to))
	s.logger.InfoContext(ctx, "claim transitioned",
		"claim_id", c.ID,
		"action", action,
		"from", from,
		"to", to,
		"actor_id", actorID,
	)

	return nil
}

func (s *Service) ListClaims(
	ctx context.Context,
	userID string,
) ([]Claim, error) {
	claims, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, core.StoreError("list claims", err)
	}

	if err := s.attach(ctx, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// GetClaim returns the caller's claim with its history newest first.
func (s *Service) GetClaim(
	ctx context.Context,
	userID, claimID string,
) (*Claim, error) {
	c, err := s.repo.GetOwned(ctx, userID, claimID)
	if err != nil {
		return nil, core.LookupError("claim", "get claim", err)
	}

	return s.load(ctx, c)
}

func (s *Service) StatusCounts(ctx context.Context) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, core.StoreError("count claims", err)
	}
	return counts, nil
}

func (s *Service) load(ctx context.Context, c *Claim) (*Claim, error) {
	one := []Claim{*c}
	if err := s.attach(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (s *Service) attach(ctx context.Context, claims []Claim) error {
	if len(claims) == 0 {
		return nil
	}

	ids := make([]string, 0, len(claims))
	index := make(map[string]int, len(claims))
	for i := range claims {
		ids = append(ids, claims[i].ID)
		index[claims[i].ID] = i
		claims[i].Updates = []Update{}
		claims[i].Photos = []Photo{}
	}

	updates, err := s.repo.ListUpdates(ctx, ids)
	if err != nil {
		return core.StoreError("load claim history", err)
	}
	for _, u := range updates {
		i := index[u.ClaimID]
		claims[i].Updates = append(claims[i].Updates, u)
	}

	photos, err := s.repo.ListPhotos(ctx, ids)
	if err != nil {
		return core.StoreError("load claim photos", err)
	}
	for _, p := range photos {
		i := index[p.ClaimID]
		claims[i].Photos = append(claims[i].Photos, p)
	}

	return nil
}

func validateSubmit(in SubmitClaimInput, now time.Time) []core.FieldError {
	var fields []core.FieldError

	required := []struct{ field, value string }{
		{"incident_type", in.IncidentType},
		{"location", in.Location},
		{"description", in.Description},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields = append(fields, core.FieldError{Field: r.field, Message: "is required"})
		}
	}

	switch {
	case in.IncidentDate.IsZero():
		fields = append(fields, core.FieldError{Field: "incident_date", Message: "is required"})
	case policy.DateOf(in.IncidentDate).After(policy.DateOf(now)):
		fields = append(fields, core.FieldError{
			Field:   "incident_date",
			Message: "cannot be in the future",
		})
	}

	if !in.EstimatedAmount.IsPositive() {
		fields = append(fields, core.FieldError{
			Field:   "estimated_amount",
			Message: "must be greater than 0",
		})
	}

	for i, p := range in.Photos {
		if strings.TrimSpace(p.URL) == "" {
			fields = append(fields, core.FieldError{
				Field:   fmt.Sprintf("photos[%d].url", i),
				Message: "is required",
			})
		}
	}

	return fields
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
