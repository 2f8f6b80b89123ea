// AngelaMos | 2026
// dto.go

package policy

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

const dateLayout = "2006-01-02"

type CreatePolicyInput struct {
	Type           Type
	StartDate      time.Time
	EndDate        time.Time
	Premium        decimal.Decimal
	CoverageAmount decimal.Decimal
	Details        Details
	Beneficiaries  []BeneficiaryInput
}

type BeneficiaryInput struct {
	Name         string
	Relationship Relationship
	Percentage   int
}

// UpdatePolicyInput is a sparse patch; nil fields are left untouched.
type UpdatePolicyInput struct {
	StartDate      *time.Time
	EndDate        *time.Time
	Premium        *decimal.Decimal
	CoverageAmount *decimal.Decimal
	Details        Details
}

func (in UpdatePolicyInput) IsEmpty() bool {
	return in.StartDate == nil &&
		in.EndDate == nil &&
		in.Premium == nil &&
		in.CoverageAmount == nil &&
		in.Details == nil
}

type CreatePolicyRequest struct {
	Type           string               `json:"type"            validate:"required,oneof=auto home life health travel business"`
	StartDate      string               `json:"start_date"      validate:"required,datetime=2006-01-02"`
	EndDate        string               `json:"end_date"        validate:"required,datetime=2006-01-02"`
	Premium        decimal.Decimal      `json:"premium"`
	CoverageAmount decimal.Decimal      `json:"coverage_amount"`
	Details        json.RawMessage      `json:"details,omitempty"`
	Beneficiaries  []BeneficiaryRequest `json:"beneficiaries,omitempty" validate:"omitempty,dive"`
}

type BeneficiaryRequest struct {
	Name         string `json:"name"         validate:"required,max=100"`
	Relationship string `json:"relationship" validate:"required"`
	Percentage   int    `json:"percentage"`
}

func (r CreatePolicyRequest) ToInput() (CreatePolicyInput, []core.FieldError) {
	var fields []core.FieldError

	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "start_date", Message: "must be YYYY-MM-DD"})
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "end_date", Message: "must be YYYY-MM-DD"})
	}

	details, ok := decodeDetails(r.Details)
	if !ok {
		fields = append(fields, core.FieldError{Field: "details", Message: "must be a JSON object"})
	}

	in := CreatePolicyInput{
		Type:           Type(r.Type),
		StartDate:      start,
		EndDate:        end,
		Premium:        r.Premium,
		CoverageAmount: r.CoverageAmount,
		Details:        details,
	}
	for _, b := range r.Beneficiaries {
		in.Beneficiaries = append(in.Beneficiaries, BeneficiaryInput{
			Name:         b.Name,
			Relationship: Relationship(b.Relationship),
			Percentage:   b.Percentage,
		})
	}

	return in, fields
}

type UpdatePolicyRequest struct {
	StartDate      *string          `json:"start_date,omitempty"      validate:"omitempty,datetime=2006-01-02"`
	EndDate        *string          `json:"end_date,omitempty"        validate:"omitempty,datetime=2006-01-02"`
	Premium        *decimal.Decimal `json:"premium,omitempty"`
	CoverageAmount *decimal.Decimal `json:"coverage_amount,omitempty"`
	Details        json.RawMessage  `json:"details,omitempty"`
}

func (r UpdatePolicyRequest) ToInput() (UpdatePolicyInput, []core.FieldError) {
	var (
		in     UpdatePolicyInput
		fields []core.FieldError
	)

	if r.StartDate != nil {
		t, err := time.Parse(dateLayout, *r.StartDate)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "start_date", Message: "must be YYYY-MM-DD"})
		}
		in.StartDate = &t
	}
	if r.EndDate != nil {
		t, err := time.Parse(dateLayout, *r.EndDate)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "end_date", Message: "must be YYYY-MM-DD"})
		}
		in.EndDate = &t
	}

	in.Premium = r.Premium
	in.CoverageAmount = r.CoverageAmount

	details, ok := decodeDetails(r.Details)
	if !ok {
		fields = append(fields, core.FieldError{Field: "details", Message: "must be a JSON object"})
	}
	in.Details = details

	return in, fields
}

// decodeDetails accepts an absent value, JSON null or a JSON object.
func decodeDetails(raw json.RawMessage) (Details, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, true
	}
	if trimmed[0] != '{' {
		return nil, false
	}

	var d Details
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return nil, false
	}
	return d, true
}

type BeneficiaryResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Percentage   int    `json:"percentage"`
}

type PolicyResponse struct {
	ID             string                `json:"id"`
	PolicyNumber   string                `json:"policy_number"`
	Type           string                `json:"type"`
	StartDate      string                `json:"start_date"`
	EndDate        string                `json:"end_date"`
	Premium        decimal.Decimal       `json:"premium"`
	CoverageAmount decimal.Decimal       `json:"coverage_amount"`
	Status         string                `json:"status"`
	Details        Details               `json:"details,omitempty"`
	Beneficiaries  []BeneficiaryResponse `json:"beneficiaries,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func ToPolicyResponse(p *Policy) PolicyResponse {
	resp := PolicyResponse{
		ID:             p.ID,
		PolicyNumber:   p.PolicyNumber,
		Type:           string(p.Type),
		StartDate:      p.StartDate.Format(dateLayout),
		EndDate:        p.EndDate.Format(dateLayout),
		Premium:        p.Premium,
		CoverageAmount: p.CoverageAmount,
		Status:         string(p.Status),
		Details:        p.Details,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	for _, b := range p.Beneficiaries {
		resp.Beneficiaries = append(resp.Beneficiaries, BeneficiaryResponse{
			ID:           b.ID,
			Name:         b.Name,
			Relationship: string(b.Relationship),
			Percentage:   b.Percentage,
		})
	}

	return resp
}

func ToPolicyResponseList(policies []Policy) []PolicyResponse {
	responses := make([]PolicyResponse, 0, len(policies))
	for i := range policies {
		responses = append(responses, ToPolicyResponse(&policies[i]))
	}
	return responses
}

type ReconcileResponse struct {
	Updated int `json:"updated"`
}
