// AngelaMos | 2026
// dto.go

package claim

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

const dateLayout = "2006-01-02"

type SubmitClaimInput struct {
	IncidentType    string
	IncidentDate    time.Time
	Location        string
	Description     string
	EstimatedAmount decimal.Decimal
	ContactPhone    string
	AdditionalInfo  string
	Photos          []PhotoInput
}

type PhotoInput struct {
	URL     string
	Caption string
}

type SubmitClaimRequest struct {
	PolicyID        string          `json:"policy_id"        validate:"required,uuid"`
	IncidentType    string          `json:"incident_type"    validate:"required,max=50"`
	IncidentDate    string          `json:"incident_date"    validate:"required,datetime=2006-01-02"`
	Location        string          `json:"location"         validate:"required,max=500"`
	Description     string          `json:"description"      validate:"required,max=5000"`
	EstimatedAmount decimal.Decimal `json:"estimated_amount"`
	ContactPhone    string          `json:"contact_phone,omitempty"   validate:"omitempty,max=30"`
	AdditionalInfo  string          `json:"additional_info,omitempty" validate:"omitempty,max=5000"`
	Photos          []PhotoRequest  `json:"photos,omitempty"          validate:"omitempty,max=20,dive"`
}

type PhotoRequest struct {
	URL     string `json:"url"               validate:"required,url"`
	Caption string `json:"caption,omitempty" validate:"omitempty,max=200"`
}

func (r SubmitClaimRequest) ToInput() (SubmitClaimInput, []core.FieldError) {
	var fields []core.FieldError

	incident, err := time.Parse(dateLayout, r.IncidentDate)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "incident_date", Message: "must be YYYY-MM-DD"})
	}

	in := SubmitClaimInput{
		IncidentType:    r.IncidentType,
		IncidentDate:    incident,
		Location:        r.Location,
		Description:     r.Description,
		EstimatedAmount: r.EstimatedAmount,
		ContactPhone:    strings.TrimSpace(r.ContactPhone),
		AdditionalInfo:  strings.TrimSpace(r.AdditionalInfo),
	}
	for _, p := range r.Photos {
		in.Photos = append(in.Photos, PhotoInput{URL: p.URL, Caption: p.Caption})
	}

	return in, fields
}

type TransitionRequest struct {
	Action string `json:"action"         validate:"required,oneof=review approve reject settle"`
	Note   string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

type UpdateResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	StatusBefore string    `json:"status_before"`
	StatusAfter  string    `json:"status_after"`
	ActorID      string    `json:"actor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type PhotoResponse struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type ClaimResponse struct {
	ID              string           `json:"id"`
	PolicyID        string           `json:"policy_id"`
	ClaimNumber     string           `json:"claim_number"`
	IncidentType    string           `json:"incident_type"`
	IncidentDate    string           `json:"incident_date"`
	Location        string           `json:"location"`
	Description     string           `json:"description"`
	EstimatedAmount decimal.Decimal  `json:"estimated_amount"`
	ContactPhone    *string          `json:"contact_phone,omitempty"`
	AdditionalInfo  *string          `json:"additional_info,omitempty"`
	Status          string           `json:"status"`
	Updates         []UpdateResponse `json:"updates"`
	Photos          []PhotoResponse  `json:"photos"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func ToClaimResponse(c *Claim) ClaimResponse {
	resp := ClaimResponse{
		ID:              c.ID,
		PolicyID:        c.PolicyID,
		ClaimNumber:     c.ClaimNumber,
		IncidentType:    c.IncidentType,
		IncidentDate:    c.IncidentDate.Format(dateLayout),
		Location:        c.Location,
		Description:     c.Description,
		EstimatedAmount: c.EstimatedAmount,
		ContactPhone:    c.ContactPhone,
		AdditionalInfo:  c.AdditionalInfo,
		Status:          string(c.Status),
		Updates:         make([]UpdateResponse, 0, len(c.Updates)),
		Photos:          make([]PhotoResponse, 0, len(c.Photos)),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}

	for _, u := range c.Updates {
		resp.Updates = append(resp.Updates, UpdateResponse{
			ID:           u.ID,
			Title:        u.Title,
			Description:  u.Description,
			StatusBefore: u.StatusBefore,
			StatusAfter:  u.StatusAfter,
			ActorID:      u.ActorID,
			CreatedAt:    u.CreatedAt,
		})
	}
	for _, p := range c.Photos {
		resp.Photos = append(resp.Photos, PhotoResponse{ID: p.ID, URL: p.URL, Caption: p.Caption})
	}

	return resp
}

func ToClaimResponseList(claims []Claim) []ClaimResponse {
	responses := make([]ClaimResponse, 0, len(claims))
	for i := range claims {
		responses = append(responses, ToClaimResponse(&claims[i]))
	}
	return responses
}
