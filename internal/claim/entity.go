// AngelaMos | 2026
// entity.go

package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusPaid        Status = "paid"
	StatusCancelled   Status = "cancelled"
)

type Claim struct {
	ID              string          `db:"id"`
	PolicyID        string          `db:"policy_id"`
	UserID          string          `db:"user_id"`
	ClaimNumber     string          `db:"claim_number"`
	IncidentType    string          `db:"incident_type"`
	IncidentDate    time.Time       `db:"incident_date"`
	Location        string          `db:"location"`
	Description     string          `db:"description"`
	EstimatedAmount decimal.Decimal `db:"estimated_amount"`
	ContactPhone    *string         `db:"contact_phone"`
	AdditionalInfo  *string         `db:"additional_info"`
	Status          Status          `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`

	Updates []Update `db:"-"`
	Photos  []Photo  `db:"-"`
}

// Update is one immutable entry of a claim's audit trail.
type Update struct {
	ID           string    `db:"id"`
	ClaimID      string    `db:"claim_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	StatusBefore string    `db:"status_before"`
	StatusAfter  string    `db:"status_after"`
	ActorID      string    `db:"actor_id"`
	CreatedAt    time.Time `db:"created_at"`
}

type Photo struct {
	ID        string    `db:"id"`
	ClaimID   string    `db:"claim_id"`
	URL       string    `db:"url"`
	Caption   string    `db:"caption"`
	CreatedAt time.Time `db:"created_at"`
}
