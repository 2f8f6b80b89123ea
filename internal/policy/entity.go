// AngelaMos | 2026
// entity.go

package policy

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeAuto     Type = "auto"
	TypeHome     Type = "home"
	TypeLife     Type = "life"
	TypeHealth   Type = "health"
	TypeTravel   Type = "travel"
	TypeBusiness Type = "business"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAuto, TypeHome, TypeLife, TypeHealth, TypeTravel, TypeBusiness:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

type Relationship string

const (
	RelationshipSpouse  Relationship = "spouse"
	RelationshipChild   Relationship = "child"
	RelationshipParent  Relationship = "parent"
	RelationshipSibling Relationship = "sibling"
	RelationshipPartner Relationship = "partner"
	RelationshipOther   Relationship = "other"
)

func (r Relationship) Valid() bool {
	switch r {
	case RelationshipSpouse, RelationshipChild, RelationshipParent,
		RelationshipSibling, RelationshipPartner, RelationshipOther:
		return true
	}
	return false
}

// Details holds free-form, type-specific policy attributes (vehicle,
// property address, destination). Stored as JSONB on Postgres and TEXT
// on SQLite.
type Details map[string]any

func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return string(b), nil
}

func (d *Details) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan details: unsupported type %T", src)
	}

	if len(raw) == 0 {
		*d = nil
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("scan details: %w", err)
	}
	*d = m
	return nil
}

type Policy struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	PolicyNumber   string          `db:"policy_number"`
	Type           Type            `db:"type"`
	StartDate      time.Time       `db:"start_date"`
	EndDate        time.Time       `db:"end_date"`
	Premium        decimal.Decimal `db:"premium"`
	CoverageAmount decimal.Decimal `db:"coverage_amount"`
	Status         Status          `db:"status"`
	Details        Details         `db:"details"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`

	Beneficiaries []Beneficiary `db:"-"`
}

func (p *Policy) IsCancelled() bool {
	return p.Status == StatusCancelled
}

type Beneficiary struct {
	ID           string       `db:"id"`
	PolicyID     string       `db:"policy_id"`
	Name         string       `db:"name"`
	Relationship Relationship `db:"relationship"`
	Percentage   int          `db:"percentage"`
	CreatedAt    time.Time    `db:"created_at"`
}

// statusRow is the projection loaded by reconciliation.
type statusRow struct {
	ID        string    `db:"id"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	Status    Status    `db:"status"`
}
