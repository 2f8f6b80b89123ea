// AngelaMos | 2026
// dto.go

package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

const dateLayout = "2006-01-02"

type RecordPaymentInput struct {
	Amount        decimal.Decimal
	Method        string
	PaymentDate   time.Time
	TransactionID string
	Status        Status
}

type RecordPaymentRequest struct {
	PolicyID      string          `json:"policy_id"                validate:"required,uuid"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"           validate:"max=50"`
	PaymentDate   string          `json:"payment_date,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
	Status        string          `json:"status,omitempty"         validate:"omitempty,oneof=pending completed failed refunded"`
}

// ToInput accepts payment_date either as RFC 3339 or as a plain date.
func (r RecordPaymentRequest) ToInput() (RecordPaymentInput, []core.FieldError) {
	in := RecordPaymentInput{
		Amount:        r.Amount,
		Method:        r.PaymentMethod,
		TransactionID: r.TransactionID,
		Status:        Status(r.Status),
	}

	if r.PaymentDate != "" {
		t, err := time.Parse(time.RFC3339, r.PaymentDate)
		if err != nil {
			t, err = time.Parse(dateLayout, r.PaymentDate)
		}
		if err != nil {
			return in, []core.FieldError{{
				Field:   "payment_date",
				Message: "must be RFC 3339 or YYYY-MM-DD",
			}}
		}
		in.PaymentDate = t
	}

	return in, nil
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type PaymentResponse struct {
	ID            string          `json:"id"`
	PolicyID      string          `json:"policy_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func ToPaymentResponse(p *Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		PolicyID:      p.PolicyID,
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate,
		PaymentMethod: string(p.PaymentMethod),
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func ToPaymentResponseList(payments []Payment) []PaymentResponse {
	responses := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		responses = append(responses, ToPaymentResponse(&payments[i]))
	}
	return responses
}

type BalanceResponse struct {
	PolicyID    string          `json:"policy_id"`
	Premium     decimal.Decimal `json:"premium"`
	Paid        decimal.Decimal `json:"paid"`
	Pending     decimal.Decimal `json:"pending"`
	Refunded    decimal.Decimal `json:"refunded"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Settled     bool            `json:"settled"`
}

func ToBalanceResponse(b *Balance) BalanceResponse {
	return BalanceResponse{
		PolicyID:    b.PolicyID,
		Premium:     b.Premium,
		Paid:        b.Paid,
		Pending:     b.Pending,
		Refunded:    b.Refunded,
		Outstanding: b.Outstanding,
		Settled:     b.Settled,
	}
}
