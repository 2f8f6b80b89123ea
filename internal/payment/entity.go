// AngelaMos | 2026
// entity.go

package payment

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

type Method string

const (
	MethodCreditCard   Method = "credit_card"
	MethodDebitCard    Method = "debit_card"
	MethodBankTransfer Method = "bank_transfer"
	MethodPayPal       Method = "paypal"
	MethodCash         Method = "cash"
)

var methodAliases = map[string]Method{
	"credit_card":        MethodCreditCard,
	"credit":             MethodCreditCard,
	"creditcard":         MethodCreditCard,
	"card":               MethodCreditCard,
	"visa":               MethodCreditCard,
	"mastercard":         MethodCreditCard,
	"amex":               MethodCreditCard,
	"tarjeta_de_credito": MethodCreditCard,
	"tarjeta_credito":    MethodCreditCard,
	"debit_card":         MethodDebitCard,
	"debit":              MethodDebitCard,
	"debitcard":          MethodDebitCard,
	"tarjeta_de_debito":  MethodDebitCard,
	"tarjeta_debito":     MethodDebitCard,
	"bank_transfer":      MethodBankTransfer,
	"transfer":           MethodBankTransfer,
	"wire":               MethodBankTransfer,
	"wire_transfer":      MethodBankTransfer,
	"bank":               MethodBankTransfer,
	"sepa":               MethodBankTransfer,
	"transferencia":      MethodBankTransfer,
	"paypal":             MethodPayPal,
	"pay_pal":            MethodPayPal,
	"cash":               MethodCash,
	"efectivo":           MethodCash,
}

// NormalizeMethod maps a free-form payment method onto the closed set.
// Unrecognized input falls back to credit_card and reports false.
func NormalizeMethod(raw string) (Method, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_", "é", "e", "á", "a").Replace(key)

	if m, ok := methodAliases[key]; ok {
		return m, true
	}
	return MethodCreditCard, false
}

type Payment struct {
	ID            string          `db:"id"`
	PolicyID      string          `db:"policy_id"`
	Amount        decimal.Decimal `db:"amount"`
	PaymentDate   time.Time       `db:"payment_date"`
	PaymentMethod Method          `db:"payment_method"`
	TransactionID string          `db:"transaction_id"`
	Status        Status          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Balance compares a policy's premium with the money recorded against it.
type Balance struct {
	PolicyID    string
	Premium     decimal.Decimal
	Paid        decimal.Decimal
	Pending     decimal.Decimal
	Refunded    decimal.Decimal
	Outstanding decimal.Decimal
	Settled     bool
}
