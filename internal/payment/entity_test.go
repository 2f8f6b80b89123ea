// AngelaMos | 2026
// entity_test.go

package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw   string
		want  Method
		known bool
	}{
		{"credit_card", MethodCreditCard, true},
		{"Credit Card", MethodCreditCard, true},
		{" VISA ", MethodCreditCard, true},
		{"debit-card", MethodDebitCard, true},
		{"Tarjeta de débito", MethodDebitCard, true},
		{"wire transfer", MethodBankTransfer, true},
		{"Transferencia", MethodBankTransfer, true},
		{"PayPal", MethodPayPal, true},
		{"efectivo", MethodCash, true},
		{"cash", MethodCash, true},
		{"bitcoin", MethodCreditCard, false},
		{"", MethodCreditCard, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			got, known := NormalizeMethod(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusCompleted, StatusFailed, StatusRefunded} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("settled").Valid())
	assert.False(t, Status("").Valid())
}
