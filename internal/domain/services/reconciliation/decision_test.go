package reconciliation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name        string
		previous    string
		current     string
		hasPrevious bool
		want        Outcome
		amount      string
	}{
		{"first read with funds", "0", "100", false, OutcomeDeposit, "100"},
		{"increase", "100", "150.5", true, OutcomeDeposit, "50.5"},
		{"first read empty", "0", "0", false, OutcomeUpdate, "0"},
		{"unchanged", "25", "25", true, OutcomeUnchanged, "0"},
		{"unchanged zero", "0", "0", true, OutcomeUnchanged, "0"},
		{"positive decrease", "100", "40", true, OutcomeUpdate, "0"},
		{"false zero", "100", "0", true, OutcomeSuppressedZero, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(d(tt.previous), d(tt.current), tt.hasPrevious)

			assert.Equal(t, tt.want, got.Outcome)
			assert.True(t, got.Amount.Equal(d(tt.amount)), "amount %s", got.Amount)
			assert.Equal(t, tt.want != OutcomeSuppressedZero, got.WritesBalance())
		})
	}
}

func TestEvaluate_DepositAmountInvariant(t *testing.T) {
	for _, pair := range [][2]string{{"0", "0.000001"}, {"1.5", "2"}, {"999999.999999", "1000000"}} {
		prev, cur := decimal.RequireFromString(pair[0]), decimal.RequireFromString(pair[1])
		got := Evaluate(prev, cur, true)

		assert.Equal(t, OutcomeDeposit, got.Outcome)
		assert.True(t, got.Amount.IsPositive())
		assert.True(t, got.Amount.Equal(got.Current.Sub(got.Previous)))
	}
}
