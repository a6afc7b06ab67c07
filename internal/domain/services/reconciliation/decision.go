package reconciliation

import "github.com/shopspring/decimal"

// Outcome is what a fresh balance read means for the stored snapshot
type Outcome string

const (
	// OutcomeDeposit records a deposit and writes the new balance
	OutcomeDeposit Outcome = "deposit"
	// OutcomeUpdate writes the new balance without a deposit
	OutcomeUpdate Outcome = "update"
	// OutcomeUnchanged refreshes the snapshot timestamp
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeSuppressedZero leaves a positive snapshot untouched after a zero read
	OutcomeSuppressedZero Outcome = "suppressed_zero"
)

// Decision is the result of comparing a fresh read with the stored balance
type Decision struct {
	Outcome  Outcome
	Previous decimal.Decimal
	Current  decimal.Decimal
	// Amount is Current - Previous for deposits and zero otherwise
	Amount decimal.Decimal
}

// WritesBalance reports whether the snapshot should be written
func (d Decision) WritesBalance() bool {
	return d.Outcome != OutcomeSuppressedZero
}

// Evaluate applies the deposit rule and the false-zero guard. hasPrevious is
// false when no snapshot exists yet, in which case previous is zero.
func Evaluate(previous, current decimal.Decimal, hasPrevious bool) Decision {
	d := Decision{Previous: previous, Current: current, Amount: decimal.Zero}

	switch {
	case current.GreaterThan(previous):
		d.Outcome = OutcomeDeposit
		d.Amount = current.Sub(previous)
	case previous.IsPositive() && current.IsZero():
		d.Outcome = OutcomeSuppressedZero
	case hasPrevious && current.Equal(previous):
		d.Outcome = OutcomeUnchanged
	default:
		d.Outcome = OutcomeUpdate
	}

	return d
}
