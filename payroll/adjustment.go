/*
adjustment.go - Additive corrections to confirmed runs

PURPOSE:
  Confirmed runs are immutable; real life is not. When a confirmed amount
  turns out wrong, the fix is an adjustment record: a signed delta against
  a specific line, with a mandatory reason, applied in a later period.
  The original line is never touched, so confirmed history always replays
  byte for byte.
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andino-hr/payroll-engine/engine"
)

// Adjustment is one additive correction against a confirmed run's line.
type Adjustment struct {
	ID         string
	RunID      engine.RunID
	EmployeeID engine.EmployeeID
	Kind       engine.BenefitKind

	// Delta is signed: positive pays more, negative recovers.
	Delta  decimal.Decimal
	Reason string

	CreatedAt time.Time
	CreatedBy string
}

// NewAdjustment validates and builds an adjustment against a run. The run
// must be confirmed - adjusting anything earlier means resetting and
// recalculating instead.
func NewAdjustment(run *engine.Run, employeeID engine.EmployeeID, kind engine.BenefitKind, delta decimal.Decimal, reason, actor string) (Adjustment, error) {
	if run.State != engine.RunConfirmed {
		return Adjustment{}, engine.NewValidationError("run",
			"adjustments apply to confirmed runs only; reset and recalculate instead", engine.ErrRunState)
	}
	if delta.IsZero() {
		return Adjustment{}, engine.NewValidationError("delta", "adjustment delta cannot be zero", nil)
	}
	if reason == "" {
		return Adjustment{}, engine.NewValidationError("reason", "adjustment reason is required", nil)
	}

	found := false
	for _, line := range run.Lines {
		if line.EmployeeID == employeeID && line.Kind == kind {
			found = true
			break
		}
	}
	if !found {
		return Adjustment{}, engine.NewValidationError("line",
			"run has no "+kind.String()+" line for employee "+string(employeeID), nil)
	}

	return Adjustment{
		RunID:      run.ID,
		EmployeeID: employeeID,
		Kind:       kind,
		Delta:      delta,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  actor,
	}, nil
}

// AdjustedTotal returns a line total with its adjustments applied.
func AdjustedTotal(lineAmount decimal.Decimal, adjustments []Adjustment) decimal.Decimal {
	total := lineAmount
	for _, a := range adjustments {
		total = total.Add(a.Delta)
	}
	return total
}
