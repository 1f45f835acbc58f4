/*
validate.go - Fail-fast contract validation

PURPOSE:
  Every rule that would make a calculation produce garbage is checked at
  contract write time, not at calculation time. A contract that persists
  is a contract the engine can calculate.

WHAT IT CHECKS:
  1. Wage positive, and at least the minimum wage for ordinary contracts
  2. Integral salaries at or above 10 minimum wages, factor at least 70
  3. Validity window ordered (end not before start)
  4. Risk class within I-V
  5. Withholding configuration coherent for its method, exempt share
     within the statutory 25% cap

YEAR SENSITIVITY:
  The integral floor and the minimum wage move every year, so validation
  takes the LegalParams of the year the contract starts. A contract valid
  under 2023 parameters stays valid as data; calculations always re-derive
  what depends on the period's year.

SEE ALSO:
  - engine/types.go: the Contract snapshot being validated
  - api/dto.go: the transport-level field checks that run before this
*/
package payroll

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/andino-hr/payroll-engine/engine"
)

var (
	minIntegralFactor = decimal.NewFromInt(70)
	maxExemptPct      = decimal.NewFromInt(25)
	maxPct            = decimal.NewFromInt(100)
)

// ValidateContract rejects a contract the engine could not calculate
// correctly. params must be the legal parameters of the contract's start
// year.
func ValidateContract(c engine.Contract, params engine.LegalParams) error {
	if c.EmployeeID == "" {
		return engine.NewValidationError("employee_id", "contract must belong to an employee", nil)
	}
	if c.Start.IsZero() {
		return engine.NewValidationError("start", "contract start date is required", nil)
	}
	if c.End != nil && c.End.Before(c.Start) {
		return engine.NewValidationError("end", "contract end precedes its start", engine.ErrInvalidPeriod)
	}

	if !c.Wage.IsPositive() {
		return engine.NewValidationError("wage", "wage must be positive", nil)
	}

	switch c.WageType {
	case engine.WageOrdinary, "":
		if c.Wage.LessThan(params.MinimumWage) {
			return engine.NewValidationError("wage",
				"ordinary wage below the minimum wage for "+strconv.Itoa(params.Year), nil)
		}
	case engine.WageIntegral:
		if c.Wage.LessThan(params.IntegralMinimumWage()) {
			return engine.NewValidationError("wage",
				"integral wage below 10 minimum wages for "+strconv.Itoa(params.Year), nil)
		}
		if !c.IntegralFactor.IsZero() && c.IntegralFactor.LessThan(minIntegralFactor) {
			return engine.NewValidationError("integral_factor", "integral factor below 70", nil)
		}
	default:
		return engine.NewValidationError("wage_type", "unknown wage type "+string(c.WageType), nil)
	}

	if !c.RiskClass.Valid() {
		return engine.NewValidationError("risk_class", "risk class must be 1-5", nil)
	}

	if err := validateWithholding(c.Withholding); err != nil {
		return err
	}

	switch c.State {
	case engine.ContractDraft, engine.ContractOpen, engine.ContractSuspended, engine.ContractClosed, "":
	default:
		return engine.NewValidationError("state", "unknown contract state "+string(c.State), nil)
	}
	return nil
}

func validateWithholding(w engine.WithholdingConfig) error {
	switch w.Method {
	case engine.WithholdingNone, "":
		return nil
	case engine.WithholdingFixed:
		if w.FixedValue.IsNegative() {
			return engine.NewValidationError("withholding.fixed_value", "fixed withholding cannot be negative", nil)
		}
	case engine.WithholdingPercentage:
		if w.Percentage.IsNegative() || w.Percentage.GreaterThan(maxPct) {
			return engine.NewValidationError("withholding.percentage", "percentage must be within 0-100", nil)
		}
	case engine.WithholdingTable:
		if w.Procedure != engine.Procedure1 && w.Procedure != engine.Procedure2 {
			return engine.NewValidationError("withholding.procedure", "procedure must be 1 or 2", nil)
		}
		if w.Procedure == engine.Procedure2 && w.TrailingAverageIncome.IsNegative() {
			return engine.NewValidationError("withholding.trailing_average", "trailing average cannot be negative", nil)
		}
	default:
		return engine.NewValidationError("withholding.method", "unknown method "+string(w.Method), nil)
	}

	if w.ExemptIncomePct.IsNegative() || w.ExemptIncomePct.GreaterThan(maxExemptPct) {
		return engine.NewValidationError("withholding.exempt_pct", "exempt share must be within 0-25", nil)
	}
	return nil
}
