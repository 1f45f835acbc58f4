/*
params.go - Legal parameter snapshots

PURPOSE:
  Minimum wage, transport allowance, UVT value and the withholding bracket
  table all vary by year and are external regulatory data. They enter the
  engine as explicit, immutable snapshots keyed by the PERIOD's year -
  never looked up from ambient configuration, and never by the date the
  calculation happens to run.

SNAPSHOTTING:
  A batch run resolves its LegalParams once at start. A concurrent
  parameter change cannot affect a run in flight, because the run only
  ever sees the value it captured.

SEE ALSO:
  - factory/params.go: the statutory values per year
  - withholding.go: bracket table consumption
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// LEGAL PARAMETERS - One immutable snapshot per year
// =============================================================================

// LegalParams is the regulatory parameter set for one year.
type LegalParams struct {
	Year int

	// MinimumWage is the SMMLV: the monthly legal minimum wage.
	MinimumWage decimal.Decimal

	// TransportAllowance is the monthly legal transport subsidy.
	TransportAllowance decimal.Decimal

	// UVT is the tax unit value used by the withholding table.
	UVT decimal.Decimal

	// WithholdingTable holds the progressive brackets, in UVT.
	WithholdingTable []WithholdingBracket
}

// WithholdingBracket is one progressive bracket of the statutory table.
// Bounds are expressed in UVT; ToUVT zero means the bracket is open-ended.
type WithholdingBracket struct {
	FromUVT decimal.Decimal
	ToUVT   decimal.Decimal
	// MarginalRate is the percentage applied to the excess over FromUVT.
	MarginalRate decimal.Decimal
	// FixedUVT is the accumulated tax of the lower brackets, in UVT.
	FixedUVT decimal.Decimal
}

// ParamsByYear resolves LegalParams by year.
type ParamsByYear map[int]LegalParams

// ForYear returns the parameter set for a year, or a ConfigurationError
// when none is loaded.
func (p ParamsByYear) ForYear(year int) (LegalParams, error) {
	params, ok := p[year]
	if !ok {
		return LegalParams{}, &ConfigurationError{
			Parameter: "legal parameters",
			Year:      year,
			cause:     ErrMissingParams,
		}
	}
	return params, nil
}

// TransportEligibleWage is the eligibility ceiling for the transport
// allowance: twice the minimum wage.
func (lp LegalParams) TransportEligibleWage() decimal.Decimal {
	return lp.MinimumWage.Mul(decimal.NewFromInt(2))
}

// IntegralMinimumWage is the floor for integral salaries: ten minimum wages.
func (lp LegalParams) IntegralMinimumWage() decimal.Decimal {
	return lp.MinimumWage.Mul(decimal.NewFromInt(10))
}

// =============================================================================
// CALCULATION CONFIG
// =============================================================================

// CalculationConfig bundles everything a run needs beyond its inputs.
type CalculationConfig struct {
	Params ParamsByYear

	// VariableWindowMonths is the trailing window for averaging variable
	// earnings into benefit bases. Default 3.
	VariableWindowMonths int
}

func (c CalculationConfig) variableWindow() int {
	if c.VariableWindowMonths <= 0 {
		return 3
	}
	return c.VariableWindowMonths
}
