/*
withholding.go - Income-tax withholding (retencion en la fuente)

PURPOSE:
  Computes the period's withholding from gross taxable income, dispatching
  on the contract's configured method:

    none        always zero
    fixed       the contract's configured value, unconditionally
    percentage  taxable * configured percentage / 100
    table       progressive UVT-bracket lookup against the legal table

  The bracket table and the UVT value are regulatory data injected through
  LegalParams - never hard-coded here - and resolved by the period's year.

PROCEDURES:
  Procedure 1 taxes the current period's depurated income directly against
  the table. Procedure 2 first derives an effective rate from the
  trailing-average income (fixed each semester in practice) and applies
  that rate to the current period's depurated income.

EXEMPT INCOME:
  The contract's exempt-income percentage, capped at the statutory 25%,
  is subtracted from taxable income before any bracket lookup.
*/
package engine

import "github.com/shopspring/decimal"

var (
	hundred      = decimal.NewFromInt(100)
	exemptCapPct = decimal.NewFromInt(25)
)

// ComputeWithholding returns the withholding amount for one period.
func ComputeWithholding(cfg WithholdingConfig, taxable decimal.Decimal, params LegalParams) (decimal.Decimal, error) {
	if taxable.IsNegative() {
		return decimal.Zero, &InconsistencyError{Detail: "negative taxable income", cause: ErrNegativeBase}
	}

	switch cfg.Method {
	case WithholdingNone, "":
		return decimal.Zero, nil

	case WithholdingFixed:
		return Round2(cfg.FixedValue), nil

	case WithholdingPercentage:
		return Round2(taxable.Mul(cfg.Percentage).Div(hundred)), nil

	case WithholdingTable:
		return tableWithholding(cfg, taxable, params)

	default:
		return decimal.Zero, NewValidationError("withholding_method",
			"unknown method "+string(cfg.Method), nil)
	}
}

func tableWithholding(cfg WithholdingConfig, taxable decimal.Decimal, params LegalParams) (decimal.Decimal, error) {
	if len(params.WithholdingTable) == 0 || params.UVT.IsZero() {
		return decimal.Zero, &ConfigurationError{
			Parameter: "withholding table / UVT value",
			Year:      params.Year,
			cause:     ErrMissingParams,
		}
	}

	depurated := depurate(cfg, taxable)

	switch cfg.Procedure {
	case Procedure2:
		// The trailing average fixes the marginal rate; the rate then
		// applies to the current period's depurated income.
		avg := depurate(cfg, cfg.TrailingAverageIncome)
		if avg.IsZero() {
			return decimal.Zero, nil
		}
		avgTax, err := bracketTax(avg, params)
		if err != nil {
			return decimal.Zero, err
		}
		rate := avgTax.Div(avg)
		return Round2(depurated.Mul(rate)), nil

	case Procedure1, 0:
		tax, err := bracketTax(depurated, params)
		if err != nil {
			return decimal.Zero, err
		}
		return Round2(tax), nil

	default:
		return decimal.Zero, NewValidationError("withholding_procedure",
			"unknown procedure", nil)
	}
}

// depurate subtracts the exempt-income share, capped at 25%.
func depurate(cfg WithholdingConfig, income decimal.Decimal) decimal.Decimal {
	exempt := cfg.ExemptIncomePct
	if exempt.GreaterThan(exemptCapPct) {
		exempt = exemptCapPct
	}
	if exempt.IsNegative() {
		exempt = decimal.Zero
	}
	return income.Sub(income.Mul(exempt).Div(hundred))
}

// bracketTax runs the progressive lookup: income in UVT against the
// bracket table, back to pesos. Result is unrounded.
func bracketTax(income decimal.Decimal, params LegalParams) (decimal.Decimal, error) {
	incomeUVT := income.Div(params.UVT)

	for _, b := range params.WithholdingTable {
		open := b.ToUVT.IsZero()
		if incomeUVT.GreaterThan(b.FromUVT) && (open || incomeUVT.LessThanOrEqual(b.ToUVT)) {
			taxUVT := incomeUVT.Sub(b.FromUVT).Mul(b.MarginalRate).Div(hundred).Add(b.FixedUVT)
			return taxUVT.Mul(params.UVT), nil
		}
	}
	// Below the first bracket's floor: no withholding.
	return decimal.Zero, nil
}
