/*
base.go - Per-benefit base and amount rules

PURPOSE:
  Computes the monthly-equivalent monetary base for each benefit kind from
  a wage segment plus its day breakdown, then prorates it into the final
  amount. The inclusion rules differ per benefit and must be reproduced
  exactly:

    severance   wage + transport allowance (or per the contract's
                severance-base policy); integral salary counts at 70%
    interest    severance base * 12% * days/360
    prima       same base and formula as severance
    vacation    wage only - transport excluded - 15 days per legal year
    IBC         wage (70% if integral), floored at 1 minimum wage,
                prorated over IBC days

  Integral salaries use EXACTLY 70% of the nominal wage as the wage
  component for every base, never the contract's configured factor.

VARIABLE COMPONENT:
  When the contract earns commissions or other salary-constitutive
  variable pay, the trailing-window arithmetic mean is added to the fixed
  wage before the inclusion rules apply.

DISPATCH:
  Behavior is selected through benefitRules, a closed table keyed by
  BenefitKind. Adding a kind without a rule makes calculations fail loudly
  instead of silently returning zero.

SEE ALSO:
  - calendar.go: Prorate and the single terminal rounding
  - engine.go: drives one Base+Amount pair per (segment, kind)
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// integralWageShare is the statutory share of an integral salary treated
// as base wage for every benefit calculation.
var integralWageShare = MustDecimal("0.70")

var (
	twelvePct = MustDecimal("0.12")
	fifteen   = decimal.NewFromInt(15)
	thirty    = decimal.NewFromInt(30)
)

// =============================================================================
// BASE CALCULATOR
// =============================================================================

// BaseCalculator computes bases and amounts for one employee's segments
// against one year's legal parameters. It is a pure value; build one per
// run and share it freely.
type BaseCalculator struct {
	Params LegalParams

	// VariableAverage is the trailing mean of salary-constitutive variable
	// earnings, already computed for the period (see Engine).
	VariableAverage decimal.Decimal
}

// Base returns the monthly-equivalent base for a benefit on one segment.
// The result is unrounded; Amount applies the terminal rounding.
func (bc BaseCalculator) Base(kind BenefitKind, seg WageSegment) (decimal.Decimal, error) {
	rule, ok := benefitRules[kind]
	if !ok {
		return decimal.Zero, &InconsistencyError{Detail: "no base rule for benefit kind " + kind.String()}
	}
	base, err := rule.base(bc, seg)
	if err != nil {
		return decimal.Zero, err
	}
	if base.IsNegative() {
		return decimal.Zero, &InconsistencyError{
			Detail: "negative base for " + kind.String() + " on contract " + string(seg.ContractID),
			cause:  ErrNegativeBase,
		}
	}
	return base, nil
}

// Amount prorates a base into the final benefit amount for the segment's
// day breakdown. This is the only place rounding happens.
func (bc BaseCalculator) Amount(kind BenefitKind, base decimal.Decimal, days DayBreakdown) (decimal.Decimal, error) {
	rule, ok := benefitRules[kind]
	if !ok {
		return decimal.Zero, &InconsistencyError{Detail: "no amount rule for benefit kind " + kind.String()}
	}
	proDays := rule.days(days)
	if proDays <= 0 {
		if days.SegmentDays == 0 {
			return decimal.Zero, nil
		}
		if proDays < 0 {
			return decimal.Zero, NewValidationError("worked_days", "negative legal-day count", ErrNoWorkedDays)
		}
		return decimal.Zero, nil
	}
	return Round2(rule.amount(base, proDays)), nil
}

// wageComponent is the fixed wage plus the variable average, with the
// integral 70% substitution applied.
func (bc BaseCalculator) wageComponent(seg WageSegment) decimal.Decimal {
	wage := seg.Wage.Add(bc.VariableAverage)
	if seg.Integral {
		wage = wage.Mul(integralWageShare)
	}
	return wage
}

// transportComponent returns the monthly transport allowance when the
// segment is eligible: flagged on the contract AND wage at or below twice
// the minimum wage. Eligibility is re-checked against the period-year
// parameters on every calculation, not frozen at contract creation.
func (bc BaseCalculator) transportComponent(seg WageSegment) decimal.Decimal {
	if !seg.TransportEligible {
		return decimal.Zero
	}
	if seg.Wage.GreaterThan(bc.Params.TransportEligibleWage()) {
		return decimal.Zero
	}
	return bc.Params.TransportAllowance
}

// TransportAmount is the prorated transport subsidy paid in the period,
// for payslip outputs (days/30 of the monthly value).
func (bc BaseCalculator) TransportAmount(seg WageSegment, days DayBreakdown) decimal.Decimal {
	monthly := bc.transportComponent(seg)
	if monthly.IsZero() {
		return decimal.Zero
	}
	return Round2(Prorate(monthly, days.Worked(), DivisorMonth))
}

// =============================================================================
// BENEFIT RULE TABLE
// =============================================================================

type benefitRule struct {
	base   func(BaseCalculator, WageSegment) (decimal.Decimal, error)
	days   func(DayBreakdown) int
	amount func(base decimal.Decimal, days int) decimal.Decimal
}

var benefitRules = map[BenefitKind]benefitRule{
	BenefitSeverance: {
		base: severanceBase,
		days: DayBreakdown.Worked,
		amount: func(base decimal.Decimal, days int) decimal.Decimal {
			return Prorate(base, days, DivisorYear)
		},
	},
	BenefitSeveranceInterest: {
		base: severanceBase,
		days: DayBreakdown.Worked,
		// 12% annual rate, prorated by the same day count used for
		// severance: base * 0.12 * days/360.
		amount: func(base decimal.Decimal, days int) decimal.Decimal {
			return Prorate(base.Mul(twelvePct), days, DivisorYear)
		},
	},
	BenefitPrima: {
		base: severanceBase,
		days: DayBreakdown.Worked,
		amount: func(base decimal.Decimal, days int) decimal.Decimal {
			return Prorate(base, days, DivisorYear)
		},
	},
	BenefitVacation: {
		base: vacationBase,
		days: DayBreakdown.Worked,
		// 15 days of wage per 360 worked: base * days * 15 / (360*30).
		amount: func(base decimal.Decimal, days int) decimal.Decimal {
			return Prorate(base.Mul(fifteen).Div(thirty), days, DivisorYear)
		},
	},
	BenefitIBC: {
		base: ibcBase,
		days: DayBreakdown.IBCDays,
		amount: func(base decimal.Decimal, days int) decimal.Decimal {
			return Prorate(base, days, DivisorMonth)
		},
	},
}

func severanceBase(bc BaseCalculator, seg WageSegment) (decimal.Decimal, error) {
	wage := bc.wageComponent(seg)
	switch seg.SeverancePolicy {
	case SeveranceBaseWageOnly:
		return wage, nil
	case SeveranceBaseAll, SeveranceBaseLegal, "":
		// Legal default: wage plus transport allowance. "All" adds every
		// salary-constitutive concept, which the wage component already
		// carries through the variable average.
		return wage.Add(bc.transportComponent(seg)), nil
	default:
		return decimal.Zero, &InconsistencyError{
			Detail: "unknown severance-base policy " + string(seg.SeverancePolicy),
		}
	}
}

func vacationBase(bc BaseCalculator, seg WageSegment) (decimal.Decimal, error) {
	// Transport allowance never enters the vacation base.
	return bc.wageComponent(seg), nil
}

func ibcBase(bc BaseCalculator, seg WageSegment) (decimal.Decimal, error) {
	base := bc.wageComponent(seg)
	// Statutory floor: one minimum wage on the monthly-equivalent base.
	if base.LessThan(bc.Params.MinimumWage) {
		base = bc.Params.MinimumWage
	}
	return base, nil
}

// =============================================================================
// VARIABLE EARNINGS AVERAGE
// =============================================================================

// VariableAverageFor computes the trailing arithmetic mean of variable
// earnings over windowMonths full months before the period start. Months
// without a reported earning count as zero.
func VariableAverageFor(earnings []VariableEarning, period Period, windowMonths int) decimal.Decimal {
	if windowMonths <= 0 || len(earnings) == 0 {
		return decimal.Zero
	}
	windowStart := NewDate(period.From.Year(), period.From.Month(), 1).AddMonths(-windowMonths)
	windowEnd := NewDate(period.From.Year(), period.From.Month(), 1).AddDays(-1)

	sum := decimal.Zero
	for _, e := range earnings {
		if e.Month.Before(windowStart) || e.Month.After(windowEnd) {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	if sum.IsZero() {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(windowMonths)))
}
