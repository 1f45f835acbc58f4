/*
aggregate.go - Aggregation surface over engine outputs

PURPOSE:
  Thin totalling layer between the engine and the external document
  generators. Everything here is summation and grouping over already
  computed lines; no calculation rule lives in this file except payslip
  assembly (gross earnings, employee deductions, net).

CONSUMERS:
  - Electronic-payroll generator: per-payslip numeric totals; it owns the
    DIAN XML schema and signing.
  - PILA generator: per-employee contribution summary keyed by fund code;
    it owns the fixed-width record formats.
  - Bank-file generator: net payable per employee; it owns the file layout.
  - Consolidated reports: totals per benefit kind across a run.

MULTI-CONTRACT GUARANTEE:
  Lines are per contract segment; this layer is where they finally sum.
  Summing across all of one employee's segments equals the amount computed
  over the union of the segments weighted by wage, which the engine tests
  pin down.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERTIME - Salary-constitutive hourly earnings
// =============================================================================

// OvertimeKind is the statutory surcharge category.
type OvertimeKind string

const (
	OvertimeDay           OvertimeKind = "heo"  // ordinary daytime, +25%
	OvertimeNight         OvertimeKind = "hen"  // ordinary night, +75%
	OvertimeHolidayDay    OvertimeKind = "hedo" // holiday daytime, +100%
	OvertimeHolidayNight  OvertimeKind = "hedn" // holiday night, +150%
	SurchargeNight        OvertimeKind = "heno" // night surcharge, +35%
	SurchargeHolidayNight OvertimeKind = "henn" // holiday night surcharge, +110%
)

var overtimeFactors = map[OvertimeKind]decimal.Decimal{
	OvertimeDay:           MustDecimal("1.25"),
	OvertimeNight:         MustDecimal("1.75"),
	OvertimeHolidayDay:    MustDecimal("2.0"),
	OvertimeHolidayNight:  MustDecimal("2.5"),
	SurchargeNight:        MustDecimal("1.35"),
	SurchargeHolidayNight: MustDecimal("2.1"),
}

// monthlyHours is the 30-day legal month at 8 hours: the divisor for the
// ordinary hourly wage.
var monthlyHours = decimal.NewFromInt(240)

// OvertimeEntry is a worked overtime block inside the period.
type OvertimeEntry struct {
	ContractID ContractID
	Kind       OvertimeKind
	Hours      decimal.Decimal
}

// OvertimeValue prices an entry against a monthly wage: wage/240 per hour
// times the statutory factor. Unrounded.
func OvertimeValue(wage decimal.Decimal, entry OvertimeEntry) (decimal.Decimal, error) {
	factor, ok := overtimeFactors[entry.Kind]
	if !ok {
		return decimal.Zero, NewValidationError("overtime_kind", "unknown kind "+string(entry.Kind), nil)
	}
	return wage.Div(monthlyHours).Mul(entry.Hours).Mul(factor), nil
}

// =============================================================================
// PAYSLIP TOTALS - Input to the electronic-payroll generator
// =============================================================================

// PayslipTotals is the plain numeric bundle the electronic-payroll
// document generator maps into the regulator's XML. The engine emits
// numbers only; schema, signing and submission live outside.
type PayslipTotals struct {
	EmployeeID EmployeeID
	Period     Period

	WorkedDays         int
	GrossEarnings      decimal.Decimal
	TransportAllowance decimal.Decimal
	OvertimeValue      decimal.Decimal

	HealthEmployee  decimal.Decimal
	HealthCompany   decimal.Decimal
	PensionEmployee decimal.Decimal
	PensionCompany  decimal.Decimal
	ARL             decimal.Decimal

	WithholdingTax decimal.Decimal
	Net            decimal.Decimal
}

// Payslip assembles the period totals for one employee: earnings,
// employee deductions and net pay. It shares the engine's purity rules
// and parameter snapshotting.
func (e *Engine) Payslip(period Period, in EmployeeInput) (PayslipTotals, error) {
	params, err := e.Config.Params.ForYear(period.Year())
	if err != nil {
		return PayslipTotals{}, err
	}

	segments, err := ResolveSegments(in.Contracts, in.WageEvents, period)
	if err != nil {
		return PayslipTotals{}, err
	}

	contractByID := make(map[ContractID]Contract, len(in.Contracts))
	for _, c := range in.Contracts {
		contractByID[c.ID] = c
	}

	out := PayslipTotals{EmployeeID: in.Employee.ID, Period: period}
	gross := decimal.Zero
	transport := decimal.Zero
	taxableByContract := make(map[ContractID]decimal.Decimal)
	variableByContract := e.variableAverages(in.Contracts, in.VariableEarnings, period)

	for _, seg := range segments {
		days, err := ResolveNovelties(seg, in.Novelties)
		if err != nil {
			return PayslipTotals{}, err
		}
		out.WorkedDays += days.Worked()

		bc := BaseCalculator{Params: params, VariableAverage: variableByContract[seg.ContractID]}

		// Earned wage for the segment; integral salaries pay the full
		// nominal wage even though bases use 70%.
		earned := Prorate(seg.Wage, days.Worked(), DivisorMonth)
		gross = gross.Add(earned)
		taxableByContract[seg.ContractID] = taxableByContract[seg.ContractID].Add(earned)

		transport = transport.Add(bc.TransportAmount(seg, days))

		ibcBase, err := bc.Base(BenefitIBC, seg)
		if err != nil {
			return PayslipTotals{}, err
		}
		ibc, err := bc.Amount(BenefitIBC, ibcBase, days)
		if err != nil {
			return PayslipTotals{}, err
		}
		out.HealthEmployee = out.HealthEmployee.Add(rated(ibc, contributionRates[ContributionHealthEmployee]))
		out.HealthCompany = out.HealthCompany.Add(rated(ibc, contributionRates[ContributionHealthEmployer]))
		out.PensionEmployee = out.PensionEmployee.Add(rated(ibc, contributionRates[ContributionPensionEmployee]))
		out.PensionCompany = out.PensionCompany.Add(rated(ibc, contributionRates[ContributionPensionEmployer]))
		out.ARL = out.ARL.Add(rated(ibc, seg.RiskClass.ARLRate()))
	}

	overtime := decimal.Zero
	for _, entry := range in.Overtime {
		c, ok := contractByID[entry.ContractID]
		if !ok {
			return PayslipTotals{}, NewValidationError("overtime", "unknown contract "+string(entry.ContractID), nil)
		}
		v, err := OvertimeValue(c.Wage, entry)
		if err != nil {
			return PayslipTotals{}, err
		}
		overtime = overtime.Add(v)
		taxableByContract[c.ID] = taxableByContract[c.ID].Add(v)
	}

	for contractID, taxable := range taxableByContract {
		wh, err := ComputeWithholding(contractByID[contractID].Withholding, taxable, params)
		if err != nil {
			return PayslipTotals{}, err
		}
		out.WithholdingTax = out.WithholdingTax.Add(wh)
	}

	out.GrossEarnings = Round2(gross.Add(transport).Add(overtime))
	out.TransportAllowance = transport
	out.OvertimeValue = Round2(overtime)
	out.Net = Round2(gross.Add(transport).Add(overtime).
		Sub(out.HealthEmployee).Sub(out.PensionEmployee).Sub(out.WithholdingTax))
	return out, nil
}

func rated(ibc, ratePct decimal.Decimal) decimal.Decimal {
	return Round2(ibc.Mul(ratePct).Div(hundred))
}

// =============================================================================
// PILA SUMMARY
// =============================================================================

// FundType buckets contributions the way PILA record types do.
type FundType string

const (
	FundHealth     FundType = "health"
	FundPension    FundType = "pension"
	FundARL        FundType = "arl"
	FundParafiscal FundType = "parafiscal"
)

var fundTypeByContribution = map[ContributionKind]FundType{
	ContributionHealthEmployee:  FundHealth,
	ContributionHealthEmployer:  FundHealth,
	ContributionPensionEmployee: FundPension,
	ContributionPensionEmployer: FundPension,
	ContributionARL:             FundARL,
	ContributionICBF:            FundParafiscal,
	ContributionSENA:            FundParafiscal,
	ContributionCCF:             FundParafiscal,
}

// PILAEntry is one employee's contribution total toward one fund for the
// period. The flat-file field widths and record types are the PILA
// generator's problem; this is just the numbers.
type PILAEntry struct {
	EmployeeID EmployeeID
	Fund       FundCode
	FundType   FundType
	IBC        decimal.Decimal
	Amount     decimal.Decimal
}

// ibcCountingKinds mark which contribution kind carries the IBC into the
// summary for its fund: health and pension have two lines per fund (the
// employee and employer shares repeat the same IBC), so only one of the
// pair may count it.
var ibcCountingKinds = map[ContributionKind]bool{
	ContributionHealthEmployee:  true,
	ContributionPensionEmployee: true,
	ContributionARL:             true,
	ContributionICBF:            true,
	ContributionSENA:            true,
	ContributionCCF:             true,
}

// PILASummary groups a run's contribution lines by employee and fund,
// summing employee and employer shares into one entry per fund. IBC sums
// across segments, each segment counted once per fund.
func PILASummary(contribs []ContributionLine) []PILAEntry {
	type key struct {
		emp  EmployeeID
		fund FundCode
		ft   FundType
	}
	acc := make(map[key]*PILAEntry)
	var order []key

	for _, c := range contribs {
		k := key{emp: c.EmployeeID, fund: c.Fund, ft: fundTypeByContribution[c.Kind]}
		e, ok := acc[k]
		if !ok {
			e = &PILAEntry{EmployeeID: c.EmployeeID, Fund: c.Fund, FundType: k.ft}
			acc[k] = e
			order = append(order, k)
		}
		e.Amount = e.Amount.Add(c.Amount)
		if ibcCountingKinds[c.Kind] {
			e.IBC = e.IBC.Add(c.IBC)
		}
	}

	out := make([]PILAEntry, 0, len(order))
	for _, k := range order {
		out = append(out, *acc[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].FundType < out[j].FundType
	})
	return out
}

// =============================================================================
// BANK AND CONSOLIDATED TOTALS
// =============================================================================

// BankPayment is the net payable per employee. The bank account
// identifier is joined on by the caller; the engine supplies amounts only.
type BankPayment struct {
	EmployeeID EmployeeID
	Net        decimal.Decimal
}

// BankPayments reduces payslips to the payment list.
func BankPayments(slips []PayslipTotals) []BankPayment {
	out := make([]BankPayment, 0, len(slips))
	for _, s := range slips {
		out = append(out, BankPayment{EmployeeID: s.EmployeeID, Net: s.Net})
	}
	return out
}

// TotalsByKind sums a run's provision amounts per benefit kind.
func TotalsByKind(run *Run) map[BenefitKind]decimal.Decimal {
	totals := make(map[BenefitKind]decimal.Decimal)
	for _, line := range run.Lines {
		totals[line.Kind] = totals[line.Kind].Add(line.Amount)
	}
	return totals
}

// TotalsByEmployee sums a run's provision amounts per employee, across
// all contract segments - the only place multi-segment lines merge.
func TotalsByEmployee(run *Run) map[EmployeeID]decimal.Decimal {
	totals := make(map[EmployeeID]decimal.Decimal)
	for _, line := range run.Lines {
		totals[line.EmployeeID] = totals[line.EmployeeID].Add(line.Amount)
	}
	return totals
}
