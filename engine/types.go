/*
Package engine computes Colombian statutory payroll provisions and
contributions.

PURPOSE:
  Given an employee's contract history, wage-change events and worked-time
  novelties for a period, the engine produces exact monetary bases and
  amounts under Colombian labor law: severance (cesantias), severance
  interest, prima de servicios, vacations, social-security contribution
  bases (IBC) and the derived health/pension/ARL/parafiscal amounts, plus
  income-tax withholding.

KEY CONCEPTS IN THIS FILE (types.go):
  - BenefitKind / ContributionKind / NoveltyKind: closed enumerations with
    compile-time dispatch tables (no stringly-typed rule lookups)
  - Contract, WageEvent, Novelty, Employee: snapshot input records,
    already materialized by the caller - the engine does no I/O
  - ProvisionLine / ContributionLine: the computed, recomputable outputs

DESIGN PRINCIPLES:
  1. Purity: the engine is a pure function of (snapshots, novelties,
     period, legal parameters); re-running yields bit-identical output
  2. Precision: decimal.Decimal everywhere; rounding only at final amounts
  3. Explicit configuration: legal parameters are passed in, keyed by the
     period's year - no ambient "current company" context
  4. Closed dispatch: benefit behavior is selected through typed tables,
     so a new kind fails to compile until every table covers it

SEE ALSO:
  - calendar.go: 30/360 legal-day convention
  - segment.go: contract snapshot resolution
  - base.go: per-benefit base and amount rules
  - engine.go: orchestration and the run state machine
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ContractID string
type RunID string
type FundCode string

// =============================================================================
// MONEY HELPERS
// =============================================================================

// COP builds a peso amount from an integer value. Test and fixture helper;
// real inputs arrive as decimals.
func COP(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// MustDecimal parses a decimal literal, returning zero on malformed input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// BENEFIT KINDS - Closed enumeration
// =============================================================================

// BenefitKind identifies a statutory benefit or base the engine computes.
// The zero value is invalid on purpose: lines must name their kind.
type BenefitKind int

const (
	benefitInvalid BenefitKind = iota

	// BenefitSeverance is the cesantias provision: roughly one month's pay
	// per 360 worked days, deposited with a severance fund.
	BenefitSeverance

	// BenefitSeveranceInterest is the 12% annual interest on severance.
	BenefitSeveranceInterest

	// BenefitPrima is the semi-annual service bonus, computed like severance.
	BenefitPrima

	// BenefitVacation accrues 15 paid days per 360 worked days.
	BenefitVacation

	// BenefitIBC is the social-security contribution base income for the
	// period; contribution amounts derive from it.
	BenefitIBC
)

// AllBenefitKinds lists every computable kind, in reporting order.
var AllBenefitKinds = []BenefitKind{
	BenefitSeverance,
	BenefitSeveranceInterest,
	BenefitPrima,
	BenefitVacation,
	BenefitIBC,
}

var benefitNames = map[BenefitKind]string{
	BenefitSeverance:         "severance",
	BenefitSeveranceInterest: "severance_interest",
	BenefitPrima:             "prima",
	BenefitVacation:          "vacation",
	BenefitIBC:               "ibc",
}

func (k BenefitKind) String() string {
	if s, ok := benefitNames[k]; ok {
		return s
	}
	return "invalid"
}

// ParseBenefitKind maps a wire name back to its kind.
func ParseBenefitKind(s string) (BenefitKind, bool) {
	for k, name := range benefitNames {
		if name == s {
			return k, true
		}
	}
	return benefitInvalid, false
}

// =============================================================================
// CONTRIBUTION KINDS - Derived from the IBC line
// =============================================================================

type ContributionKind int

const (
	contributionInvalid ContributionKind = iota
	ContributionHealthEmployee
	ContributionHealthEmployer
	ContributionPensionEmployee
	ContributionPensionEmployer
	ContributionARL
	ContributionICBF
	ContributionSENA
	ContributionCCF
)

var contributionNames = map[ContributionKind]string{
	ContributionHealthEmployee:  "health_employee",
	ContributionHealthEmployer:  "health_employer",
	ContributionPensionEmployee: "pension_employee",
	ContributionPensionEmployer: "pension_employer",
	ContributionARL:             "arl",
	ContributionICBF:            "icbf",
	ContributionSENA:            "sena",
	ContributionCCF:             "ccf",
}

func (k ContributionKind) String() string {
	if s, ok := contributionNames[k]; ok {
		return s
	}
	return "invalid"
}

// AllContributionKinds lists every contribution in PILA reporting order.
var AllContributionKinds = []ContributionKind{
	ContributionHealthEmployee,
	ContributionHealthEmployer,
	ContributionPensionEmployee,
	ContributionPensionEmployer,
	ContributionARL,
	ContributionICBF,
	ContributionSENA,
	ContributionCCF,
}

// contributionRates holds the statutory percentage for each contribution.
// ARL is absent: its rate depends on the contract's risk class.
var contributionRates = map[ContributionKind]decimal.Decimal{
	ContributionHealthEmployee:  MustDecimal("4"),
	ContributionHealthEmployer:  MustDecimal("8.5"),
	ContributionPensionEmployee: MustDecimal("4"),
	ContributionPensionEmployer: MustDecimal("12"),
	ContributionICBF:            MustDecimal("3"),
	ContributionSENA:            MustDecimal("2"),
	ContributionCCF:             MustDecimal("4"),
}

// =============================================================================
// RISK CLASS - Drives the ARL rate
// =============================================================================

// RiskClass is the occupational-risk class (I-V) on the contract.
type RiskClass int

const (
	RiskClassI   RiskClass = 1
	RiskClassII  RiskClass = 2
	RiskClassIII RiskClass = 3
	RiskClassIV  RiskClass = 4
	RiskClassV   RiskClass = 5
)

// arlRates maps risk class to the statutory ARL percentage.
var arlRates = map[RiskClass]decimal.Decimal{
	RiskClassI:   MustDecimal("0.522"),
	RiskClassII:  MustDecimal("1.044"),
	RiskClassIII: MustDecimal("2.436"),
	RiskClassIV:  MustDecimal("4.350"),
	RiskClassV:   MustDecimal("6.960"),
}

func (r RiskClass) Valid() bool {
	_, ok := arlRates[r]
	return ok
}

// ARLRate returns the statutory percentage for the class.
func (r RiskClass) ARLRate() decimal.Decimal { return arlRates[r] }

// =============================================================================
// WAGE AND CONTRACT CONFIGURATION
// =============================================================================

type WageType string

const (
	WageOrdinary WageType = "ordinary"
	WageIntegral WageType = "integral"
)

// SeverancePolicy selects what the severance base includes.
type SeverancePolicy string

const (
	// SeveranceBaseAll: wage plus every salary-constitutive concept.
	SeveranceBaseAll SeverancePolicy = "all"
	// SeveranceBaseWageOnly: basic wage, nothing else.
	SeveranceBaseWageOnly SeverancePolicy = "wage"
	// SeveranceBaseLegal: the legal default, wage plus transport allowance.
	SeveranceBaseLegal SeverancePolicy = "legal"
)

type ContractState string

const (
	ContractDraft     ContractState = "draft"
	ContractOpen      ContractState = "open"
	ContractSuspended ContractState = "suspended"
	ContractClosed    ContractState = "closed"
)

// WithholdingMethod selects how income-tax withholding is computed.
type WithholdingMethod string

const (
	WithholdingNone       WithholdingMethod = "none"
	WithholdingFixed      WithholdingMethod = "fixed"
	WithholdingPercentage WithholdingMethod = "percentage"
	WithholdingTable      WithholdingMethod = "table"
)

// WithholdingProcedure is the DIAN procedure: 1 computes period by period,
// 2 fixes a rate from a trailing income average.
type WithholdingProcedure int

const (
	Procedure1 WithholdingProcedure = 1
	Procedure2 WithholdingProcedure = 2
)

// Contract is the engine-facing snapshot of a labor contract. It belongs
// to exactly one employee; validity is [Start, End] with a nil End for
// open-ended contracts.
type Contract struct {
	ID         ContractID
	EmployeeID EmployeeID

	Wage           decimal.Decimal
	WageType       WageType
	IntegralFactor decimal.Decimal // percent, >= 70 for integral contracts

	TransportAllowance bool
	SeverancePolicy    SeverancePolicy
	RiskClass          RiskClass

	Withholding WithholdingConfig

	Start Date
	End   *Date
	State ContractState
}

// Integral reports whether the contract carries an integral salary.
func (c Contract) Integral() bool { return c.WageType == WageIntegral }

// ValidOn reports whether the contract covers the given day.
func (c Contract) ValidOn(d Date) bool {
	if d.Before(c.Start) {
		return false
	}
	return c.End == nil || d.BeforeOrEqual(*c.End)
}

// EndOrOpen returns the contract end, or fallback when open-ended.
func (c Contract) EndOrOpen(fallback Date) Date {
	if c.End != nil {
		return *c.End
	}
	return fallback
}

// WithholdingConfig is the contract-level withholding setup.
type WithholdingConfig struct {
	Method     WithholdingMethod
	Procedure  WithholdingProcedure
	FixedValue decimal.Decimal
	Percentage decimal.Decimal

	// ExemptIncomePct is subtracted from taxable income before bracket
	// lookup. Statutory cap: 25.
	ExemptIncomePct decimal.Decimal

	// TrailingAverageIncome is the procedure-2 averaging base, materialized
	// by the caller from the prior semester's payslips.
	TrailingAverageIncome decimal.Decimal
}

// WageEvent is one entry of the append-only wage history. The wage in
// force at any time is derived from this log; the contract's Wage field is
// only the latest read.
type WageEvent struct {
	ContractID    ContractID
	PreviousWage  decimal.Decimal
	NewWage       decimal.Decimal
	EffectiveDate Date
}

// VariableEarning is a salary-constitutive variable amount (commissions,
// overtime) reported for a month, used for trailing-average inclusion.
type VariableEarning struct {
	ContractID ContractID
	Month      Date // first day of the month
	Amount     decimal.Decimal
}

// =============================================================================
// NOVELTIES - Time-bounded attendance adjustments
// =============================================================================

type NoveltyKind string

const (
	NoveltyVacation    NoveltyKind = "vacation"
	NoveltyIncapacity  NoveltyKind = "incapacity"
	NoveltyMaternity   NoveltyKind = "maternity"
	NoveltyPaidLeave   NoveltyKind = "paid_leave"
	NoveltyUnpaidLeave NoveltyKind = "unpaid_leave"
	NoveltySuspension  NoveltyKind = "suspension"
)

// Novelty is a time-bounded event overlapping a contract's validity that
// affects worked days and, for some kinds, the contribution base policy.
type Novelty struct {
	EmployeeID EmployeeID
	ContractID ContractID
	Kind       NoveltyKind
	From       Date
	To         Date
	Paid       bool
}

// =============================================================================
// EMPLOYEE - Identity and fund affiliations
// =============================================================================

// Employee carries the identity and affiliation data the engine needs.
// Fund affiliations must be the ones effective for the period; historical
// versioning is the caller's concern.
type Employee struct {
	ID             EmployeeID
	IdentityType   string
	IdentityNumber string
	BirthDate      Date

	HealthFund       FundCode
	PensionFund      FundCode
	SeveranceFund    FundCode
	RiskInsurer      FundCode
	CompensationFund FundCode
}

// =============================================================================
// OUTPUTS
// =============================================================================

// ProvisionLine is one computed benefit amount for one contract segment.
// Lines are derived and recomputable; they are never edited in place -
// corrections happen through additive adjustment records.
type ProvisionLine struct {
	EmployeeID EmployeeID
	ContractID ContractID
	Kind       BenefitKind

	// Base is the monthly-equivalent base the amount was prorated from.
	Base decimal.Decimal
	// Amount is the final, 2-decimal-rounded benefit amount.
	Amount decimal.Decimal

	WorkedDays   int
	SegmentFrom  Date
	SegmentTo    Date
	Period       Period

	// Fund references carried for run validation and PILA grouping.
	HealthFund  FundCode
	PensionFund FundCode
}

// ContributionLine is one social-security or parafiscal amount derived
// from an IBC line, keyed by the receiving fund.
type ContributionLine struct {
	EmployeeID EmployeeID
	ContractID ContractID
	Kind       ContributionKind
	Fund       FundCode
	IBC        decimal.Decimal
	Amount     decimal.Decimal
	Period     Period
}
