/*
engine.go - Provision engine and the calculation-run state machine

PURPOSE:
  Orchestrates the whole pipeline: resolve wage segments, resolve
  novelties, compute one base and one amount per (segment, benefit kind),
  and emit ProvisionLines. Segments are never merged - a termination and a
  rehire inside one period produce two independently prorated lines, and
  only the aggregation layer sums them.

PURITY AND IDEMPOTENCE:
  Calculate is a pure function of (snapshots, novelties, period, legal
  parameters). Re-running with the same inputs yields bit-identical
  ProvisionLines. Legal parameters are snapshotted once at run start, so a
  concurrent configuration change cannot affect a run in flight.

BATCH SEMANTICS:
  Employees are independent; a failed employee contributes no lines at all
  (all-or-nothing per employee) and is reported in the EmployeeError list
  while the batch continues. Cancellation via context is honored between
  employees, never inside one.

RUN STATE MACHINE:
    draft -> calculated -> validated -> confirmed
                 |              |
                 +---- reset ---+--> draft
    cancelled reachable from any non-confirmed state
  confirmed is terminal: lines become immutable and corrections go through
  additive adjustment records only.

SEE ALSO:
  - base.go: the per-benefit rules this drives
  - aggregate.go: summation across lines for PILA / payslips / bank
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUTS
// =============================================================================

// EmployeeInput is everything the engine needs for one employee,
// materialized by the caller before the run starts.
type EmployeeInput struct {
	Employee         Employee
	Contracts        []Contract
	WageEvents       []WageEvent
	Novelties        []Novelty
	VariableEarnings []VariableEarning

	// Overtime only affects payslip earnings; provisions derive variable
	// pay from VariableEarnings instead.
	Overtime []OvertimeEntry
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Config CalculationConfig
}

func New(cfg CalculationConfig) *Engine {
	return &Engine{Config: cfg}
}

// Calculate runs the provision pipeline for a period over a batch of
// employees. The returned run is in StateCalculated and carries one
// ProvisionLine per (employee, contract segment, benefit kind), plus the
// contribution lines derived from each IBC line.
//
// Per-employee failures are collected, not fatal; a non-nil error means
// the run itself could not proceed (bad period, missing parameters,
// cancellation).
func (e *Engine) Calculate(ctx context.Context, period Period, inputs []EmployeeInput, kinds []BenefitKind) (*Run, []EmployeeError, error) {
	if period.To.Before(period.From) {
		return nil, nil, NewValidationError("period", "end before start", ErrInvalidPeriod)
	}
	if len(kinds) == 0 {
		kinds = AllBenefitKinds
	}

	// Snapshot the legal parameters once, keyed by the period's year.
	params, err := e.Config.Params.ForYear(period.Year())
	if err != nil {
		return nil, nil, err
	}

	run := NewRun(period)
	var failures []EmployeeError

	for _, in := range inputs {
		// Coarse-grained cancellation: between employees only, so no
		// employee is ever half-written.
		if err := ctx.Err(); err != nil {
			return run, failures, err
		}

		lines, contribs, err := e.calculateEmployee(in, period, params, kinds)
		if err != nil {
			failures = append(failures, EmployeeError{EmployeeID: in.Employee.ID, Err: err})
			continue
		}
		run.Lines = append(run.Lines, lines...)
		run.Contributions = append(run.Contributions, contribs...)
	}

	run.transition(RunCalculated, "engine")
	return run, failures, nil
}

// calculateEmployee is all-or-nothing: any error discards every line the
// employee would have produced.
func (e *Engine) calculateEmployee(in EmployeeInput, period Period, params LegalParams, kinds []BenefitKind) ([]ProvisionLine, []ContributionLine, error) {
	segments, err := ResolveSegments(in.Contracts, in.WageEvents, period)
	if err != nil {
		return nil, nil, err
	}

	wantIBC := false
	for _, k := range kinds {
		if k == BenefitIBC {
			wantIBC = true
		}
	}
	if wantIBC {
		if in.Employee.HealthFund == "" {
			return nil, nil, &ConfigurationError{Parameter: "health fund affiliation for employee " + string(in.Employee.ID), cause: ErrMissingFund}
		}
		if in.Employee.PensionFund == "" {
			return nil, nil, &ConfigurationError{Parameter: "pension fund affiliation for employee " + string(in.Employee.ID), cause: ErrMissingFund}
		}
	}

	variableByContract := e.variableAverages(in.Contracts, in.VariableEarnings, period)

	var lines []ProvisionLine
	var contribs []ContributionLine

	// Chronological order matters: ResolveSegments guarantees it, and the
	// accumulated day-weighted sums downstream depend on it.
	for _, seg := range segments {
		days, err := ResolveNovelties(seg, in.Novelties)
		if err != nil {
			return nil, nil, err
		}

		bc := BaseCalculator{Params: params, VariableAverage: variableByContract[seg.ContractID]}

		for _, kind := range kinds {
			base, err := bc.Base(kind, seg)
			if err != nil {
				return nil, nil, err
			}
			amount, err := bc.Amount(kind, base, days)
			if err != nil {
				return nil, nil, err
			}

			line := ProvisionLine{
				EmployeeID:  in.Employee.ID,
				ContractID:  seg.ContractID,
				Kind:        kind,
				Base:        base,
				Amount:      amount,
				WorkedDays:  days.Worked(),
				SegmentFrom: seg.From,
				SegmentTo:   seg.To,
				Period:      period,
				HealthFund:  in.Employee.HealthFund,
				PensionFund: in.Employee.PensionFund,
			}
			lines = append(lines, line)

			if kind == BenefitIBC {
				cs, err := contributionsFor(in.Employee, seg, amount, period)
				if err != nil {
					return nil, nil, err
				}
				contribs = append(contribs, cs...)
			}
		}
	}
	return lines, contribs, nil
}

// variableAverages computes the trailing-average variable component per
// contract. Provisions and payslips must price contribution bases off the
// same average or the PILA report and the payslip deductions diverge.
func (e *Engine) variableAverages(contracts []Contract, earnings []VariableEarning, period Period) map[ContractID]decimal.Decimal {
	out := make(map[ContractID]decimal.Decimal, len(contracts))
	for _, c := range contracts {
		var own []VariableEarning
		for _, v := range earnings {
			if v.ContractID == c.ID {
				own = append(own, v)
			}
		}
		out[c.ID] = VariableAverageFor(own, period, e.Config.variableWindow())
	}
	return out
}

// contributionsFor derives every statutory contribution from a period IBC.
func contributionsFor(emp Employee, seg WageSegment, ibc decimal.Decimal, period Period) ([]ContributionLine, error) {
	if !seg.RiskClass.Valid() {
		return nil, NewValidationError("risk_class", "risk class must be 1-5", nil)
	}

	funds := map[ContributionKind]FundCode{
		ContributionHealthEmployee:  emp.HealthFund,
		ContributionHealthEmployer:  emp.HealthFund,
		ContributionPensionEmployee: emp.PensionFund,
		ContributionPensionEmployer: emp.PensionFund,
		ContributionARL:             emp.RiskInsurer,
		ContributionICBF:            FundCode("ICBF"),
		ContributionSENA:            FundCode("SENA"),
		ContributionCCF:             emp.CompensationFund,
	}

	out := make([]ContributionLine, 0, len(AllContributionKinds))
	for _, kind := range AllContributionKinds {
		rate, ok := contributionRates[kind]
		if kind == ContributionARL {
			rate, ok = seg.RiskClass.ARLRate(), true
		}
		if !ok {
			return nil, &InconsistencyError{Detail: "no rate for contribution kind " + kind.String()}
		}
		out = append(out, ContributionLine{
			EmployeeID: emp.ID,
			ContractID: seg.ContractID,
			Kind:       kind,
			Fund:       funds[kind],
			IBC:        ibc,
			Amount:     Round2(ibc.Mul(rate).Div(hundred)),
			Period:     period,
		})
	}
	return out, nil
}

// =============================================================================
// CALCULATION RUN - State machine over a line set
// =============================================================================

type RunState string

const (
	RunDraft      RunState = "draft"
	RunCalculated RunState = "calculated"
	RunValidated  RunState = "validated"
	RunConfirmed  RunState = "confirmed"
	RunCancelled  RunState = "cancelled"
)

// RunEvent records one state transition for the audit trail.
type RunEvent struct {
	From  RunState
	To    RunState
	Actor string
	At    time.Time
}

// Run is one period-scoped calculation: the lines, the contributions and
// the lifecycle state. Lines are owned by the run and referenced, never
// owned, by contracts and employees.
type Run struct {
	ID            RunID
	Period        Period
	State         RunState
	Lines         []ProvisionLine
	Contributions []ContributionLine
	History       []RunEvent
}

func NewRun(period Period) *Run {
	return &Run{Period: period, State: RunDraft}
}

func (r *Run) transition(to RunState, actor string) {
	r.History = append(r.History, RunEvent{From: r.State, To: to, Actor: actor, At: time.Now().UTC()})
	r.State = to
}

// Validate enforces the gates required before the run may advance:
//   - every IBC line's monthly base at or above the minimum wage
//   - every line with resolved health and pension funds
//   - every line's worked days within the period's legal span
func (r *Run) Validate(params LegalParams, actor string) error {
	if r.State != RunCalculated {
		return runStateError(r.State, RunValidated)
	}

	periodDays, err := r.Period.LegalDays()
	if err != nil {
		return err
	}

	for _, line := range r.Lines {
		if line.Kind == BenefitIBC && line.Base.LessThan(params.MinimumWage) {
			return NewValidationError("ibc_base",
				"IBC base below minimum wage for employee "+string(line.EmployeeID), nil)
		}
		if line.HealthFund == "" || line.PensionFund == "" {
			return NewValidationError("funds",
				"unresolved health or pension fund for employee "+string(line.EmployeeID), nil)
		}
		if line.WorkedDays > periodDays {
			return NewValidationError("worked_days",
				"worked days exceed the period span for employee "+string(line.EmployeeID), nil)
		}
	}

	r.transition(RunValidated, actor)
	return nil
}

// Confirm makes the run terminal. No line mutation is possible afterward;
// corrections require a new period or an adjustment record.
func (r *Run) Confirm(actor string) error {
	if r.State != RunValidated {
		return runStateError(r.State, RunConfirmed)
	}
	r.transition(RunConfirmed, actor)
	return nil
}

// Reset returns a calculated or validated run to draft, discarding its
// lines so a recalculation starts clean.
func (r *Run) Reset(actor string) error {
	if r.State != RunCalculated && r.State != RunValidated {
		return runStateError(r.State, RunDraft)
	}
	r.Lines = nil
	r.Contributions = nil
	r.transition(RunDraft, actor)
	return nil
}

// Cancel aborts the run. Any state but confirmed may be cancelled.
func (r *Run) Cancel(actor string) error {
	if r.State == RunConfirmed {
		return &ValidationError{Field: "state", Reason: "confirmed runs cannot be cancelled", cause: ErrRunConfirmed}
	}
	if r.State == RunCancelled {
		return runStateError(r.State, RunCancelled)
	}
	r.transition(RunCancelled, actor)
	return nil
}

func runStateError(from, to RunState) error {
	return &ValidationError{
		Field:  "state",
		Reason: "cannot move from " + string(from) + " to " + string(to),
		cause:  ErrRunState,
	}
}
