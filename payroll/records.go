/*
Package payroll holds the HR-facing records and rules around the
calculation engine: who employees are, how their contracts change over
time, and how confirmed results get corrected.

The engine stays pure and I/O-free; this package materializes its inputs
from stored records and enforces the write-time rules (fail-fast contract
validation, append-only wage history, adjustment discipline) that keep
those inputs calculable.

SEE ALSO:
  - engine: the calculation core this feeds
  - store/sqlite: persistence for every record defined here
*/
package payroll

import (
	"github.com/andino-hr/payroll-engine/engine"
)

// EmployeeRecord is the stored employee: the engine-facing affiliation
// snapshot plus the identity and payment fields only the outer layers use.
type EmployeeRecord struct {
	engine.Employee

	FirstName string
	LastName  string
	Email     string

	// Bank details joined onto the payment file; never read by the engine.
	BankName    string
	BankAccount string
}

// FullName is the display name for reports.
func (e EmployeeRecord) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	default:
		return e.FirstName + " " + e.LastName
	}
}

// Fund types an affiliation event can change.
const (
	FundTypeHealth       = "health"
	FundTypePension      = "pension"
	FundTypeSeverance    = "severance"
	FundTypeRisk         = "risk"
	FundTypeCompensation = "compensation"
)

// AffiliationEvent is one fund-affiliation change on an employee. The
// employee row only materializes the latest funds; the ones in force on
// any date replay from this log the way wages do.
type AffiliationEvent struct {
	EmployeeID    engine.EmployeeID
	FundType      string
	PreviousFund  engine.FundCode
	NewFund       engine.FundCode
	EffectiveDate engine.Date
}

// FundAt replays the log for one fund type on a date. Before the first
// event the first event's previous fund applies; with no events the
// fallback (the materialized affiliation) is the answer.
func FundAt(events []AffiliationEvent, fundType string, on engine.Date, fallback engine.FundCode) engine.FundCode {
	var own []AffiliationEvent
	for _, ev := range events {
		if ev.FundType == fundType {
			own = append(own, ev)
		}
	}
	if len(own) == 0 {
		return fallback
	}
	fund := own[0].PreviousFund
	for _, ev := range own {
		if ev.EffectiveDate.After(on) {
			break
		}
		fund = ev.NewFund
	}
	return fund
}

// EmployeeData is everything stored about one employee, assembled by the
// store for a calculation.
type EmployeeData struct {
	Record           EmployeeRecord
	Contracts        []engine.Contract
	WageEvents       []engine.WageEvent
	Novelties        []engine.Novelty
	VariableEarnings []engine.VariableEarning
	Overtime         []engine.OvertimeEntry
}

// BuildInput materializes the engine input for one employee. Only open or
// closed contracts participate; drafts and suspended contracts never
// reach a calculation.
func BuildInput(data EmployeeData) engine.EmployeeInput {
	var active []engine.Contract
	for _, c := range data.Contracts {
		if c.State == engine.ContractOpen || c.State == engine.ContractClosed {
			active = append(active, c)
		}
	}
	return engine.EmployeeInput{
		Employee:         data.Record.Employee,
		Contracts:        active,
		WageEvents:       data.WageEvents,
		Novelties:        data.Novelties,
		VariableEarnings: data.VariableEarnings,
		Overtime:         data.Overtime,
	}
}
