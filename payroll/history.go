/*
history.go - Append-only wage history

PURPOSE:
  The wage in force at any date is a derived read over an append-only
  event log, never a mutable column. Editing a contract's wage means
  appending a WageEvent; the contract's Wage field is only the latest
  materialized value.

INVARIANTS:
  1. Events are strictly chronological per contract - no backdating past
     an existing event
  2. Each event's previous wage must equal the wage the log derives for
     the day before its effective date
  3. New wages are positive

  Together these make the log self-consistent: replaying it from the
  first event's previous wage always reproduces the current wage.

SEE ALSO:
  - engine/segment.go: the resolver consuming this log per period
  - store/sqlite: the wage_history table persisting it
*/
package payroll

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/andino-hr/payroll-engine/engine"
)

// WageHistory is the ordered event log for one contract.
type WageHistory struct {
	ContractID engine.ContractID
	Events     []engine.WageEvent
}

// NewWageHistory wraps and chronologically sorts existing events.
func NewWageHistory(contractID engine.ContractID, events []engine.WageEvent) WageHistory {
	own := make([]engine.WageEvent, 0, len(events))
	for _, ev := range events {
		if ev.ContractID == contractID {
			own = append(own, ev)
		}
	}
	sort.Slice(own, func(i, j int) bool {
		return own[i].EffectiveDate.Before(own[j].EffectiveDate)
	})
	return WageHistory{ContractID: contractID, Events: own}
}

// Append records a wage change effective on a date. The event must be
// consistent with the log: strictly after the last event, positive, and
// carrying the wage currently in force as its previous wage.
func (h *WageHistory) Append(contract engine.Contract, newWage decimal.Decimal, effective engine.Date) (engine.WageEvent, error) {
	if !newWage.IsPositive() {
		return engine.WageEvent{}, engine.NewValidationError("new_wage", "wage must be positive", nil)
	}
	if effective.Before(contract.Start) {
		return engine.WageEvent{}, engine.NewValidationError("effective_date",
			"wage change precedes the contract start", engine.ErrOutsideContract)
	}
	if n := len(h.Events); n > 0 && !effective.After(h.Events[n-1].EffectiveDate) {
		return engine.WageEvent{}, engine.NewValidationError("effective_date",
			"wage change must be after the last recorded change on "+h.Events[n-1].EffectiveDate.String(), nil)
	}

	ev := engine.WageEvent{
		ContractID:    h.ContractID,
		PreviousWage:  h.WageAt(contract, effective.AddDays(-1)),
		NewWage:       newWage,
		EffectiveDate: effective,
	}
	h.Events = append(h.Events, ev)
	return ev, nil
}

// WageAt derives the wage in force on a date. Before the first event the
// first event's previous wage applies; with an empty log the contract's
// wage field is the answer.
func (h WageHistory) WageAt(contract engine.Contract, on engine.Date) decimal.Decimal {
	if len(h.Events) == 0 {
		return contract.Wage
	}
	wage := h.Events[0].PreviousWage
	for _, ev := range h.Events {
		if ev.EffectiveDate.After(on) {
			break
		}
		wage = ev.NewWage
	}
	return wage
}

// Current returns the latest wage the log derives.
func (h WageHistory) Current(contract engine.Contract) decimal.Decimal {
	if len(h.Events) == 0 {
		return contract.Wage
	}
	return h.Events[len(h.Events)-1].NewWage
}
