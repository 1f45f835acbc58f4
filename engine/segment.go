/*
segment.go - Contract snapshot resolution

PURPOSE:
  Reconstructs, for one employee and one period, the ordered sequence of
  wage states in force: which contract, at which wage, with which
  configuration, from when to when. Everything downstream (bases, amounts,
  contributions) is computed per segment.

RESOLUTION RULES:
  - Each contract contributes the intersection of its validity with the
    period. Multiple sequential contracts (termination + rehire inside the
    same period) produce multiple segments; that is the normal case, not
    an error, and downstream sums across them.
  - A wage event inside a segment splits it at the change date: the old
    wage runs through the day before, the new wage from the event day.
  - Segments are chronological, non-overlapping, and cover exactly the
    intersection of the period with the contract history.

WEIGHTED AVERAGE:
  When one base figure is needed for a span covering several wages, the
  day-weighted average sum(wage_i * days_i) / sum(days_i) is used - never
  the wage at the start or end alone. The average is associative under
  splitting, which the tests pin down.

SEE ALSO:
  - base.go: consumes segments per benefit kind
  - payroll/history.go: the append-only wage event log feeding this
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WAGE SEGMENT
// =============================================================================

// WageSegment is one homogeneous stretch of a contract: constant wage and
// configuration over [From, To].
type WageSegment struct {
	ContractID ContractID

	Wage              decimal.Decimal
	Integral          bool
	TransportEligible bool
	SeverancePolicy   SeverancePolicy
	RiskClass         RiskClass

	From Date
	To   Date
}

// LegalDays returns the segment span under the 30/360 convention.
func (s WageSegment) LegalDays() (int, error) {
	return LegalDays(s.From, s.To)
}

// =============================================================================
// RESOLVER
// =============================================================================

// ResolveSegments builds the ordered WageSegment sequence for a period
// from the employee's contracts and wage-event log.
//
// Returns ErrOutsideContract (as a ValidationError) when the period does
// not intersect any contract, and ErrOverlappingSegments (as an
// InconsistencyError) when contract validities overlap.
func ResolveSegments(contracts []Contract, events []WageEvent, period Period) ([]WageSegment, error) {
	if period.To.Before(period.From) {
		return nil, NewValidationError("period", "end before start", ErrInvalidPeriod)
	}

	eventsByContract := make(map[ContractID][]WageEvent)
	for _, ev := range events {
		eventsByContract[ev.ContractID] = append(eventsByContract[ev.ContractID], ev)
	}
	for _, evs := range eventsByContract {
		sort.Slice(evs, func(i, j int) bool { return evs[i].EffectiveDate.Before(evs[j].EffectiveDate) })
	}

	var segments []WageSegment
	for _, c := range contracts {
		span, ok := period.Intersect(c.Start, c.EndOrOpen(period.To))
		if !ok {
			continue
		}
		segments = append(segments, splitByWage(c, eventsByContract[c.ID], span)...)
	}

	if len(segments) == 0 {
		return nil, NewValidationError("period", "no contract covers "+period.String(), ErrOutsideContract)
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].From.Before(segments[j].From) })

	for i := 1; i < len(segments); i++ {
		if !segments[i].From.After(segments[i-1].To) {
			return nil, &InconsistencyError{
				Detail: fmt.Sprintf("segments %s and %s overlap at %s",
					segments[i-1].ContractID, segments[i].ContractID, segments[i].From),
				cause: ErrOverlappingSegments,
			}
		}
	}
	return segments, nil
}

// splitByWage cuts a contract's span at every wage change inside it.
func splitByWage(c Contract, events []WageEvent, span Period) []WageSegment {
	seg := func(wage decimal.Decimal, from, to Date) WageSegment {
		return WageSegment{
			ContractID:        c.ID,
			Wage:              wage,
			Integral:          c.Integral(),
			TransportEligible: c.TransportAllowance,
			SeverancePolicy:   c.SeverancePolicy,
			RiskClass:         c.RiskClass,
			From:              from,
			To:                to,
		}
	}

	var out []WageSegment
	cursor := span.From
	wage := wageAt(c, events, span.From)

	for _, ev := range events {
		if !span.Contains(ev.EffectiveDate) || !ev.EffectiveDate.After(cursor) {
			continue
		}
		out = append(out, seg(wage, cursor, ev.EffectiveDate.AddDays(-1)))
		cursor = ev.EffectiveDate
		wage = ev.NewWage
	}
	out = append(out, seg(wage, cursor, span.To))
	return out
}

// wageAt derives the wage in force on a day from the event log. Before the
// first event the first event's previous wage applies; with no events the
// contract's wage field is the only read.
func wageAt(c Contract, events []WageEvent, on Date) decimal.Decimal {
	if len(events) == 0 {
		return c.Wage
	}
	wage := events[0].PreviousWage
	for _, ev := range events {
		if ev.EffectiveDate.After(on) {
			break
		}
		wage = ev.NewWage
	}
	return wage
}

// =============================================================================
// DAY-WEIGHTED AVERAGE
// =============================================================================

// WeightedAverageWage returns sum(wage_i * days_i) / sum(days_i) across
// segments, plus the total day count. Segments must be processed in
// chronological order; ResolveSegments guarantees that.
func WeightedAverageWage(segments []WageSegment) (decimal.Decimal, int, error) {
	total := 0
	weighted := decimal.Zero
	for _, s := range segments {
		days, err := s.LegalDays()
		if err != nil {
			return decimal.Zero, 0, err
		}
		total += days
		weighted = weighted.Add(s.Wage.Mul(decimal.NewFromInt(int64(days))))
	}
	if total == 0 {
		return decimal.Zero, 0, nil
	}
	return weighted.Div(decimal.NewFromInt(int64(total))), total, nil
}
