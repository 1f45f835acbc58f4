/*
novelty.go - Worked-day resolution

PURPOSE:
  Intersects novelties (vacation, incapacity, maternity, leave,
  suspension) with a wage segment and produces the day breakdown every
  base calculation consumes.

ATTENDANCE VS BASE:
  Two different day counts matter:

    WorkedDays  segment days minus unpaid novelty days. Prorates severance,
                interest, prima and vacation.
    IBCDays     additionally reduced by paid incapacity days. Vacation and
                maternity days never reduce it: vacation is paid with the
                base unchanged, and maternity keeps the full wage by law
                regardless of attendance.

  So 10 days of unpaid suspension in a 30-day month leaves 20 worked days
  and 20 IBC days; 10 days of paid incapacity leaves 30 worked days but 20
  IBC days; 30 days of maternity leaves full counts on both.
*/
package engine

// DayBreakdown is the per-segment attendance summary.
type DayBreakdown struct {
	SegmentDays int

	VacationDays   int
	IncapacityDays int
	MaternityDays  int
	SuspensionDays int
	LeaveDays      int

	// UnpaidDays is the total of novelty days flagged unpaid.
	UnpaidDays int
	// paidIncapacityDays reduce the IBC but not the benefit proration.
	paidIncapacityDays int
}

// Worked returns attendance-adjusted days: segment minus unpaid novelties.
func (b DayBreakdown) Worked() int {
	d := b.SegmentDays - b.UnpaidDays
	if d < 0 {
		return 0
	}
	return d
}

// IBCDays returns the day count the contribution base prorates over.
func (b DayBreakdown) IBCDays() int {
	d := b.Worked() - b.paidIncapacityDays
	if d < 0 {
		return 0
	}
	return d
}

// ResolveNovelties intersects the employee's novelties with one segment.
// Novelties outside the segment, or for other contracts, are ignored.
// Unpaid novelty days exceeding the segment span are a ValidationError.
func ResolveNovelties(seg WageSegment, novelties []Novelty) (DayBreakdown, error) {
	segDays, err := seg.LegalDays()
	if err != nil {
		return DayBreakdown{}, err
	}
	b := DayBreakdown{SegmentDays: segDays}

	span := Period{From: seg.From, To: seg.To}
	for _, n := range novelties {
		if n.ContractID != "" && n.ContractID != seg.ContractID {
			continue
		}
		overlap, ok := span.Intersect(n.From, n.To)
		if !ok {
			continue
		}
		days, err := overlap.LegalDays()
		if err != nil {
			return DayBreakdown{}, err
		}

		switch n.Kind {
		case NoveltyVacation:
			b.VacationDays += days
		case NoveltyIncapacity:
			b.IncapacityDays += days
			if n.Paid {
				b.paidIncapacityDays += days
			}
		case NoveltyMaternity:
			b.MaternityDays += days
		case NoveltySuspension:
			b.SuspensionDays += days
		case NoveltyPaidLeave, NoveltyUnpaidLeave:
			b.LeaveDays += days
		}
		if !n.Paid {
			b.UnpaidDays += days
		}
	}

	if b.UnpaidDays > b.SegmentDays {
		return DayBreakdown{}, NewValidationError("novelties",
			"unpaid novelty days exceed the segment span", nil)
	}
	return b, nil
}
