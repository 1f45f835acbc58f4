/*
calendar.go - Legal-day arithmetic under the Colombian 30/360 convention

PURPOSE:
  Colombian labor law counts time in legal days, not calendar days: every
  month is worth exactly 30 days and every year 360, regardless of the
  actual calendar. All benefit proration in this package is built on top
  of the two primitives defined here:

    LegalDays(from, to)          day count under the 30/360 convention
    Prorate(base, days, divisor) base * days / divisor, exact decimal

THE 30/360 RULE:
  Both endpoints are normalized before subtracting:
    - day 31 counts as day 30
    - the last day of February counts as day 30
  so a period covering a whole calendar month is always 30 legal days,
  whether the month has 28, 30 or 31 calendar days. A hire on day 16 of
  a month works 15 legal days (30 - 16 + 1), which is what the severance
  and PILA day counts expect.

ROUNDING POLICY:
  Prorate never rounds. Rounding to 2 decimal places happens exactly once,
  at the final amount of each benefit (see base.go), so intermediate
  bases never accumulate round-off.

SEE ALSO:
  - base.go: benefit amounts built from LegalDays + Prorate
  - segment.go: wage segments carry Date pairs from this file
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Day-granularity calendar point
// =============================================================================

// Date is a calendar day in UTC. The engine never needs finer granularity:
// novelties, contracts and periods are all day-bounded.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its UTC calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.UTC().Year(), t.UTC().Month(), t.UTC().Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{t: d.t.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// isMonthEnd reports whether d is the last calendar day of its month.
func (d Date) isMonthEnd() bool {
	return d.AddDays(1).Month() != d.Month()
}

func min2(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func max2(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// PERIOD - Inclusive [From, To] calculation window
// =============================================================================

// Period is the window over which provisions and contributions are
// calculated. It is not required to align with calendar months.
type Period struct {
	From Date
	To   Date
}

func NewPeriod(from, to Date) Period { return Period{From: from, To: to} }

func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.From) && d.BeforeOrEqual(p.To)
}

// Intersect returns the overlap of two inclusive ranges and whether it is
// non-empty.
func (p Period) Intersect(from, to Date) (Period, bool) {
	start := max2(p.From, from)
	end := min2(p.To, to)
	if end.Before(start) {
		return Period{}, false
	}
	return Period{From: start, To: end}, true
}

// LegalDays returns the period's span under the 30/360 convention.
func (p Period) LegalDays() (int, error) {
	return LegalDays(p.From, p.To)
}

// Year returns the year legal parameters must be resolved against. By
// regulation this is the period's year, never the calculation-run date.
func (p Period) Year() int { return p.To.Year() }

func (p Period) String() string {
	return "[" + p.From.String() + ", " + p.To.String() + "]"
}

// =============================================================================
// LEGAL DAY COUNT
// =============================================================================

// LegalDays counts the days in [from, to] under the 30/360 convention.
// Returns ErrInvalidPeriod when to precedes from.
func LegalDays(from, to Date) (int, error) {
	if to.Before(from) {
		return 0, &ValidationError{
			Field:  "period",
			Reason: "end date " + to.String() + " precedes start date " + from.String(),
			cause:  ErrInvalidPeriod,
		}
	}

	d1 := normalizeDay(from)
	d2 := normalizeDay(to)

	days := (to.Year()-from.Year())*360 +
		(int(to.Month())-int(from.Month()))*30 +
		d2 - d1 + 1
	if days < 0 {
		days = 0
	}
	return days, nil
}

func normalizeDay(d Date) int {
	if d.isMonthEnd() || d.Day() > 30 {
		return 30
	}
	return d.Day()
}

// =============================================================================
// PRORATION
// =============================================================================

// Annual benefits prorate over the 360-day legal year, monthly amounts
// over the 30-day legal month.
const (
	DivisorYear  = 360
	DivisorMonth = 30
)

// Prorate returns base * days / divisor without rounding. Callers round
// once, at the final amount of each benefit.
func Prorate(base decimal.Decimal, days int, divisor int) decimal.Decimal {
	if days == 0 {
		return decimal.Zero
	}
	return base.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(int64(divisor)))
}

// Round2 applies the engine's terminal rounding policy: 2 decimal places,
// half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
