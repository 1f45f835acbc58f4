package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andino-hr/payroll-engine/engine"
)

func marchSegment() engine.WageSegment {
	return engine.WageSegment{
		ContractID: "c-1",
		Wage:       engine.COP(2_000_000),
		From:       engine.NewDate(2024, time.March, 1),
		To:         engine.NewDate(2024, time.March, 31),
	}
}

func TestResolveNovelties_UnpaidSuspension_ReducesWorkedAndIBCDays(t *testing.T) {
	// GIVEN: 10 days of unpaid suspension inside a 30-day segment
	// THEN: 20 worked days and 20 IBC days

	days, err := engine.ResolveNovelties(marchSegment(), []engine.Novelty{{
		ContractID: "c-1",
		Kind:       engine.NoveltySuspension,
		From:       engine.NewDate(2024, time.March, 11),
		To:         engine.NewDate(2024, time.March, 20),
		Paid:       false,
	}})
	require.NoError(t, err)

	assert.Equal(t, 30, days.SegmentDays)
	assert.Equal(t, 10, days.SuspensionDays)
	assert.Equal(t, 20, days.Worked())
	assert.Equal(t, 20, days.IBCDays())
}

func TestResolveNovelties_PaidIncapacity_ReducesOnlyIBCDays(t *testing.T) {
	// GIVEN: 10 days of paid incapacity
	// THEN: Benefit proration keeps 30 days, the IBC drops to 20

	days, err := engine.ResolveNovelties(marchSegment(), []engine.Novelty{{
		ContractID: "c-1",
		Kind:       engine.NoveltyIncapacity,
		From:       engine.NewDate(2024, time.March, 1),
		To:         engine.NewDate(2024, time.March, 10),
		Paid:       true,
	}})
	require.NoError(t, err)

	assert.Equal(t, 30, days.Worked())
	assert.Equal(t, 20, days.IBCDays())
}

func TestResolveNovelties_PaidMaternity_ReducesNothing(t *testing.T) {
	// GIVEN: A full month of paid maternity leave
	// THEN: Worked days and IBC days both stay at 30; the wage is kept by law

	days, err := engine.ResolveNovelties(marchSegment(), []engine.Novelty{{
		ContractID: "c-1",
		Kind:       engine.NoveltyMaternity,
		From:       engine.NewDate(2024, time.March, 1),
		To:         engine.NewDate(2024, time.March, 31),
		Paid:       true,
	}})
	require.NoError(t, err)

	assert.Equal(t, 30, days.MaternityDays)
	assert.Equal(t, 30, days.Worked())
	assert.Equal(t, 30, days.IBCDays())
}

func TestResolveNovelties_PaidVacation_KeepsDayCounts(t *testing.T) {
	days, err := engine.ResolveNovelties(marchSegment(), []engine.Novelty{{
		ContractID: "c-1",
		Kind:       engine.NoveltyVacation,
		From:       engine.NewDate(2024, time.March, 5),
		To:         engine.NewDate(2024, time.March, 19),
		Paid:       true,
	}})
	require.NoError(t, err)

	assert.Equal(t, 15, days.VacationDays)
	assert.Equal(t, 30, days.Worked())
	assert.Equal(t, 30, days.IBCDays())
}

func TestResolveNovelties_ClipsToSegment(t *testing.T) {
	// GIVEN: An unpaid leave overlapping the segment by only 5 days
	// THEN: Only the intersected days count

	days, err := engine.ResolveNovelties(marchSegment(), []engine.Novelty{{
		ContractID: "c-1",
		Kind:       engine.NoveltyUnpaidLeave,
		From:       engine.NewDate(2024, time.February, 15),
		To:         engine.NewDate(2024, time.March, 5),
		Paid:       false,
	}})
	require.NoError(t, err)

	assert.Equal(t, 5, days.UnpaidDays)
	assert.Equal(t, 25, days.Worked())
}

func TestResolveNovelties_OtherContract_Ignored(t *testing.T) {
	days, err := engine.ResolveNovelties(marchSegment(), []engine.Novelty{{
		ContractID: "c-other",
		Kind:       engine.NoveltySuspension,
		From:       engine.NewDate(2024, time.March, 1),
		To:         engine.NewDate(2024, time.March, 31),
		Paid:       false,
	}})
	require.NoError(t, err)

	assert.Equal(t, 30, days.Worked())
}

func TestResolveNovelties_UnpaidDaysExceedSegment_IsValidationError(t *testing.T) {
	// GIVEN: Two unpaid novelties that together exceed the segment span

	_, err := engine.ResolveNovelties(marchSegment(), []engine.Novelty{
		{
			ContractID: "c-1", Kind: engine.NoveltyUnpaidLeave, Paid: false,
			From: engine.NewDate(2024, time.March, 1), To: engine.NewDate(2024, time.March, 31),
		},
		{
			ContractID: "c-1", Kind: engine.NoveltySuspension, Paid: false,
			From: engine.NewDate(2024, time.March, 1), To: engine.NewDate(2024, time.March, 15),
		},
	})

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}
