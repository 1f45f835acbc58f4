package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andino-hr/payroll-engine/engine"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func testEngine() *engine.Engine {
	return engine.New(engine.CalculationConfig{
		Params: engine.ParamsByYear{2024: params2024()},
	})
}

func affiliatedEmployee(id string) engine.Employee {
	return engine.Employee{
		ID:               engine.EmployeeID(id),
		IdentityType:     "CC",
		IdentityNumber:   "1010",
		HealthFund:       "EPS001",
		PensionFund:      "AFP002",
		SeveranceFund:    "FC003",
		RiskInsurer:      "ARL004",
		CompensationFund: "CCF005",
	}
}

func simpleInput(id string, wage int64) engine.EmployeeInput {
	c := openContract("c-"+id, wage, engine.NewDate(2023, time.January, 1))
	c.EmployeeID = engine.EmployeeID(id)
	c.TransportAllowance = true
	return engine.EmployeeInput{
		Employee:  affiliatedEmployee(id),
		Contracts: []engine.Contract{c},
	}
}

func marchPeriod() engine.Period {
	return engine.NewPeriod(engine.NewDate(2024, time.March, 1), engine.NewDate(2024, time.March, 31))
}

// =============================================================================
// CALCULATE - Line production
// =============================================================================

func TestCalculate_FullMonth_OneLinePerKind(t *testing.T) {
	// GIVEN: One employee, one contract, full month
	// WHEN: Calculating all benefit kinds
	// THEN: One provision line per kind and eight contribution lines

	run, failures, err := testEngine().Calculate(context.Background(), marchPeriod(),
		[]engine.EmployeeInput{simpleInput("emp-1", 2_000_000)}, nil)
	require.NoError(t, err)
	assert.Empty(t, failures)

	assert.Equal(t, engine.RunCalculated, run.State)
	assert.Len(t, run.Lines, len(engine.AllBenefitKinds))
	assert.Len(t, run.Contributions, len(engine.AllContributionKinds))

	byKind := map[engine.BenefitKind]engine.ProvisionLine{}
	for _, l := range run.Lines {
		byKind[l.Kind] = l
	}
	assert.Equal(t, "180166.67", byKind[engine.BenefitSeverance].Amount.StringFixed(2))
	assert.Equal(t, "83333.33", byKind[engine.BenefitVacation].Amount.StringFixed(2))
	assert.Equal(t, "2000000.00", byKind[engine.BenefitIBC].Amount.StringFixed(2))
	assert.Equal(t, 30, byKind[engine.BenefitSeverance].WorkedDays)
}

func TestCalculate_ContributionAmounts_FromIBC(t *testing.T) {
	// GIVEN: IBC of 2,000,000, risk class I
	// THEN: Health 4% / 8.5%, pension 4% / 12%, ARL 0.522%

	run, _, err := testEngine().Calculate(context.Background(), marchPeriod(),
		[]engine.EmployeeInput{simpleInput("emp-1", 2_000_000)}, nil)
	require.NoError(t, err)

	byKind := map[engine.ContributionKind]engine.ContributionLine{}
	for _, c := range run.Contributions {
		byKind[c.Kind] = c
	}

	assert.Equal(t, "80000.00", byKind[engine.ContributionHealthEmployee].Amount.StringFixed(2))
	assert.Equal(t, "170000.00", byKind[engine.ContributionHealthEmployer].Amount.StringFixed(2))
	assert.Equal(t, "80000.00", byKind[engine.ContributionPensionEmployee].Amount.StringFixed(2))
	assert.Equal(t, "240000.00", byKind[engine.ContributionPensionEmployer].Amount.StringFixed(2))
	assert.Equal(t, "10440.00", byKind[engine.ContributionARL].Amount.StringFixed(2))
	assert.Equal(t, "60000.00", byKind[engine.ContributionICBF].Amount.StringFixed(2))
	assert.Equal(t, "40000.00", byKind[engine.ContributionSENA].Amount.StringFixed(2))
	assert.Equal(t, "80000.00", byKind[engine.ContributionCCF].Amount.StringFixed(2))

	assert.Equal(t, engine.FundCode("EPS001"), byKind[engine.ContributionHealthEmployee].Fund)
	assert.Equal(t, engine.FundCode("ARL004"), byKind[engine.ContributionARL].Fund)
	assert.Equal(t, engine.FundCode("ICBF"), byKind[engine.ContributionICBF].Fund)
}

func TestCalculate_Idempotent_BitIdenticalLines(t *testing.T) {
	// GIVEN: The same inputs, twice
	// THEN: Every line compares equal, base and amount to full precision

	e := testEngine()
	in := []engine.EmployeeInput{simpleInput("emp-1", 2_357_911)}

	run1, _, err := e.Calculate(context.Background(), marchPeriod(), in, nil)
	require.NoError(t, err)
	run2, _, err := e.Calculate(context.Background(), marchPeriod(), in, nil)
	require.NoError(t, err)

	require.Len(t, run2.Lines, len(run1.Lines))
	for i := range run1.Lines {
		assert.True(t, run1.Lines[i].Base.Equal(run2.Lines[i].Base))
		assert.True(t, run1.Lines[i].Amount.Equal(run2.Lines[i].Amount))
	}
}

func TestCalculate_TerminationAndRehire_LinesPerSegment(t *testing.T) {
	// GIVEN: Contract ending March 15 and a rehire from March 21
	// WHEN: Calculating severance only
	// THEN: Two lines, one per segment, summing to the total of the days

	endDate := engine.NewDate(2024, time.March, 15)
	c1 := closedContract("c-1", 2_000_000, engine.NewDate(2023, time.January, 1), endDate)
	c1.EmployeeID = "emp-1"
	c2 := openContract("c-2", 2_000_000, engine.NewDate(2024, time.March, 21))
	c2.EmployeeID = "emp-1"

	run, failures, err := testEngine().Calculate(context.Background(), marchPeriod(),
		[]engine.EmployeeInput{{
			Employee:  affiliatedEmployee("emp-1"),
			Contracts: []engine.Contract{c1, c2},
		}}, []engine.BenefitKind{engine.BenefitSeverance})
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, run.Lines, 2)

	// 15 days on c-1, 10 days on c-2 (March 21-31 is 10 legal days)
	assert.Equal(t, 15, run.Lines[0].WorkedDays)
	assert.Equal(t, 10, run.Lines[1].WorkedDays)

	total := run.Lines[0].Amount.Add(run.Lines[1].Amount)
	// 2,000,000 * 25/360 computed per segment and rounded per line
	assert.Equal(t, "138888.89", total.StringFixed(2))
}

// =============================================================================
// BATCH SEMANTICS
// =============================================================================

func TestCalculate_FailedEmployee_AllOrNothing(t *testing.T) {
	// GIVEN: A healthy employee and one with no fund affiliation
	// WHEN: Calculating the batch
	// THEN: The healthy employee's lines survive, the broken one reports a
	//       failure and contributes zero lines

	broken := simpleInput("emp-2", 2_000_000)
	broken.Employee.HealthFund = ""

	run, failures, err := testEngine().Calculate(context.Background(), marchPeriod(),
		[]engine.EmployeeInput{simpleInput("emp-1", 2_000_000), broken}, nil)
	require.NoError(t, err)

	require.Len(t, failures, 1)
	assert.Equal(t, engine.EmployeeID("emp-2"), failures[0].EmployeeID)
	assert.True(t, errors.Is(failures[0].Err, engine.ErrMissingFund))

	for _, l := range run.Lines {
		assert.Equal(t, engine.EmployeeID("emp-1"), l.EmployeeID)
	}
}

func TestCalculate_CancelledContext_StopsBetweenEmployees(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := testEngine().Calculate(ctx, marchPeriod(),
		[]engine.EmployeeInput{simpleInput("emp-1", 2_000_000)}, nil)

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCalculate_MissingYearParams_IsConfigurationError(t *testing.T) {
	period := engine.NewPeriod(engine.NewDate(2030, time.March, 1), engine.NewDate(2030, time.March, 31))

	_, _, err := testEngine().Calculate(context.Background(), period,
		[]engine.EmployeeInput{simpleInput("emp-1", 2_000_000)}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrMissingParams))
}

func TestCalculate_InvalidPeriod_Rejected(t *testing.T) {
	period := engine.NewPeriod(engine.NewDate(2024, time.March, 31), engine.NewDate(2024, time.March, 1))

	_, _, err := testEngine().Calculate(context.Background(), period, nil, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidPeriod))
}

// =============================================================================
// RUN STATE MACHINE
// =============================================================================

func calculatedRun(t *testing.T) *engine.Run {
	t.Helper()
	run, failures, err := testEngine().Calculate(context.Background(), marchPeriod(),
		[]engine.EmployeeInput{simpleInput("emp-1", 2_000_000)}, nil)
	require.NoError(t, err)
	require.Empty(t, failures)
	return run
}

func TestRun_HappyPath_CalculatedValidatedConfirmed(t *testing.T) {
	run := calculatedRun(t)

	require.NoError(t, run.Validate(params2024(), "tester"))
	assert.Equal(t, engine.RunValidated, run.State)

	require.NoError(t, run.Confirm("tester"))
	assert.Equal(t, engine.RunConfirmed, run.State)

	// History carries every transition including the engine's own
	require.Len(t, run.History, 3)
	assert.Equal(t, engine.RunDraft, run.History[0].From)
	assert.Equal(t, engine.RunConfirmed, run.History[2].To)
}

func TestRun_ConfirmWithoutValidate_Rejected(t *testing.T) {
	run := calculatedRun(t)

	err := run.Confirm("tester")

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrRunState))
	assert.Equal(t, engine.RunCalculated, run.State)
}

func TestRun_Reset_DiscardsLines(t *testing.T) {
	run := calculatedRun(t)
	require.NotEmpty(t, run.Lines)

	require.NoError(t, run.Reset("tester"))

	assert.Equal(t, engine.RunDraft, run.State)
	assert.Empty(t, run.Lines)
	assert.Empty(t, run.Contributions)
}

func TestRun_Cancel_FromAnyNonConfirmedState(t *testing.T) {
	run := calculatedRun(t)
	require.NoError(t, run.Validate(params2024(), "tester"))

	require.NoError(t, run.Cancel("tester"))
	assert.Equal(t, engine.RunCancelled, run.State)
}

func TestRun_ConfirmedIsTerminal(t *testing.T) {
	// GIVEN: A confirmed run
	// THEN: Cancel and reset are both rejected

	run := calculatedRun(t)
	require.NoError(t, run.Validate(params2024(), "tester"))
	require.NoError(t, run.Confirm("tester"))

	err := run.Cancel("tester")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrRunConfirmed))

	err = run.Reset("tester")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrRunState))
	assert.Equal(t, engine.RunConfirmed, run.State)
}

func TestRun_Validate_RejectsUnresolvedFunds(t *testing.T) {
	run := calculatedRun(t)
	run.Lines[0].HealthFund = ""

	err := run.Validate(params2024(), "tester")

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
	assert.Equal(t, engine.RunCalculated, run.State)
}

func TestRun_Validate_RejectsIBCBelowMinimumWage(t *testing.T) {
	run := calculatedRun(t)
	for i := range run.Lines {
		if run.Lines[i].Kind == engine.BenefitIBC {
			run.Lines[i].Base = engine.COP(900_000)
		}
	}

	err := run.Validate(params2024(), "tester")

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}
