package payroll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andino-hr/payroll-engine/engine"
	"github.com/andino-hr/payroll-engine/payroll"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func params2024() engine.LegalParams {
	return engine.LegalParams{
		Year:               2024,
		MinimumWage:        engine.COP(1_300_000),
		TransportAllowance: engine.COP(162_000),
		UVT:                engine.COP(47_065),
	}
}

func validContract() engine.Contract {
	return engine.Contract{
		ID:         "c-1",
		EmployeeID: "emp-1",
		Wage:       engine.COP(2_000_000),
		WageType:   engine.WageOrdinary,
		RiskClass:  engine.RiskClassI,
		Start:      engine.NewDate(2024, time.January, 15),
		State:      engine.ContractOpen,
	}
}

// =============================================================================
// CONTRACT VALIDATION
// =============================================================================

func TestValidateContract_ValidOrdinary_Passes(t *testing.T) {
	assert.NoError(t, payroll.ValidateContract(validContract(), params2024()))
}

func TestValidateContract_OrdinaryBelowMinimumWage_Rejected(t *testing.T) {
	c := validContract()
	c.Wage = engine.COP(1_000_000)

	err := payroll.ValidateContract(c, params2024())

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestValidateContract_IntegralBelowTenMinimumWages_Rejected(t *testing.T) {
	// GIVEN: An integral salary of 12,000,000 against a 13,000,000 floor
	c := validContract()
	c.WageType = engine.WageIntegral
	c.Wage = engine.COP(12_000_000)

	err := payroll.ValidateContract(c, params2024())

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestValidateContract_IntegralAtFloor_Passes(t *testing.T) {
	c := validContract()
	c.WageType = engine.WageIntegral
	c.Wage = engine.COP(13_000_000)
	c.IntegralFactor = engine.COP(70)

	assert.NoError(t, payroll.ValidateContract(c, params2024()))
}

func TestValidateContract_IntegralFactorBelow70_Rejected(t *testing.T) {
	c := validContract()
	c.WageType = engine.WageIntegral
	c.Wage = engine.COP(14_000_000)
	c.IntegralFactor = engine.COP(65)

	err := payroll.ValidateContract(c, params2024())
	require.Error(t, err)
}

func TestValidateContract_EndBeforeStart_Rejected(t *testing.T) {
	c := validContract()
	end := c.Start.AddDays(-10)
	c.End = &end

	err := payroll.ValidateContract(c, params2024())

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidPeriod))
}

func TestValidateContract_InvalidRiskClass_Rejected(t *testing.T) {
	c := validContract()
	c.RiskClass = 9

	require.Error(t, payroll.ValidateContract(c, params2024()))
}

func TestValidateContract_ExemptShareAbove25_Rejected(t *testing.T) {
	c := validContract()
	c.Withholding = engine.WithholdingConfig{
		Method:          engine.WithholdingTable,
		Procedure:       engine.Procedure1,
		ExemptIncomePct: engine.COP(30),
	}

	require.Error(t, payroll.ValidateContract(c, params2024()))
}

func TestValidateContract_TableWithoutProcedure_Rejected(t *testing.T) {
	c := validContract()
	c.Withholding = engine.WithholdingConfig{Method: engine.WithholdingTable}

	require.Error(t, payroll.ValidateContract(c, params2024()))
}

// =============================================================================
// WAGE HISTORY
// =============================================================================

func TestWageHistory_Append_DerivesPreviousWage(t *testing.T) {
	// GIVEN: A contract at 1,700,000 with an empty log
	// WHEN: Recording a raise to 2,000,000 and then to 2,300,000
	// THEN: Each event carries the wage previously in force

	c := validContract()
	c.Wage = engine.COP(1_700_000)
	h := payroll.NewWageHistory(c.ID, nil)

	ev1, err := h.Append(c, engine.COP(2_000_000), engine.NewDate(2024, time.April, 1))
	require.NoError(t, err)
	assert.True(t, ev1.PreviousWage.Equal(engine.COP(1_700_000)))

	ev2, err := h.Append(c, engine.COP(2_300_000), engine.NewDate(2024, time.July, 1))
	require.NoError(t, err)
	assert.True(t, ev2.PreviousWage.Equal(engine.COP(2_000_000)))

	assert.True(t, h.Current(c).Equal(engine.COP(2_300_000)))
}

func TestWageHistory_WageAt_ReadsTheLog(t *testing.T) {
	c := validContract()
	c.Wage = engine.COP(1_700_000)
	h := payroll.NewWageHistory(c.ID, nil)
	_, err := h.Append(c, engine.COP(2_000_000), engine.NewDate(2024, time.April, 1))
	require.NoError(t, err)

	assert.True(t, h.WageAt(c, engine.NewDate(2024, time.March, 31)).Equal(engine.COP(1_700_000)))
	assert.True(t, h.WageAt(c, engine.NewDate(2024, time.April, 1)).Equal(engine.COP(2_000_000)))
}

func TestWageHistory_Backdating_Rejected(t *testing.T) {
	c := validContract()
	h := payroll.NewWageHistory(c.ID, nil)
	_, err := h.Append(c, engine.COP(2_000_000), engine.NewDate(2024, time.June, 1))
	require.NoError(t, err)

	_, err = h.Append(c, engine.COP(2_100_000), engine.NewDate(2024, time.May, 1))

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestWageHistory_BeforeContractStart_Rejected(t *testing.T) {
	c := validContract()
	h := payroll.NewWageHistory(c.ID, nil)

	_, err := h.Append(c, engine.COP(2_000_000), c.Start.AddDays(-1))

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrOutsideContract))
}

func TestWageHistory_FeedsSegmentResolver(t *testing.T) {
	// GIVEN: A raise recorded through the history
	// WHEN: Resolving segments for the raise month
	// THEN: The resolver splits exactly at the recorded event

	c := validContract()
	c.Wage = engine.COP(1_700_000)
	h := payroll.NewWageHistory(c.ID, nil)
	_, err := h.Append(c, engine.COP(2_000_000), engine.NewDate(2024, time.April, 16))
	require.NoError(t, err)

	period := engine.NewPeriod(engine.NewDate(2024, time.April, 1), engine.NewDate(2024, time.April, 30))
	segs, err := engine.ResolveSegments([]engine.Contract{c}, h.Events, period)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.True(t, segs[0].Wage.Equal(engine.COP(1_700_000)))
	assert.True(t, segs[1].Wage.Equal(engine.COP(2_000_000)))
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func confirmedRun(t *testing.T) *engine.Run {
	t.Helper()
	e := engine.New(engine.CalculationConfig{Params: engine.ParamsByYear{2024: params2024()}})
	c := validContract()
	c.TransportAllowance = true
	run, failures, err := e.Calculate(context.Background(),
		engine.NewPeriod(engine.NewDate(2024, time.March, 1), engine.NewDate(2024, time.March, 31)),
		[]engine.EmployeeInput{{
			Employee: engine.Employee{
				ID: "emp-1", HealthFund: "EPS001", PensionFund: "AFP002",
				RiskInsurer: "ARL004", CompensationFund: "CCF005",
			},
			Contracts: []engine.Contract{c},
		}}, nil)
	require.NoError(t, err)
	require.Empty(t, failures)
	require.NoError(t, run.Validate(params2024(), "tester"))
	require.NoError(t, run.Confirm("tester"))
	return run
}

func TestNewAdjustment_OnConfirmedRun_Passes(t *testing.T) {
	run := confirmedRun(t)

	adj, err := payroll.NewAdjustment(run, "emp-1", engine.BenefitSeverance,
		engine.COP(-15_000), "overpaid: suspension reported late", "hr-user")
	require.NoError(t, err)

	assert.Equal(t, "overpaid: suspension reported late", adj.Reason)
	assert.True(t, adj.Delta.Equal(engine.COP(-15_000)))
	assert.False(t, adj.CreatedAt.IsZero())
}

func TestNewAdjustment_UnconfirmedRun_Rejected(t *testing.T) {
	run := engine.NewRun(engine.NewPeriod(
		engine.NewDate(2024, time.March, 1), engine.NewDate(2024, time.March, 31)))

	_, err := payroll.NewAdjustment(run, "emp-1", engine.BenefitSeverance,
		engine.COP(100), "reason", "hr-user")

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrRunState))
}

func TestNewAdjustment_RequiresReasonAndNonZeroDelta(t *testing.T) {
	run := confirmedRun(t)

	_, err := payroll.NewAdjustment(run, "emp-1", engine.BenefitSeverance, engine.COP(0), "r", "u")
	assert.Error(t, err)

	_, err = payroll.NewAdjustment(run, "emp-1", engine.BenefitSeverance, engine.COP(100), "", "u")
	assert.Error(t, err)
}

func TestNewAdjustment_MissingLine_Rejected(t *testing.T) {
	run := confirmedRun(t)

	_, err := payroll.NewAdjustment(run, "emp-ghost", engine.BenefitSeverance,
		engine.COP(100), "typo", "u")

	require.Error(t, err)
}

func TestAdjustedTotal_SumsDeltas(t *testing.T) {
	total := payroll.AdjustedTotal(engine.COP(180_166), []payroll.Adjustment{
		{Delta: engine.COP(-15_000)},
		{Delta: engine.COP(2_500)},
	})
	assert.True(t, total.Equal(engine.COP(167_666)))
}

// =============================================================================
// INPUT ASSEMBLY
// =============================================================================

func TestBuildInput_FiltersDraftAndSuspendedContracts(t *testing.T) {
	open := validContract()
	draft := validContract()
	draft.ID = "c-2"
	draft.State = engine.ContractDraft
	suspended := validContract()
	suspended.ID = "c-3"
	suspended.State = engine.ContractSuspended
	closed := validContract()
	closed.ID = "c-4"
	closed.State = engine.ContractClosed

	in := payroll.BuildInput(payroll.EmployeeData{
		Record:    payroll.EmployeeRecord{Employee: engine.Employee{ID: "emp-1"}},
		Contracts: []engine.Contract{open, draft, suspended, closed},
	})

	require.Len(t, in.Contracts, 2)
	assert.Equal(t, engine.ContractID("c-1"), in.Contracts[0].ID)
	assert.Equal(t, engine.ContractID("c-4"), in.Contracts[1].ID)
}

func TestEmployeeRecord_FullName(t *testing.T) {
	assert.Equal(t, "Ana Reyes", payroll.EmployeeRecord{FirstName: "Ana", LastName: "Reyes"}.FullName())
	assert.Equal(t, "Ana", payroll.EmployeeRecord{FirstName: "Ana"}.FullName())
	assert.Equal(t, "Reyes", payroll.EmployeeRecord{LastName: "Reyes"}.FullName())
}

// =============================================================================
// FAMILY MEMBERS AND SUBSIDY ELIGIBILITY
// =============================================================================

func child(birthYear int, student, disability bool) payroll.FamilyMember {
	return payroll.FamilyMember{
		ID:         "fam-1",
		EmployeeID: "emp-1",
		Relation:   payroll.RelationChild,
		FirstName:  "Luis",
		BirthDate:  engine.NewDate(birthYear, time.June, 15),
		Student:    student,
		Disability: disability,
	}
}

func TestSubsidyEligible_ChildRules(t *testing.T) {
	// GIVEN: Children of varying ages as of 2024-03-01
	// THEN: Under 18 qualifies; 18-23 only while studying; disability always

	asOf := engine.NewDate(2024, time.March, 1)

	assert.True(t, child(2010, false, false).SubsidyEligible(asOf), "age 13")
	assert.False(t, child(2004, false, false).SubsidyEligible(asOf), "age 19, not studying")
	assert.True(t, child(2004, true, false).SubsidyEligible(asOf), "age 19, studying")
	assert.False(t, child(1998, true, false).SubsidyEligible(asOf), "age 25, studying")
	assert.True(t, child(1998, false, true).SubsidyEligible(asOf), "disability, any age")
}

func TestSubsidyEligible_SpouseOnlyWhenNotWorking(t *testing.T) {
	spouse := payroll.FamilyMember{
		Relation:  payroll.RelationSpouse,
		FirstName: "Marta",
		BirthDate: engine.NewDate(1990, time.April, 2),
	}
	asOf := engine.NewDate(2024, time.March, 1)

	assert.True(t, spouse.SubsidyEligible(asOf))
	spouse.Works = true
	assert.False(t, spouse.SubsidyEligible(asOf))
}

func TestAgeAt_CountsCompletedYearsOnly(t *testing.T) {
	m := payroll.FamilyMember{BirthDate: engine.NewDate(2006, time.June, 15)}

	assert.Equal(t, 17, m.AgeAt(engine.NewDate(2024, time.June, 14)))
	assert.Equal(t, 18, m.AgeAt(engine.NewDate(2024, time.June, 15)))
}

func TestSubsidyEligibleCount_SumsQualifyingMembers(t *testing.T) {
	asOf := engine.NewDate(2024, time.March, 1)
	members := []payroll.FamilyMember{
		child(2010, false, false),
		child(1998, false, false),
		{Relation: payroll.RelationSpouse, FirstName: "Marta", BirthDate: engine.NewDate(1990, time.April, 2)},
		{Relation: payroll.RelationParent, FirstName: "Rosa", BirthDate: engine.NewDate(1960, time.May, 9)},
	}

	assert.Equal(t, 2, payroll.SubsidyEligibleCount(members, asOf))
}

func TestValidateFamilyMember_SecondSpouse_Rejected(t *testing.T) {
	asOf := engine.NewDate(2024, time.March, 1)
	first := payroll.FamilyMember{
		ID: "fam-1", Relation: payroll.RelationSpouse,
		FirstName: "Marta", BirthDate: engine.NewDate(1990, time.April, 2),
	}
	require.NoError(t, payroll.ValidateFamilyMember(first, nil, asOf))

	second := first
	second.ID = "fam-2"
	err := payroll.ValidateFamilyMember(second, []payroll.FamilyMember{first}, asOf)

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))

	// Re-saving the same record is not a second spouse
	assert.NoError(t, payroll.ValidateFamilyMember(first, []payroll.FamilyMember{first}, asOf))
}

func TestValidateFamilyMember_Rules(t *testing.T) {
	asOf := engine.NewDate(2024, time.March, 1)

	unknown := child(2010, false, false)
	unknown.Relation = "cousin"
	assert.Error(t, payroll.ValidateFamilyMember(unknown, nil, asOf))

	nameless := child(2010, false, false)
	nameless.FirstName = ""
	assert.Error(t, payroll.ValidateFamilyMember(nameless, nil, asOf))

	unborn := child(2025, false, false)
	assert.Error(t, payroll.ValidateFamilyMember(unborn, nil, asOf))

	missing := child(2010, false, false)
	missing.BirthDate = engine.Date{}
	assert.Error(t, payroll.ValidateFamilyMember(missing, nil, asOf))
}
