package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andino-hr/payroll-engine/engine"
)

// =============================================================================
// OVERTIME VALUATION
// =============================================================================

func TestOvertimeValue_StatutoryFactors(t *testing.T) {
	// GIVEN: A 2,400,000 wage, 10,000/hour ordinary rate
	// THEN: Each kind prices at its surcharge factor

	wage := engine.COP(2_400_000)
	tenHours := engine.COP(10)

	cases := []struct {
		kind engine.OvertimeKind
		want string
	}{
		{engine.OvertimeDay, "125000"},           // 10h * 10,000 * 1.25
		{engine.OvertimeNight, "175000"},         // 1.75
		{engine.OvertimeHolidayDay, "200000"},    // 2.0
		{engine.OvertimeHolidayNight, "250000"},  // 2.5
		{engine.SurchargeNight, "135000"},        // 1.35
		{engine.SurchargeHolidayNight, "210000"}, // 2.1
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			got, err := engine.OvertimeValue(wage, engine.OvertimeEntry{
				ContractID: "c-1", Kind: tc.kind, Hours: tenHours,
			})
			require.NoError(t, err)
			assert.True(t, got.Equal(engine.MustDecimal(tc.want)), "got %s", got)
		})
	}
}

func TestOvertimeValue_UnknownKind_Rejected(t *testing.T) {
	_, err := engine.OvertimeValue(engine.COP(2_400_000), engine.OvertimeEntry{Kind: "hex"})
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

// =============================================================================
// PAYSLIP
// =============================================================================

func TestPayslip_FullMonth_NetAfterEmployeeDeductions(t *testing.T) {
	// GIVEN: Wage 2,000,000 with transport, full March, no withholding
	// WHEN: Assembling the payslip
	// THEN: Net = 2,000,000 + 162,000 - 80,000 health - 80,000 pension

	slip, err := testEngine().Payslip(marchPeriod(), simpleInput("emp-1", 2_000_000))
	require.NoError(t, err)

	assert.Equal(t, 30, slip.WorkedDays)
	assert.Equal(t, "2162000.00", slip.GrossEarnings.StringFixed(2))
	assert.Equal(t, "162000.00", slip.TransportAllowance.StringFixed(2))
	assert.Equal(t, "80000.00", slip.HealthEmployee.StringFixed(2))
	assert.Equal(t, "170000.00", slip.HealthCompany.StringFixed(2))
	assert.Equal(t, "80000.00", slip.PensionEmployee.StringFixed(2))
	assert.Equal(t, "240000.00", slip.PensionCompany.StringFixed(2))
	assert.Equal(t, "10440.00", slip.ARL.StringFixed(2))
	assert.True(t, slip.WithholdingTax.IsZero())
	assert.Equal(t, "2002000.00", slip.Net.StringFixed(2))
}

func TestPayslip_WithOvertime_EntersGrossAndTaxable(t *testing.T) {
	// GIVEN: Wage 2,400,000, no transport, 10 daytime overtime hours,
	//        a flat 10% withholding on taxable income
	// THEN: Overtime 125,000 joins gross; withholding taxes wage + overtime

	in := simpleInput("emp-1", 2_400_000)
	in.Contracts[0].TransportAllowance = false
	in.Contracts[0].Withholding = engine.WithholdingConfig{
		Method:     engine.WithholdingPercentage,
		Percentage: engine.COP(10),
	}
	in.Overtime = []engine.OvertimeEntry{
		{ContractID: in.Contracts[0].ID, Kind: engine.OvertimeDay, Hours: engine.COP(10)},
	}

	slip, err := testEngine().Payslip(marchPeriod(), in)
	require.NoError(t, err)

	assert.Equal(t, "125000.00", slip.OvertimeValue.StringFixed(2))
	assert.Equal(t, "2525000.00", slip.GrossEarnings.StringFixed(2))
	// withholding: 10% of (2,400,000 + 125,000)
	assert.Equal(t, "252500.00", slip.WithholdingTax.StringFixed(2))
}

func TestPayslip_VariableEarnings_DeductionsMatchRunContributions(t *testing.T) {
	// GIVEN: Wage 2,000,000 with 300,000/month commissions across the
	//        trailing window, so the IBC is 2,300,000
	// WHEN: Calculating the run and assembling the payslip
	// THEN: Both price the employee deductions off the same IBC

	in := simpleInput("emp-1", 2_000_000)
	in.Contracts[0].TransportAllowance = false
	for _, m := range []engine.Date{
		engine.NewDate(2023, time.December, 1),
		engine.NewDate(2024, time.January, 1),
		engine.NewDate(2024, time.February, 1),
	} {
		in.VariableEarnings = append(in.VariableEarnings, engine.VariableEarning{
			ContractID: in.Contracts[0].ID, Month: m, Amount: engine.COP(300_000),
		})
	}

	eng := testEngine()
	run, failures, err := eng.Calculate(context.Background(), marchPeriod(), []engine.EmployeeInput{in}, nil)
	require.NoError(t, err)
	require.Empty(t, failures)

	slip, err := eng.Payslip(marchPeriod(), in)
	require.NoError(t, err)

	assert.Equal(t, "92000.00", slip.HealthEmployee.StringFixed(2), "4%% of 2,300,000")
	assert.Equal(t, "92000.00", slip.PensionEmployee.StringFixed(2))

	matched := 0
	for _, c := range run.Contributions {
		switch c.Kind {
		case engine.ContributionHealthEmployee:
			assert.True(t, c.Amount.Equal(slip.HealthEmployee), "run %s vs slip %s", c.Amount, slip.HealthEmployee)
			matched++
		case engine.ContributionPensionEmployee:
			assert.True(t, c.Amount.Equal(slip.PensionEmployee), "run %s vs slip %s", c.Amount, slip.PensionEmployee)
			matched++
		}
	}
	require.Equal(t, 2, matched)
}

func TestPayslip_UnknownOvertimeContract_Rejected(t *testing.T) {
	in := simpleInput("emp-1", 2_000_000)
	in.Overtime = []engine.OvertimeEntry{{ContractID: "ghost", Kind: engine.OvertimeDay, Hours: engine.COP(1)}}

	_, err := testEngine().Payslip(marchPeriod(), in)

	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

// =============================================================================
// PILA SUMMARY
// =============================================================================

func TestPILASummary_GroupsByEmployeeAndFund(t *testing.T) {
	// GIVEN: A calculated run for one employee
	// WHEN: Summarizing for PILA
	// THEN: Six entries - health and pension merge their two shares

	run := calculatedRun(t)
	entries := engine.PILASummary(run.Contributions)
	require.Len(t, entries, 6)

	byFund := map[engine.FundCode]engine.PILAEntry{}
	for _, e := range entries {
		byFund[e.Fund] = e
	}

	health := byFund["EPS001"]
	assert.Equal(t, engine.FundHealth, health.FundType)
	assert.Equal(t, "250000.00", health.Amount.StringFixed(2), "4%% + 8.5%% of 2,000,000")
	assert.Equal(t, "2000000.00", health.IBC.StringFixed(2))

	pension := byFund["AFP002"]
	assert.Equal(t, "320000.00", pension.Amount.StringFixed(2), "4%% + 12%% of 2,000,000")

	assert.Equal(t, engine.FundARL, byFund["ARL004"].FundType)
	assert.Equal(t, engine.FundParafiscal, byFund["ICBF"].FundType)
	assert.Equal(t, engine.FundParafiscal, byFund["SENA"].FundType)
	assert.Equal(t, engine.FundParafiscal, byFund["CCF005"].FundType)
}

func TestPILASummary_SortedByEmployeeThenFundType(t *testing.T) {
	run, _, err := testEngine().Calculate(context.Background(), marchPeriod(), []engine.EmployeeInput{
		simpleInput("emp-2", 2_000_000),
		simpleInput("emp-1", 2_000_000),
	}, nil)
	require.NoError(t, err)

	entries := engine.PILASummary(run.Contributions)
	require.Len(t, entries, 12)

	assert.Equal(t, engine.EmployeeID("emp-1"), entries[0].EmployeeID)
	assert.Equal(t, engine.EmployeeID("emp-2"), entries[6].EmployeeID)
}

// =============================================================================
// CONSOLIDATED TOTALS
// =============================================================================

func TestTotals_ByKindAndEmployee(t *testing.T) {
	run, _, err := testEngine().Calculate(context.Background(), marchPeriod(), []engine.EmployeeInput{
		simpleInput("emp-1", 2_000_000),
		simpleInput("emp-2", 4_000_000),
	}, nil)
	require.NoError(t, err)

	byKind := engine.TotalsByKind(run)
	// emp-1 severance 180,166.67 (with transport) + emp-2 333,333.33 (no
	// transport above 2x minimum)
	assert.Equal(t, "513500.00", byKind[engine.BenefitSeverance].StringFixed(2))

	byEmp := engine.TotalsByEmployee(run)
	require.Len(t, byEmp, 2)
	assert.True(t, byEmp["emp-2"].GreaterThan(byEmp["emp-1"]))
}

func TestBankPayments_OnePerPayslip(t *testing.T) {
	e := testEngine()
	slip1, err := e.Payslip(marchPeriod(), simpleInput("emp-1", 2_000_000))
	require.NoError(t, err)
	slip2, err := e.Payslip(marchPeriod(), simpleInput("emp-2", 3_000_000))
	require.NoError(t, err)

	payments := engine.BankPayments([]engine.PayslipTotals{slip1, slip2})
	require.Len(t, payments, 2)

	assert.Equal(t, engine.EmployeeID("emp-1"), payments[0].EmployeeID)
	assert.True(t, payments[0].Net.Equal(slip1.Net))
	assert.True(t, payments[1].Net.Equal(slip2.Net))
}
