package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andino-hr/payroll-engine/engine"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func paramsWithTable() engine.LegalParams {
	p := params2024()
	p.WithholdingTable = []engine.WithholdingBracket{
		{FromUVT: engine.COP(0), ToUVT: engine.COP(95), MarginalRate: engine.COP(0), FixedUVT: engine.COP(0)},
		{FromUVT: engine.COP(95), ToUVT: engine.COP(150), MarginalRate: engine.COP(19), FixedUVT: engine.COP(0)},
		{FromUVT: engine.COP(150), ToUVT: engine.COP(360), MarginalRate: engine.COP(28), FixedUVT: engine.COP(10)},
		{FromUVT: engine.COP(360), ToUVT: engine.COP(640), MarginalRate: engine.COP(33), FixedUVT: engine.COP(69)},
		{FromUVT: engine.COP(640), ToUVT: engine.COP(945), MarginalRate: engine.COP(35), FixedUVT: engine.COP(162)},
		{FromUVT: engine.COP(945), ToUVT: engine.COP(2300), MarginalRate: engine.COP(37), FixedUVT: engine.COP(268)},
		{FromUVT: engine.COP(2300), MarginalRate: engine.COP(39), FixedUVT: engine.COP(770)},
	}
	return p
}

func uvt(n int64) int64 { return n * 47_065 }

// =============================================================================
// METHOD DISPATCH
// =============================================================================

func TestWithholding_None_IsZero(t *testing.T) {
	got, err := engine.ComputeWithholding(engine.WithholdingConfig{Method: engine.WithholdingNone},
		engine.COP(50_000_000), params2024())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestWithholding_EmptyMethod_DefaultsToNone(t *testing.T) {
	got, err := engine.ComputeWithholding(engine.WithholdingConfig{}, engine.COP(5_000_000), params2024())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestWithholding_Fixed(t *testing.T) {
	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:     engine.WithholdingFixed,
		FixedValue: engine.COP(250_000),
	}, engine.COP(5_000_000), params2024())
	require.NoError(t, err)
	assert.Equal(t, "250000.00", got.StringFixed(2))
}

func TestWithholding_Percentage(t *testing.T) {
	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:     engine.WithholdingPercentage,
		Percentage: engine.COP(10),
	}, engine.COP(3_000_000), params2024())
	require.NoError(t, err)
	assert.Equal(t, "300000.00", got.StringFixed(2))
}

func TestWithholding_UnknownMethod_IsValidationError(t *testing.T) {
	_, err := engine.ComputeWithholding(engine.WithholdingConfig{Method: "guess"},
		engine.COP(5_000_000), params2024())
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

// =============================================================================
// TABLE METHOD - Procedure 1
// =============================================================================

func TestWithholding_Table_BelowFirstBracket_IsZero(t *testing.T) {
	// GIVEN: Depurated income under 95 UVT
	// THEN: No withholding

	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:    engine.WithholdingTable,
		Procedure: engine.Procedure1,
	}, engine.COP(uvt(90)), paramsWithTable())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestWithholding_Table_SecondBracket(t *testing.T) {
	// GIVEN: Exactly 100 UVT of depurated income, no exempt share
	// WHEN: Procedure 1
	// THEN: (100-95) * 19% = 0.95 UVT = 44,711.75

	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:    engine.WithholdingTable,
		Procedure: engine.Procedure1,
	}, engine.COP(uvt(100)), paramsWithTable())
	require.NoError(t, err)
	assert.Equal(t, "44711.75", got.StringFixed(2))
}

func TestWithholding_Table_ThirdBracket_AddsFixedUVT(t *testing.T) {
	// GIVEN: 200 UVT of depurated income
	// THEN: ((200-150) * 28% + 10) UVT = 24 UVT = 1,129,560

	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:    engine.WithholdingTable,
		Procedure: engine.Procedure1,
	}, engine.COP(uvt(200)), paramsWithTable())
	require.NoError(t, err)
	assert.Equal(t, "1129560.00", got.StringFixed(2))
}

func TestWithholding_Table_ExemptShare_SubtractedBeforeLookup(t *testing.T) {
	// GIVEN: A gross whose 75% lands on 100 UVT
	// THEN: The bracket lookup sees the depurated amount, same result as
	//       the plain 100 UVT case
	gross := engine.COP(uvt(100)).Mul(engine.COP(4)).Div(engine.COP(3))

	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:          engine.WithholdingTable,
		Procedure:       engine.Procedure1,
		ExemptIncomePct: engine.COP(25),
	}, gross, paramsWithTable())
	require.NoError(t, err)
	assert.Equal(t, "44711.75", got.StringFixed(2))
}

func TestWithholding_Table_ExemptShare_CappedAt25(t *testing.T) {
	// GIVEN: A configured 40% exempt share
	// THEN: Only 25% is honored; the results match a 25% configuration

	gross := engine.COP(uvt(200))
	cfg := engine.WithholdingConfig{Method: engine.WithholdingTable, Procedure: engine.Procedure1}

	cfg.ExemptIncomePct = engine.COP(40)
	capped, err := engine.ComputeWithholding(cfg, gross, paramsWithTable())
	require.NoError(t, err)

	cfg.ExemptIncomePct = engine.COP(25)
	at25, err := engine.ComputeWithholding(cfg, gross, paramsWithTable())
	require.NoError(t, err)

	assert.True(t, capped.Equal(at25), "capped=%s at25=%s", capped, at25)
}

// =============================================================================
// TABLE METHOD - Procedure 2
// =============================================================================

func TestWithholding_Table_Procedure2_RateFromTrailingAverage(t *testing.T) {
	// GIVEN: Trailing average of 150 UVT and a current period of 100 UVT
	// WHEN: Procedure 2
	// THEN: Rate = tax(150 UVT)/150 UVT = 10.45/150; applied to 100 UVT
	//       current income: 100 * 47,065 * 10.45/150 = 327,886.17

	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:                engine.WithholdingTable,
		Procedure:             engine.Procedure2,
		TrailingAverageIncome: engine.COP(uvt(150)),
	}, engine.COP(uvt(100)), paramsWithTable())
	require.NoError(t, err)
	assert.Equal(t, "327886.17", got.StringFixed(2))
}

func TestWithholding_Table_Procedure2_ZeroAverage_IsZero(t *testing.T) {
	got, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method:    engine.WithholdingTable,
		Procedure: engine.Procedure2,
	}, engine.COP(uvt(100)), paramsWithTable())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

// =============================================================================
// CONFIGURATION GUARDS
// =============================================================================

func TestWithholding_Table_MissingTable_IsConfigurationError(t *testing.T) {
	_, err := engine.ComputeWithholding(engine.WithholdingConfig{
		Method: engine.WithholdingTable,
	}, engine.COP(5_000_000), params2024())

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrMissingParams))
	assert.True(t, engine.IsConfiguration(err))
}

func TestWithholding_NegativeTaxable_IsInconsistency(t *testing.T) {
	_, err := engine.ComputeWithholding(engine.WithholdingConfig{Method: engine.WithholdingNone},
		engine.COP(-1), params2024())

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNegativeBase))
	assert.True(t, engine.IsInconsistency(err))
}
