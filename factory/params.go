/*
Package factory provides JSON to Go legal-parameter conversion.

PURPOSE:
  Converts JSON parameter definitions into engine.LegalParams. The legal
  values (minimum wage, transport allowance, UVT, withholding brackets)
  change every year by decree, so operations can load a new year from
  JSON without a code change - and the shipped statutory presets cover
  the recent years out of the box.

JSON SCHEMA:
  {
    "year": 2024,
    "minimum_wage": "1300000",
    "transport_allowance": "162000",
    "uvt": "47065",
    "withholding_table": [
      {"from_uvt": "0",  "to_uvt": "95",  "rate": "0",  "fixed_uvt": "0"},
      {"from_uvt": "95", "to_uvt": "150", "rate": "19", "fixed_uvt": "0"}
    ]
  }

  Monetary fields are decimal strings to keep exactness through the JSON
  round trip. An omitted or zero to_uvt marks the open-ended top bracket.

USAGE:
  f := factory.NewParamsFactory()
  params, err := f.ParseParams(jsonString)

  // Or the shipped presets
  cfg := factory.DefaultConfig()

SEE ALSO:
  - engine/params.go: the LegalParams consumed per run
  - api/server.go: the endpoint loading year parameters at runtime
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/andino-hr/payroll-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ParamsJSON is the JSON representation of one year's legal parameters.
type ParamsJSON struct {
	Year               int             `json:"year"`
	MinimumWage        decimal.Decimal `json:"minimum_wage"`
	TransportAllowance decimal.Decimal `json:"transport_allowance"`
	UVT                decimal.Decimal `json:"uvt"`
	WithholdingTable   []BracketJSON   `json:"withholding_table,omitempty"`
}

// BracketJSON is one progressive withholding bracket, bounds in UVT.
type BracketJSON struct {
	FromUVT  decimal.Decimal `json:"from_uvt"`
	ToUVT    decimal.Decimal `json:"to_uvt,omitempty"`
	Rate     decimal.Decimal `json:"rate"`
	FixedUVT decimal.Decimal `json:"fixed_uvt,omitempty"`
}

// =============================================================================
// PARAMS FACTORY
// =============================================================================

// ParamsFactory converts JSON parameter definitions to engine structs.
type ParamsFactory struct{}

func NewParamsFactory() *ParamsFactory {
	return &ParamsFactory{}
}

// ParseParams parses a JSON string into one year's LegalParams.
func (f *ParamsFactory) ParseParams(jsonStr string) (engine.LegalParams, error) {
	var pj ParamsJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return engine.LegalParams{}, fmt.Errorf("failed to parse params JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts ParamsJSON to engine.LegalParams with sanity checks.
func (f *ParamsFactory) FromJSON(pj ParamsJSON) (engine.LegalParams, error) {
	if pj.Year < 2000 || pj.Year > 2100 {
		return engine.LegalParams{}, fmt.Errorf("implausible year %d", pj.Year)
	}
	if !pj.MinimumWage.IsPositive() {
		return engine.LegalParams{}, fmt.Errorf("minimum wage must be positive for %d", pj.Year)
	}
	if pj.TransportAllowance.IsNegative() {
		return engine.LegalParams{}, fmt.Errorf("transport allowance cannot be negative for %d", pj.Year)
	}

	params := engine.LegalParams{
		Year:               pj.Year,
		MinimumWage:        pj.MinimumWage,
		TransportAllowance: pj.TransportAllowance,
		UVT:                pj.UVT,
	}

	prev := decimal.NewFromInt(-1)
	for i, bj := range pj.WithholdingTable {
		if bj.FromUVT.LessThanOrEqual(prev) {
			return engine.LegalParams{}, fmt.Errorf("withholding bracket %d out of order for %d", i, pj.Year)
		}
		if !bj.ToUVT.IsZero() && bj.ToUVT.LessThanOrEqual(bj.FromUVT) {
			return engine.LegalParams{}, fmt.Errorf("withholding bracket %d has an empty range for %d", i, pj.Year)
		}
		prev = bj.FromUVT
		params.WithholdingTable = append(params.WithholdingTable, engine.WithholdingBracket{
			FromUVT:      bj.FromUVT,
			ToUVT:        bj.ToUVT,
			MarginalRate: bj.Rate,
			FixedUVT:     bj.FixedUVT,
		})
	}
	return params, nil
}

// ToJSON converts LegalParams back to its JSON representation.
func (f *ParamsFactory) ToJSON(params engine.LegalParams) ParamsJSON {
	pj := ParamsJSON{
		Year:               params.Year,
		MinimumWage:        params.MinimumWage,
		TransportAllowance: params.TransportAllowance,
		UVT:                params.UVT,
	}
	for _, b := range params.WithholdingTable {
		pj.WithholdingTable = append(pj.WithholdingTable, BracketJSON{
			FromUVT:  b.FromUVT,
			ToUVT:    b.ToUVT,
			Rate:     b.MarginalRate,
			FixedUVT: b.FixedUVT,
		})
	}
	return pj
}

// =============================================================================
// STATUTORY PRESETS
// =============================================================================

// statutoryWithholdingTable is the article 383 monthly-payments table,
// stable across the preset years; only the UVT value moves.
func statutoryWithholdingTable() []engine.WithholdingBracket {
	b := func(from, to, rate, fixed string) engine.WithholdingBracket {
		return engine.WithholdingBracket{
			FromUVT:      engine.MustDecimal(from),
			ToUVT:        engine.MustDecimal(to),
			MarginalRate: engine.MustDecimal(rate),
			FixedUVT:     engine.MustDecimal(fixed),
		}
	}
	return []engine.WithholdingBracket{
		b("0", "95", "0", "0"),
		b("95", "150", "19", "0"),
		b("150", "360", "28", "10"),
		b("360", "640", "33", "69"),
		b("640", "945", "35", "162"),
		b("945", "2300", "37", "268"),
		b("2300", "0", "39", "770"),
	}
}

// StandardParams returns the decreed values for the shipped years.
func StandardParams() engine.ParamsByYear {
	table := statutoryWithholdingTable()
	return engine.ParamsByYear{
		2023: {
			Year:               2023,
			MinimumWage:        engine.MustDecimal("1160000"),
			TransportAllowance: engine.MustDecimal("140606"),
			UVT:                engine.MustDecimal("42412"),
			WithholdingTable:   table,
		},
		2024: {
			Year:               2024,
			MinimumWage:        engine.MustDecimal("1300000"),
			TransportAllowance: engine.MustDecimal("162000"),
			UVT:                engine.MustDecimal("47065"),
			WithholdingTable:   table,
		},
		2025: {
			Year:               2025,
			MinimumWage:        engine.MustDecimal("1423500"),
			TransportAllowance: engine.MustDecimal("200000"),
			UVT:                engine.MustDecimal("49799"),
			WithholdingTable:   table,
		},
	}
}

// DefaultConfig is the calculation configuration with the shipped presets
// and the standard 3-month variable-earnings window.
func DefaultConfig() engine.CalculationConfig {
	return engine.CalculationConfig{
		Params:               StandardParams(),
		VariableWindowMonths: 3,
	}
}
