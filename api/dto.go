/*
dto.go - Data transfer objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

CONVENTIONS:
  - Monetary amounts travel as decimal strings ("1300000.00"), never as
    floats: the engine guarantees exactness and the API must not lose it.
  - Dates travel as "2006-01-02" strings.
  - Requests carry go-playground/validator tags; handlers run the
    validator before touching domain logic.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - factory/params.go: ParamsJSON, the year-parameter wire schema
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/andino-hr/payroll-engine/engine"
	"github.com/andino-hr/payroll-engine/payroll"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email,omitempty"`
	IdentityType   string `json:"identity_type"`
	IdentityNumber string `json:"identity_number"`
	BirthDate      string `json:"birth_date,omitempty"`

	HealthFund       string `json:"health_fund,omitempty"`
	PensionFund      string `json:"pension_fund,omitempty"`
	SeveranceFund    string `json:"severance_fund,omitempty"`
	RiskInsurer      string `json:"risk_insurer,omitempty"`
	CompensationFund string `json:"compensation_fund,omitempty"`

	BankName    string `json:"bank_name,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID             string `json:"id" validate:"required"`
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
	IdentityType   string `json:"identity_type" validate:"required,oneof=CC CE TI PA PEP"`
	IdentityNumber string `json:"identity_number" validate:"required"`
	BirthDate      string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`

	HealthFund       string `json:"health_fund"`
	PensionFund      string `json:"pension_fund"`
	SeveranceFund    string `json:"severance_fund"`
	RiskInsurer      string `json:"risk_insurer"`
	CompensationFund string `json:"compensation_fund"`

	BankName    string `json:"bank_name"`
	BankAccount string `json:"bank_account"`
}

// FamilyMemberRequest adds or updates a relative on an employee.
type FamilyMemberRequest struct {
	ID             string `json:"id" validate:"required"`
	Relation       string `json:"relation" validate:"required,oneof=spouse child parent sibling other"`
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name"`
	IdentityType   string `json:"identity_type" validate:"omitempty,oneof=CC CE TI RC PA PEP"`
	IdentityNumber string `json:"identity_number"`
	BirthDate      string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Beneficiary    bool   `json:"beneficiary"`
	Dependent      bool   `json:"dependent"`
	Student        bool   `json:"student"`
	Disability     bool   `json:"disability"`
	Works          bool   `json:"works"`
}

// FamilyMemberDTO represents a relative, with the subsidy eligibility
// derived as of today.
type FamilyMemberDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	Relation        string `json:"relation"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name,omitempty"`
	IdentityType    string `json:"identity_type,omitempty"`
	IdentityNumber  string `json:"identity_number,omitempty"`
	BirthDate       string `json:"birth_date"`
	Beneficiary     bool   `json:"beneficiary"`
	Dependent       bool   `json:"dependent"`
	Student         bool   `json:"student"`
	Disability      bool   `json:"disability"`
	Works           bool   `json:"works"`
	SubsidyEligible bool   `json:"subsidy_eligible"`
}

// AffiliationEventDTO is one entry of an employee's fund-change log.
type AffiliationEventDTO struct {
	EmployeeID    string `json:"employee_id"`
	FundType      string `json:"fund_type"`
	PreviousFund  string `json:"previous_fund,omitempty"`
	NewFund       string `json:"new_fund"`
	EffectiveDate string `json:"effective_date"`
}

// =============================================================================
// CONTRACTS AND WAGES
// =============================================================================

// WithholdingDTO mirrors a contract's withholding configuration.
type WithholdingDTO struct {
	Method                string `json:"method" validate:"omitempty,oneof=none fixed percentage table"`
	Procedure             int    `json:"procedure,omitempty" validate:"omitempty,oneof=1 2"`
	FixedValue            string `json:"fixed_value,omitempty"`
	Percentage            string `json:"percentage,omitempty"`
	ExemptIncomePct       string `json:"exempt_income_pct,omitempty"`
	TrailingAverageIncome string `json:"trailing_average_income,omitempty"`
}

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID                 string          `json:"id"`
	EmployeeID         string          `json:"employee_id"`
	Wage               string          `json:"wage"`
	WageType           string          `json:"wage_type"`
	IntegralFactor     string          `json:"integral_factor,omitempty"`
	TransportAllowance bool            `json:"transport_allowance"`
	SeverancePolicy    string          `json:"severance_policy"`
	RiskClass          int             `json:"risk_class"`
	Withholding        *WithholdingDTO `json:"withholding,omitempty"`
	Start              string          `json:"start"`
	End                *string         `json:"end,omitempty"`
	State              string          `json:"state"`
}

// CreateContractRequest is the request to create a contract.
type CreateContractRequest struct {
	ID                 string          `json:"id" validate:"required"`
	EmployeeID         string          `json:"employee_id" validate:"required"`
	Wage               string          `json:"wage" validate:"required"`
	WageType           string          `json:"wage_type" validate:"omitempty,oneof=ordinary integral"`
	IntegralFactor     string          `json:"integral_factor"`
	TransportAllowance bool            `json:"transport_allowance"`
	SeverancePolicy    string          `json:"severance_policy" validate:"omitempty,oneof=all wage legal"`
	RiskClass          int             `json:"risk_class" validate:"required,min=1,max=5"`
	Withholding        *WithholdingDTO `json:"withholding"`
	Start              string          `json:"start" validate:"required,datetime=2006-01-02"`
	End                string          `json:"end" validate:"omitempty,datetime=2006-01-02"`
	State              string          `json:"state" validate:"omitempty,oneof=draft open suspended closed"`
}

// WageChangeRequest records a raise on a contract.
type WageChangeRequest struct {
	NewWage       string `json:"new_wage" validate:"required"`
	EffectiveDate string `json:"effective_date" validate:"required,datetime=2006-01-02"`
}

// WageEventDTO is one entry of a contract's append-only wage log.
type WageEventDTO struct {
	ContractID    string `json:"contract_id"`
	PreviousWage  string `json:"previous_wage"`
	NewWage       string `json:"new_wage"`
	EffectiveDate string `json:"effective_date"`
}

// =============================================================================
// NOVELTIES AND VARIABLE EARNINGS
// =============================================================================

// NoveltyRequest reports a time-bounded attendance event.
type NoveltyRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	ContractID string `json:"contract_id" validate:"required"`
	Kind       string `json:"kind" validate:"required,oneof=vacation incapacity maternity paid_leave unpaid_leave suspension"`
	From       string `json:"from" validate:"required,datetime=2006-01-02"`
	To         string `json:"to" validate:"required,datetime=2006-01-02"`
	Paid       bool   `json:"paid"`
}

// NoveltyDTO represents a novelty in API responses.
type NoveltyDTO struct {
	EmployeeID string `json:"employee_id"`
	ContractID string `json:"contract_id"`
	Kind       string `json:"kind"`
	From       string `json:"from"`
	To         string `json:"to"`
	Paid       bool   `json:"paid"`
}

// OvertimeRequest reports overtime hours for a contract and month.
type OvertimeRequest struct {
	ContractID string `json:"contract_id" validate:"required"`
	Month      string `json:"month" validate:"required,datetime=2006-01-02"`
	Kind       string `json:"kind" validate:"required,oneof=heo hen hedo hedn heno henn"`
	Hours      string `json:"hours" validate:"required"`
}

// VariableEarningRequest reports a month's salary-constitutive variable pay.
type VariableEarningRequest struct {
	ContractID string `json:"contract_id" validate:"required"`
	Month      string `json:"month" validate:"required,datetime=2006-01-02"`
	Amount     string `json:"amount" validate:"required"`
}

// =============================================================================
// RUNS
// =============================================================================

// CalculateRunRequest starts a calculation for a period.
type CalculateRunRequest struct {
	ID          string   `json:"id" validate:"required"`
	From        string   `json:"from" validate:"required,datetime=2006-01-02"`
	To          string   `json:"to" validate:"required,datetime=2006-01-02"`
	EmployeeIDs []string `json:"employee_ids"` // empty = every employee
	Kinds       []string `json:"kinds"`        // empty = every benefit kind
}

// TransitionRequest names the actor for a run state transition.
type TransitionRequest struct {
	Actor string `json:"actor" validate:"required"`
}

// ProvisionLineDTO is one computed benefit line.
type ProvisionLineDTO struct {
	EmployeeID  string `json:"employee_id"`
	ContractID  string `json:"contract_id"`
	Kind        string `json:"kind"`
	Base        string `json:"base"`
	Amount      string `json:"amount"`
	WorkedDays  int    `json:"worked_days"`
	SegmentFrom string `json:"segment_from"`
	SegmentTo   string `json:"segment_to"`
}

// ContributionLineDTO is one social-security or parafiscal amount.
type ContributionLineDTO struct {
	EmployeeID string `json:"employee_id"`
	ContractID string `json:"contract_id"`
	Kind       string `json:"kind"`
	Fund       string `json:"fund,omitempty"`
	IBC        string `json:"ibc"`
	Amount     string `json:"amount"`
}

// RunEventDTO is one audit-trail transition.
type RunEventDTO struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Actor string `json:"actor"`
	At    string `json:"at"`
}

// RunDTO represents a calculation run.
type RunDTO struct {
	ID            string                `json:"id"`
	From          string                `json:"from"`
	To            string                `json:"to"`
	State         string                `json:"state"`
	Lines         []ProvisionLineDTO    `json:"lines,omitempty"`
	Contributions []ContributionLineDTO `json:"contributions,omitempty"`
	History       []RunEventDTO         `json:"history,omitempty"`
}

// EmployeeFailureDTO reports one employee excluded from a run.
type EmployeeFailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

// CalculateRunResponse is the run plus any per-employee failures.
type CalculateRunResponse struct {
	Run      RunDTO               `json:"run"`
	Failures []EmployeeFailureDTO `json:"failures,omitempty"`
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// AdjustmentRequest records a correction on a confirmed run.
type AdjustmentRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Kind       string `json:"kind" validate:"required"`
	Delta      string `json:"delta" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
	Actor      string `json:"actor" validate:"required"`
}

// AdjustmentDTO represents an adjustment in API responses.
type AdjustmentDTO struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	EmployeeID string `json:"employee_id"`
	Kind       string `json:"kind"`
	Delta      string `json:"delta"`
	Reason     string `json:"reason"`
	CreatedAt  string `json:"created_at"`
	CreatedBy  string `json:"created_by"`
}

// =============================================================================
// REPORTS
// =============================================================================

// PayslipDTO is the per-employee electronic-payroll summary.
type PayslipDTO struct {
	EmployeeID         string `json:"employee_id"`
	WorkedDays         int    `json:"worked_days"`
	GrossEarnings      string `json:"gross_earnings"`
	TransportAllowance string `json:"transport_allowance"`
	OvertimeValue      string `json:"overtime_value"`
	HealthEmployee     string `json:"health_employee"`
	HealthCompany      string `json:"health_company"`
	PensionEmployee    string `json:"pension_employee"`
	PensionCompany     string `json:"pension_company"`
	ARL                string `json:"arl"`
	WithholdingTax     string `json:"withholding_tax"`
	Net                string `json:"net"`
}

// PILAEntryDTO is one fund's row in the contribution summary.
type PILAEntryDTO struct {
	EmployeeID string `json:"employee_id"`
	Fund       string `json:"fund"`
	FundType   string `json:"fund_type"`
	IBC        string `json:"ibc"`
	Amount     string `json:"amount"`
}

// BankPaymentDTO is one net-pay transfer.
type BankPaymentDTO struct {
	EmployeeID  string `json:"employee_id"`
	BankName    string `json:"bank_name,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
	Net         string `json:"net"`
}

// RunSummaryDTO is the consolidated provision report.
type RunSummaryDTO struct {
	RunID      string            `json:"run_id"`
	State      string            `json:"state"`
	ByKind     map[string]string `json:"by_kind"`
	ByEmployee map[string]string `json:"by_employee"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e payroll.EmployeeRecord) EmployeeDTO {
	dto := EmployeeDTO{
		ID:               string(e.ID),
		FirstName:        e.FirstName,
		LastName:         e.LastName,
		Email:            e.Email,
		IdentityType:     e.IdentityType,
		IdentityNumber:   e.IdentityNumber,
		HealthFund:       string(e.HealthFund),
		PensionFund:      string(e.PensionFund),
		SeveranceFund:    string(e.SeveranceFund),
		RiskInsurer:      string(e.RiskInsurer),
		CompensationFund: string(e.CompensationFund),
		BankName:         e.BankName,
		BankAccount:      e.BankAccount,
	}
	if !e.BirthDate.IsZero() {
		dto.BirthDate = e.BirthDate.String()
	}
	return dto
}

func toFamilyMemberDTO(m payroll.FamilyMember, asOf engine.Date) FamilyMemberDTO {
	return FamilyMemberDTO{
		ID:              m.ID,
		EmployeeID:      string(m.EmployeeID),
		Relation:        string(m.Relation),
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		IdentityType:    m.IdentityType,
		IdentityNumber:  m.IdentityNumber,
		BirthDate:       m.BirthDate.String(),
		Beneficiary:     m.Beneficiary,
		Dependent:       m.Dependent,
		Student:         m.Student,
		Disability:      m.Disability,
		Works:           m.Works,
		SubsidyEligible: m.SubsidyEligible(asOf),
	}
}

func toContractDTO(c engine.Contract) ContractDTO {
	dto := ContractDTO{
		ID:                 string(c.ID),
		EmployeeID:         string(c.EmployeeID),
		Wage:               c.Wage.String(),
		WageType:           string(c.WageType),
		TransportAllowance: c.TransportAllowance,
		SeverancePolicy:    string(c.SeverancePolicy),
		RiskClass:          int(c.RiskClass),
		Start:              c.Start.String(),
		State:              string(c.State),
	}
	if !c.IntegralFactor.IsZero() {
		dto.IntegralFactor = c.IntegralFactor.String()
	}
	if c.End != nil {
		s := c.End.String()
		dto.End = &s
	}
	if c.Withholding.Method != "" && c.Withholding.Method != engine.WithholdingNone {
		dto.Withholding = &WithholdingDTO{
			Method:                string(c.Withholding.Method),
			Procedure:             int(c.Withholding.Procedure),
			FixedValue:            c.Withholding.FixedValue.String(),
			Percentage:            c.Withholding.Percentage.String(),
			ExemptIncomePct:       c.Withholding.ExemptIncomePct.String(),
			TrailingAverageIncome: c.Withholding.TrailingAverageIncome.String(),
		}
	}
	return dto
}

func toRunDTO(run *engine.Run, includeLines bool) RunDTO {
	dto := RunDTO{
		ID:    string(run.ID),
		From:  run.Period.From.String(),
		To:    run.Period.To.String(),
		State: string(run.State),
	}
	if !includeLines {
		return dto
	}
	for _, l := range run.Lines {
		dto.Lines = append(dto.Lines, ProvisionLineDTO{
			EmployeeID:  string(l.EmployeeID),
			ContractID:  string(l.ContractID),
			Kind:        l.Kind.String(),
			Base:        l.Base.String(),
			Amount:      l.Amount.StringFixed(2),
			WorkedDays:  l.WorkedDays,
			SegmentFrom: l.SegmentFrom.String(),
			SegmentTo:   l.SegmentTo.String(),
		})
	}
	for _, c := range run.Contributions {
		dto.Contributions = append(dto.Contributions, ContributionLineDTO{
			EmployeeID: string(c.EmployeeID),
			ContractID: string(c.ContractID),
			Kind:       c.Kind.String(),
			Fund:       string(c.Fund),
			IBC:        c.IBC.String(),
			Amount:     c.Amount.StringFixed(2),
		})
	}
	for _, ev := range run.History {
		dto.History = append(dto.History, RunEventDTO{
			From:  string(ev.From),
			To:    string(ev.To),
			Actor: ev.Actor,
			At:    ev.At.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return dto
}

func toPayslipDTO(p engine.PayslipTotals) PayslipDTO {
	return PayslipDTO{
		EmployeeID:         string(p.EmployeeID),
		WorkedDays:         p.WorkedDays,
		GrossEarnings:      p.GrossEarnings.StringFixed(2),
		TransportAllowance: p.TransportAllowance.StringFixed(2),
		OvertimeValue:      p.OvertimeValue.StringFixed(2),
		HealthEmployee:     p.HealthEmployee.StringFixed(2),
		HealthCompany:      p.HealthCompany.StringFixed(2),
		PensionEmployee:    p.PensionEmployee.StringFixed(2),
		PensionCompany:     p.PensionCompany.StringFixed(2),
		ARL:                p.ARL.StringFixed(2),
		WithholdingTax:     p.WithholdingTax.StringFixed(2),
		Net:                p.Net.StringFixed(2),
	}
}

func toAdjustmentDTO(a payroll.Adjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:         a.ID,
		RunID:      string(a.RunID),
		EmployeeID: string(a.EmployeeID),
		Kind:       a.Kind.String(),
		Delta:      a.Delta.StringFixed(2),
		Reason:     a.Reason,
		CreatedAt:  a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		CreatedBy:  a.CreatedBy,
	}
}

// parseMoney parses a decimal string, rejecting malformed input.
func parseMoney(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, engine.NewValidationError(field, "malformed decimal "+s, err)
	}
	return d, nil
}
