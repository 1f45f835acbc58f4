/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the calculation engine and its data model via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List all employees
    POST   /api/employees                      Create/update employee
    GET    /api/employees/{id}                 Get employee details
    GET    /api/employees/{id}/contracts       Contracts of one employee
    GET    /api/employees/{id}/novelties       Novelties in a date window
    POST   /api/employees/{id}/family          Register a relative
    GET    /api/employees/{id}/family          Family with subsidy eligibility
    GET    /api/employees/{id}/affiliation-changes  Fund-change log

  Contracts:
    POST   /api/contracts                      Create contract (fail-fast validation)
    GET    /api/contracts/{id}                 Get contract
    POST   /api/contracts/{id}/wage-changes    Record a raise
    GET    /api/contracts/{id}/wage-changes    Append-only wage log
    GET    /api/contracts/{id}/variable-earnings

  Novelties / variable earnings / overtime:
    POST   /api/novelties                      Report attendance event
    POST   /api/variable-earnings              Report monthly variable pay
    POST   /api/overtime                       Report overtime hours

  Runs:
    POST   /api/runs                           Calculate a period
    GET    /api/runs                           List runs
    GET    /api/runs/{id}                      Run with lines + audit trail
    POST   /api/runs/{id}/validate             calculated -> validated
    POST   /api/runs/{id}/confirm              validated -> confirmed
    POST   /api/runs/{id}/reset                discard lines, back to draft
    POST   /api/runs/{id}/cancel               abandon an unconfirmed run
    POST   /api/runs/{id}/adjustments          Correction on a confirmed run
    GET    /api/runs/{id}/adjustments
    GET    /api/runs/{id}/reports/pila         Per-employee-per-fund summary
    GET    /api/runs/{id}/reports/payslips     Electronic-payroll totals
    GET    /api/runs/{id}/reports/bank         Net-pay transfer list
    GET    /api/runs/{id}/reports/summary      Consolidated totals

  Parameters:
    GET    /api/params/{year}                  Legal parameters for a year
    POST   /api/params                         Load a new year from JSON

ERROR HANDLING:
  Domain errors map to HTTP status by the engine's error taxonomy:
  - 400: validation errors, malformed input
  - 404: unknown employee/contract/run
  - 409: state conflicts (stale run state, duplicate wage event)
  - 422: configuration errors (missing year parameters)
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/errors.go: The error taxonomy driving status codes
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/andino-hr/payroll-engine/engine"
	"github.com/andino-hr/payroll-engine/factory"
	"github.com/andino-hr/payroll-engine/payroll"
	"github.com/andino-hr/payroll-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Log   *logrus.Logger

	// cfg holds the year-keyed legal parameters. Guarded because new
	// years can be loaded at runtime via POST /api/params.
	mu  sync.RWMutex
	cfg engine.CalculationConfig

	validate *validator.Validate
}

// NewHandler creates a handler with the given store and configuration.
func NewHandler(store *sqlite.Store, cfg engine.CalculationConfig, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Store:    store,
		Log:      log,
		cfg:      cfg,
		validate: validator.New(),
	}
}

func (h *Handler) engine() *engine.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return engine.New(h.cfg)
}

func (h *Handler) paramsFor(year int) (engine.LegalParams, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg.Params.ForYear(year)
}

// decodeAndValidate parses the request body and runs struct validation.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return engine.NewValidationError("body", "malformed JSON", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return engine.NewValidationError("body", err.Error(), err)
	}
	return nil
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or updates an employee record.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	record := payroll.EmployeeRecord{
		Employee: engine.Employee{
			ID:               engine.EmployeeID(req.ID),
			IdentityType:     req.IdentityType,
			IdentityNumber:   req.IdentityNumber,
			HealthFund:       engine.FundCode(req.HealthFund),
			PensionFund:      engine.FundCode(req.PensionFund),
			SeveranceFund:    engine.FundCode(req.SeveranceFund),
			RiskInsurer:      engine.FundCode(req.RiskInsurer),
			CompensationFund: engine.FundCode(req.CompensationFund),
		},
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		BankName:    req.BankName,
		BankAccount: req.BankAccount,
	}
	if req.BirthDate != "" {
		d, err := engine.ParseDate(req.BirthDate)
		if err != nil {
			h.writeError(w, engine.NewValidationError("birth_date", "malformed date", err))
			return
		}
		record.BirthDate = d
	}

	if err := h.Store.SaveEmployee(r.Context(), record); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(record))
}

// GetEmployee returns one employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := h.Store.GetEmployee(r.Context(), engine.EmployeeID(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(record))
}

// ListEmployeeContracts returns an employee's contracts.
func (h *Handler) ListEmployeeContracts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	contracts, err := h.Store.ListContractsByEmployee(r.Context(), engine.EmployeeID(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListEmployeeNovelties returns novelties overlapping ?from=..&to=..
func (h *Handler) ListEmployeeNovelties(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	from, err := engine.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		h.writeError(w, engine.NewValidationError("from", "malformed or missing date", err))
		return
	}
	to, err := engine.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(w, engine.NewValidationError("to", "malformed or missing date", err))
		return
	}

	novelties, err := h.Store.ListNovelties(r.Context(), engine.EmployeeID(id), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]NoveltyDTO, len(novelties))
	for i, n := range novelties {
		dtos[i] = NoveltyDTO{
			EmployeeID: string(n.EmployeeID),
			ContractID: string(n.ContractID),
			Kind:       string(n.Kind),
			From:       n.From.String(),
			To:         n.To.String(),
			Paid:       n.Paid,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFamilyMember registers a relative under an employee. The
// write-time rules (known relation, one spouse, no future birth dates)
// run before anything is stored.
func (h *Handler) CreateFamilyMember(w http.ResponseWriter, r *http.Request) {
	employeeID := engine.EmployeeID(chi.URLParam(r, "id"))
	var req FamilyMemberRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.Store.GetEmployee(r.Context(), employeeID); err != nil {
		h.writeError(w, err)
		return
	}
	birth, err := engine.ParseDate(req.BirthDate)
	if err != nil {
		h.writeError(w, engine.NewValidationError("birth_date", "malformed date", err))
		return
	}

	member := payroll.FamilyMember{
		ID:             req.ID,
		EmployeeID:     employeeID,
		Relation:       payroll.Relation(req.Relation),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		IdentityType:   req.IdentityType,
		IdentityNumber: req.IdentityNumber,
		BirthDate:      birth,
		Beneficiary:    req.Beneficiary,
		Dependent:      req.Dependent,
		Student:        req.Student,
		Disability:     req.Disability,
		Works:          req.Works,
	}

	existing, err := h.Store.ListFamilyMembers(r.Context(), employeeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	today := engine.DateOf(time.Now().UTC())
	if err := payroll.ValidateFamilyMember(member, existing, today); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.Store.SaveFamilyMember(r.Context(), member); err != nil {
		h.writeError(w, err)
		return
	}
	h.Log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"relation":    member.Relation,
	}).Info("family member registered")
	writeJSON(w, http.StatusCreated, toFamilyMemberDTO(member, today))
}

// ListFamilyMembers returns an employee's family with the subsidy
// eligibility derived as of today.
func (h *Handler) ListFamilyMembers(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	members, err := h.Store.ListFamilyMembers(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	today := engine.DateOf(time.Now().UTC())
	dtos := make([]FamilyMemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toFamilyMemberDTO(m, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAffiliationChanges returns the employee's fund-change log.
func (h *Handler) ListAffiliationChanges(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	events, err := h.Store.ListAffiliationEvents(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]AffiliationEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = AffiliationEventDTO{
			EmployeeID:    string(ev.EmployeeID),
			FundType:      ev.FundType,
			PreviousFund:  string(ev.PreviousFund),
			NewFund:       string(ev.NewFund),
			EffectiveDate: ev.EffectiveDate.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// CreateContract validates and stores a contract.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	contract, err := h.contractFromRequest(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Fail fast: statutory constraints are checked at contract time, not
	// at calculation time.
	params, err := h.paramsFor(contract.Start.Year())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := payroll.ValidateContract(contract, params); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.Store.SaveContract(r.Context(), contract); err != nil {
		h.writeError(w, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"contract": contract.ID,
		"employee": contract.EmployeeID,
		"wage":     contract.Wage.String(),
	}).Info("contract created")
	writeJSON(w, http.StatusCreated, toContractDTO(contract))
}

// GetContract returns one contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	contract, err := h.Store.GetContract(r.Context(), engine.ContractID(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(contract))
}

func (h *Handler) contractFromRequest(req CreateContractRequest) (engine.Contract, error) {
	wage, err := parseMoney("wage", req.Wage)
	if err != nil {
		return engine.Contract{}, err
	}
	start, err := engine.ParseDate(req.Start)
	if err != nil {
		return engine.Contract{}, engine.NewValidationError("start", "malformed date", err)
	}

	c := engine.Contract{
		ID:                 engine.ContractID(req.ID),
		EmployeeID:         engine.EmployeeID(req.EmployeeID),
		Wage:               wage,
		WageType:           engine.WageType(orDefault(req.WageType, string(engine.WageOrdinary))),
		TransportAllowance: req.TransportAllowance,
		SeverancePolicy:    engine.SeverancePolicy(orDefault(req.SeverancePolicy, string(engine.SeveranceBaseLegal))),
		RiskClass:          engine.RiskClass(req.RiskClass),
		Start:              start,
		State:              engine.ContractState(orDefault(req.State, string(engine.ContractOpen))),
	}
	if c.IntegralFactor, err = parseMoney("integral_factor", req.IntegralFactor); err != nil {
		return engine.Contract{}, err
	}
	if req.End != "" {
		end, err := engine.ParseDate(req.End)
		if err != nil {
			return engine.Contract{}, engine.NewValidationError("end", "malformed date", err)
		}
		c.End = &end
	}
	if req.Withholding != nil {
		wh := engine.WithholdingConfig{
			Method:    engine.WithholdingMethod(orDefault(req.Withholding.Method, string(engine.WithholdingNone))),
			Procedure: engine.WithholdingProcedure(req.Withholding.Procedure),
		}
		if wh.FixedValue, err = parseMoney("withholding.fixed_value", req.Withholding.FixedValue); err != nil {
			return engine.Contract{}, err
		}
		if wh.Percentage, err = parseMoney("withholding.percentage", req.Withholding.Percentage); err != nil {
			return engine.Contract{}, err
		}
		if wh.ExemptIncomePct, err = parseMoney("withholding.exempt_income_pct", req.Withholding.ExemptIncomePct); err != nil {
			return engine.Contract{}, err
		}
		if wh.TrailingAverageIncome, err = parseMoney("withholding.trailing_average_income", req.Withholding.TrailingAverageIncome); err != nil {
			return engine.Contract{}, err
		}
		c.Withholding = wh
	}
	return c, nil
}

// =============================================================================
// WAGE CHANGES
// =============================================================================

// ChangeWage appends a raise to the contract's wage log.
func (h *Handler) ChangeWage(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))

	var req WageChangeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	newWage, err := parseMoney("new_wage", req.NewWage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	effective, err := engine.ParseDate(req.EffectiveDate)
	if err != nil {
		h.writeError(w, engine.NewValidationError("effective_date", "malformed date", err))
		return
	}

	ctx := r.Context()
	contract, err := h.Store.GetContract(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	events, err := h.Store.LoadWageEvents(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Replay the log against the pre-log wage: the stored wage column
	// already reflects the latest event.
	contract.Wage = firstWage(contract, events)
	history := payroll.NewWageHistory(id, events)
	event, err := history.Append(contract, newWage, effective)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.AppendWageEvent(ctx, event); err != nil {
		h.writeError(w, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"contract":  id,
		"new_wage":  event.NewWage.String(),
		"effective": event.EffectiveDate.String(),
	}).Info("wage change recorded")
	writeJSON(w, http.StatusCreated, toWageEventDTO(event))
}

// firstWage recovers the wage before any logged event.
func firstWage(c engine.Contract, events []engine.WageEvent) decimal.Decimal {
	if len(events) == 0 {
		return c.Wage
	}
	return events[0].PreviousWage
}

// ListWageChanges returns the contract's append-only wage log.
func (h *Handler) ListWageChanges(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	events, err := h.Store.LoadWageEvents(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]WageEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toWageEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func toWageEventDTO(ev engine.WageEvent) WageEventDTO {
	return WageEventDTO{
		ContractID:    string(ev.ContractID),
		PreviousWage:  ev.PreviousWage.String(),
		NewWage:       ev.NewWage.String(),
		EffectiveDate: ev.EffectiveDate.String(),
	}
}

// =============================================================================
// NOVELTIES AND VARIABLE EARNINGS
// =============================================================================

// CreateNovelty stores an attendance event.
func (h *Handler) CreateNovelty(w http.ResponseWriter, r *http.Request) {
	var req NoveltyRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	from, err := engine.ParseDate(req.From)
	if err != nil {
		h.writeError(w, engine.NewValidationError("from", "malformed date", err))
		return
	}
	to, err := engine.ParseDate(req.To)
	if err != nil {
		h.writeError(w, engine.NewValidationError("to", "malformed date", err))
		return
	}
	if to.Before(from) {
		h.writeError(w, engine.NewValidationError("to", "novelty ends before it starts", engine.ErrInvalidPeriod))
		return
	}

	novelty := engine.Novelty{
		EmployeeID: engine.EmployeeID(req.EmployeeID),
		ContractID: engine.ContractID(req.ContractID),
		Kind:       engine.NoveltyKind(req.Kind),
		From:       from,
		To:         to,
		Paid:       req.Paid,
	}
	id := fmt.Sprintf("nov-%d", time.Now().UnixNano())
	if err := h.Store.SaveNovelty(r.Context(), id, novelty); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// RecordVariableEarning upserts a month's variable pay for a contract.
func (h *Handler) RecordVariableEarning(w http.ResponseWriter, r *http.Request) {
	var req VariableEarningRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	month, err := engine.ParseDate(req.Month)
	if err != nil {
		h.writeError(w, engine.NewValidationError("month", "malformed date", err))
		return
	}

	earning := engine.VariableEarning{
		ContractID: engine.ContractID(req.ContractID),
		Month:      engine.NewDate(month.Year(), month.Month(), 1),
		Amount:     amount,
	}
	if err := h.Store.SaveVariableEarning(r.Context(), earning); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"contract_id": req.ContractID,
		"month":       earning.Month.String(),
		"amount":      earning.Amount.String(),
	})
}

// RecordOvertime upserts reported overtime hours for a contract month.
func (h *Handler) RecordOvertime(w http.ResponseWriter, r *http.Request) {
	var req OvertimeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	hours, err := parseMoney("hours", req.Hours)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !hours.IsPositive() {
		h.writeError(w, engine.NewValidationError("hours", "overtime hours must be positive", nil))
		return
	}
	month, err := engine.ParseDate(req.Month)
	if err != nil {
		h.writeError(w, engine.NewValidationError("month", "malformed date", err))
		return
	}

	entry := engine.OvertimeEntry{
		ContractID: engine.ContractID(req.ContractID),
		Kind:       engine.OvertimeKind(req.Kind),
		Hours:      hours,
	}
	firstOfMonth := engine.NewDate(month.Year(), month.Month(), 1)
	if err := h.Store.SaveOvertime(r.Context(), firstOfMonth, entry); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"contract_id": req.ContractID,
		"month":       firstOfMonth.String(),
		"kind":        req.Kind,
		"hours":       hours.String(),
	})
}

// ListVariableEarnings returns a contract's reported variable pay.
func (h *Handler) ListVariableEarnings(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	earnings, err := h.Store.ListVariableEarnings(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]map[string]string, len(earnings))
	for i, e := range earnings {
		out[i] = map[string]string{
			"contract_id": string(e.ContractID),
			"month":       e.Month.String(),
			"amount":      e.Amount.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CalculateRun computes provisions and contributions for a period.
func (h *Handler) CalculateRun(w http.ResponseWriter, r *http.Request) {
	var req CalculateRunRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	from, err := engine.ParseDate(req.From)
	if err != nil {
		h.writeError(w, engine.NewValidationError("from", "malformed date", err))
		return
	}
	to, err := engine.ParseDate(req.To)
	if err != nil {
		h.writeError(w, engine.NewValidationError("to", "malformed date", err))
		return
	}
	period := engine.NewPeriod(from, to)

	var kinds []engine.BenefitKind
	for _, name := range req.Kinds {
		kind, ok := engine.ParseBenefitKind(name)
		if !ok {
			h.writeError(w, engine.NewValidationError("kinds", "unknown benefit kind "+name, nil))
			return
		}
		kinds = append(kinds, kind)
	}

	ctx := r.Context()
	employeeIDs := req.EmployeeIDs
	if len(employeeIDs) == 0 {
		records, err := h.Store.ListEmployees(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		for _, rec := range records {
			employeeIDs = append(employeeIDs, string(rec.ID))
		}
	}

	inputs := make([]engine.EmployeeInput, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		data, err := h.Store.LoadEmployeeData(ctx, engine.EmployeeID(id), period)
		if err != nil {
			h.writeError(w, err)
			return
		}
		inputs = append(inputs, payroll.BuildInput(data))
	}

	run, failures, err := h.engine().Calculate(ctx, period, inputs, kinds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	run.ID = engine.RunID(req.ID)

	if err := h.Store.SaveRun(ctx, run); err != nil {
		h.writeError(w, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"run":       run.ID,
		"period":    run.Period.String(),
		"lines":     len(run.Lines),
		"employees": len(inputs),
		"failures":  len(failures),
	}).Info("run calculated")

	resp := CalculateRunResponse{Run: toRunDTO(run, true)}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, EmployeeFailureDTO{
			EmployeeID: string(f.EmployeeID),
			Error:      f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListRuns returns all runs, newest first, without lines.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a run with its lines and audit trail.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run, true))
}

// ValidateRun runs the state-machine gates and advances to validated.
func (h *Handler) ValidateRun(w http.ResponseWriter, r *http.Request) {
	h.transitionRun(w, r, func(run *engine.Run, actor string) error {
		params, err := h.paramsFor(run.Period.Year())
		if err != nil {
			return err
		}
		return run.Validate(params, actor)
	})
}

// ConfirmRun advances validated -> confirmed.
func (h *Handler) ConfirmRun(w http.ResponseWriter, r *http.Request) {
	h.transitionRun(w, r, func(run *engine.Run, actor string) error {
		return run.Confirm(actor)
	})
}

// ResetRun discards lines and returns the run to draft.
func (h *Handler) ResetRun(w http.ResponseWriter, r *http.Request) {
	h.transitionRun(w, r, func(run *engine.Run, actor string) error {
		return run.Reset(actor)
	})
}

// CancelRun abandons an unconfirmed run.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	h.transitionRun(w, r, func(run *engine.Run, actor string) error {
		return run.Cancel(actor)
	})
}

// transitionRun loads the run, applies the in-memory transition, and
// persists it with a compare-and-swap on the previous state.
func (h *Handler) transitionRun(w http.ResponseWriter, r *http.Request, apply func(*engine.Run, string) error) {
	var req TransitionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	runID := engine.RunID(chi.URLParam(r, "id"))
	run, err := h.Store.GetRun(ctx, runID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	before := run.State
	if err := apply(run, req.Actor); err != nil {
		h.writeError(w, err)
		return
	}

	// Reuse the in-memory transition's timestamp so the audit trail
	// dedupes if the run is saved again.
	at := run.History[len(run.History)-1].At
	if err := h.Store.UpdateRunState(ctx, runID, before, run.State, req.Actor, at); err != nil {
		h.writeError(w, err)
		return
	}
	if run.State == engine.RunDraft {
		// A reset discards the computed lines; persist the empty run so a
		// reload does not resurrect them.
		if err := h.Store.SaveRun(ctx, run); err != nil {
			h.writeError(w, err)
			return
		}
	}

	h.Log.WithFields(logrus.Fields{
		"run":   runID,
		"from":  before,
		"to":    run.State,
		"actor": req.Actor,
	}).Info("run state changed")
	writeJSON(w, http.StatusOK, toRunDTO(run, false))
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// CreateAdjustment records a correction against a confirmed run.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	kind, ok := engine.ParseBenefitKind(req.Kind)
	if !ok {
		h.writeError(w, engine.NewValidationError("kind", "unknown benefit kind "+req.Kind, nil))
		return
	}
	delta, err := parseMoney("delta", req.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	run, err := h.Store.GetRun(ctx, engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}

	adj, err := payroll.NewAdjustment(run, engine.EmployeeID(req.EmployeeID), kind, delta, req.Reason, req.Actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	adj.ID = fmt.Sprintf("adj-%d", time.Now().UnixNano())

	if err := h.Store.SaveAdjustment(ctx, adj); err != nil {
		h.writeError(w, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"run":      run.ID,
		"employee": req.EmployeeID,
		"kind":     req.Kind,
		"delta":    delta.String(),
	}).Info("adjustment recorded")
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// ListAdjustments returns a run's adjustment records.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	adjustments, err := h.Store.ListAdjustments(r.Context(), engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]AdjustmentDTO, len(adjustments))
	for i, a := range adjustments {
		dtos[i] = toAdjustmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORTS
// =============================================================================

// PILAReport groups the run's contributions per employee per fund.
func (h *Handler) PILAReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries := engine.PILASummary(run.Contributions)
	dtos := make([]PILAEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = PILAEntryDTO{
			EmployeeID: string(e.EmployeeID),
			Fund:       string(e.Fund),
			FundType:   string(e.FundType),
			IBC:        e.IBC.String(),
			Amount:     e.Amount.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PayslipsReport computes per-employee payslip totals for the run period.
func (h *Handler) PayslipsReport(w http.ResponseWriter, r *http.Request) {
	slips, _, err := h.payslipsForRun(r, engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]PayslipDTO, len(slips))
	for i, s := range slips {
		dtos[i] = toPayslipDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// BankReport reduces payslips to a net-pay transfer list.
func (h *Handler) BankReport(w http.ResponseWriter, r *http.Request) {
	slips, records, err := h.payslipsForRun(r, engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	payments := engine.BankPayments(slips)
	dtos := make([]BankPaymentDTO, len(payments))
	for i, p := range payments {
		dto := BankPaymentDTO{
			EmployeeID: string(p.EmployeeID),
			Net:        p.Net.StringFixed(2),
		}
		if rec, ok := records[p.EmployeeID]; ok {
			dto.BankName = rec.BankName
			dto.BankAccount = rec.BankAccount
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SummaryReport returns consolidated totals per kind and per employee.
func (h *Handler) SummaryReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto := RunSummaryDTO{
		RunID:      string(run.ID),
		State:      string(run.State),
		ByKind:     map[string]string{},
		ByEmployee: map[string]string{},
	}
	for kind, total := range engine.TotalsByKind(run) {
		dto.ByKind[kind.String()] = total.StringFixed(2)
	}
	for id, total := range engine.TotalsByEmployee(run) {
		dto.ByEmployee[string(id)] = total.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) payslipsForRun(r *http.Request, runID engine.RunID) ([]engine.PayslipTotals, map[engine.EmployeeID]payroll.EmployeeRecord, error) {
	ctx := r.Context()
	run, err := h.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	seen := map[engine.EmployeeID]bool{}
	var ids []engine.EmployeeID
	for _, line := range run.Lines {
		if !seen[line.EmployeeID] {
			seen[line.EmployeeID] = true
			ids = append(ids, line.EmployeeID)
		}
	}

	eng := h.engine()
	records := make(map[engine.EmployeeID]payroll.EmployeeRecord, len(ids))
	slips := make([]engine.PayslipTotals, 0, len(ids))
	for _, id := range ids {
		data, err := h.Store.LoadEmployeeData(ctx, id, run.Period)
		if err != nil {
			return nil, nil, err
		}
		slip, err := eng.Payslip(run.Period, payroll.BuildInput(data))
		if err != nil {
			return nil, nil, engine.EmployeeError{EmployeeID: id, Err: err}
		}
		records[id] = data.Record
		slips = append(slips, slip)
	}
	return slips, records, nil
}

// =============================================================================
// LEGAL PARAMETERS
// =============================================================================

// GetParams returns the legal parameters for a year.
func (h *Handler) GetParams(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	params, err := h.paramsFor(year)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.NewParamsFactory().ToJSON(params))
}

// LoadParams loads a new year's parameters from its JSON definition.
func (h *Handler) LoadParams(w http.ResponseWriter, r *http.Request) {
	var pj factory.ParamsJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		h.writeError(w, engine.NewValidationError("body", "malformed JSON", err))
		return
	}
	params, err := factory.NewParamsFactory().FromJSON(pj)
	if err != nil {
		h.writeError(w, engine.NewValidationError("body", err.Error(), err))
		return
	}

	h.mu.Lock()
	next := make(engine.ParamsByYear, len(h.cfg.Params)+1)
	for year, p := range h.cfg.Params {
		next[year] = p
	}
	next[params.Year] = params
	h.cfg.Params = next
	h.mu.Unlock()

	h.Log.WithField("year", params.Year).Info("legal parameters loaded")
	writeJSON(w, http.StatusCreated, factory.NewParamsFactory().ToJSON(params))
}

func yearParam(r *http.Request) (int, error) {
	var year int
	if _, err := fmt.Sscanf(chi.URLParam(r, "year"), "%d", &year); err != nil {
		return 0, engine.NewValidationError("year", "malformed year", err)
	}
	return year, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sqlite.ErrDuplicateWageEvent),
		errors.Is(err, sqlite.ErrStaleRunState),
		errors.Is(err, engine.ErrRunState),
		errors.Is(err, engine.ErrRunConfirmed):
		status = http.StatusConflict
	case engine.IsValidation(err) || engine.IsInconsistency(err):
		status = http.StatusBadRequest
	case engine.IsConfiguration(err):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
