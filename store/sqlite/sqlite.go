/*
Package sqlite provides a SQLite-backed implementation of payroll storage.

PURPOSE:
  Persists every record the calculation pipeline reads and writes:
  employees, contracts, the append-only wage history, novelties, variable
  earnings, calculation runs with their lines, and adjustments. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  wage_history and adjustments are append-only:
  - No UPDATE statements on either table
  - No DELETE statements on either table
  - Wage corrections happen by appending a counter-event; confirmed run
    corrections by appending another adjustment

RUN IMMUTABILITY:
  Provision and contribution lines insert inside one transaction per run
  save, and only while the run is in draft or calculated state. State
  updates are guarded with a compare-and-swap on the current state, so a
  concurrent confirm cannot be overwritten by a stale reset.

KEY TABLES:
  employees:          Identity, affiliations and payment details
  contracts:          Labor contract snapshots, validity-windowed
  wage_history:       Immutable wage-change event log
  novelties:          Time-bounded attendance events
  variable_earnings:  Monthly salary-constitutive variable pay
  runs / run_history: Calculation runs and their state transitions
  provision_lines:    Computed benefit amounts per run
  contribution_lines: Computed social-security amounts per run
  adjustments:        Additive corrections against confirmed runs

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll: the records persisted here
  - engine: the calculation outputs persisted per run
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/andino-hr/payroll-engine/engine"
	"github.com/andino-hr/payroll-engine/payroll"
)

// Sentinel errors for callers to branch on.
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateWageEvent = errors.New("wage event already recorded for that contract and date")
	ErrStaleRunState      = errors.New("run state changed concurrently")
)

// Store implements payroll persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		identity_type TEXT NOT NULL,
		identity_number TEXT NOT NULL,
		birth_date TEXT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT,
		bank_name TEXT,
		bank_account TEXT,
		health_fund TEXT,
		pension_fund TEXT,
		severance_fund TEXT,
		risk_insurer TEXT,
		compensation_fund TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_identity
		ON employees(identity_type, identity_number);

	-- Fund-affiliation change log, appended by the employee upsert
	CREATE TABLE IF NOT EXISTS affiliation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		fund_type TEXT NOT NULL,
		previous_fund TEXT NOT NULL,
		new_fund TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_affiliation_history_employee
		ON affiliation_history(employee_id, fund_type, effective_date);

	CREATE TABLE IF NOT EXISTS family_members (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		relation TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		identity_type TEXT,
		identity_number TEXT,
		birth_date TEXT NOT NULL,
		beneficiary INTEGER NOT NULL DEFAULT 0,
		dependent INTEGER NOT NULL DEFAULT 0,
		student INTEGER NOT NULL DEFAULT 0,
		disability INTEGER NOT NULL DEFAULT 0,
		works INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_family_members_employee
		ON family_members(employee_id);

	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		wage TEXT NOT NULL,
		wage_type TEXT NOT NULL,
		integral_factor TEXT NOT NULL DEFAULT '0',
		transport_allowance INTEGER NOT NULL DEFAULT 0,
		severance_policy TEXT NOT NULL DEFAULT 'legal',
		risk_class INTEGER NOT NULL,
		wh_method TEXT NOT NULL DEFAULT 'none',
		wh_procedure INTEGER NOT NULL DEFAULT 0,
		wh_fixed_value TEXT NOT NULL DEFAULT '0',
		wh_percentage TEXT NOT NULL DEFAULT '0',
		wh_exempt_pct TEXT NOT NULL DEFAULT '0',
		wh_trailing_avg TEXT NOT NULL DEFAULT '0',
		start_date TEXT NOT NULL,
		end_date TEXT,
		state TEXT NOT NULL DEFAULT 'draft',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_employee
		ON contracts(employee_id);
	CREATE INDEX IF NOT EXISTS idx_contracts_employee_validity
		ON contracts(employee_id, start_date, end_date);

	-- Immutable wage-change log; the wage in force is derived from it
	CREATE TABLE IF NOT EXISTS wage_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		previous_wage TEXT NOT NULL,
		new_wage TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_wage_history_unique
		ON wage_history(contract_id, effective_date);
	CREATE INDEX IF NOT EXISTS idx_wage_history_contract
		ON wage_history(contract_id, effective_date);

	CREATE TABLE IF NOT EXISTS novelties (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		contract_id TEXT,
		kind TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_novelties_employee_range
		ON novelties(employee_id, from_date, to_date);

	CREATE TABLE IF NOT EXISTS variable_earnings (
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (contract_id, month)
	);

	-- Reported overtime hours, one row per contract/month/kind
	CREATE TABLE IF NOT EXISTS overtime (
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		month TEXT NOT NULL,
		kind TEXT NOT NULL,
		hours TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (contract_id, month, kind)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		period_from TEXT NOT NULL,
		period_to TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_period
		ON runs(period_from, period_to);

	CREATE TABLE IF NOT EXISTS run_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		actor TEXT NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_history_run
		ON run_history(run_id);

	CREATE TABLE IF NOT EXISTS provision_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		employee_id TEXT NOT NULL,
		contract_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		base TEXT NOT NULL,
		amount TEXT NOT NULL,
		worked_days INTEGER NOT NULL,
		segment_from TEXT NOT NULL,
		segment_to TEXT NOT NULL,
		health_fund TEXT,
		pension_fund TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_provision_lines_run
		ON provision_lines(run_id);
	CREATE INDEX IF NOT EXISTS idx_provision_lines_run_employee
		ON provision_lines(run_id, employee_id);

	CREATE TABLE IF NOT EXISTS contribution_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		employee_id TEXT NOT NULL,
		contract_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		fund TEXT NOT NULL,
		ibc TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contribution_lines_run
		ON contribution_lines(run_id);

	-- Append-only corrections against confirmed runs
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		delta TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL,
		created_by TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_run
		ON adjustments(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee inserts or updates an employee record. Changed fund
// affiliations are mirrored into affiliation_history, effective the day
// of the save.
func (s *Store) SaveEmployee(ctx context.Context, e payroll.EmployeeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.getEmployee(ctx, e.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employees
		(id, identity_type, identity_number, birth_date, first_name, last_name, email,
		 bank_name, bank_account, health_fund, pension_fund, severance_fund,
		 risk_insurer, compensation_fund, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity_type = excluded.identity_type,
			identity_number = excluded.identity_number,
			birth_date = excluded.birth_date,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			bank_name = excluded.bank_name,
			bank_account = excluded.bank_account,
			health_fund = excluded.health_fund,
			pension_fund = excluded.pension_fund,
			severance_fund = excluded.severance_fund,
			risk_insurer = excluded.risk_insurer,
			compensation_fund = excluded.compensation_fund,
			updated_at = excluded.updated_at`,
		e.ID, e.IdentityType, e.IdentityNumber, dateOrNull(e.BirthDate),
		e.FirstName, e.LastName, e.Email, e.BankName, e.BankAccount,
		e.HealthFund, e.PensionFund, e.SeveranceFund, e.RiskInsurer, e.CompensationFund,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return s.appendAffiliationChanges(ctx, prev, e, engine.DateOf(time.Now().UTC()))
}

// appendAffiliationChanges diffs the stored funds against the incoming
// record and logs one row per changed fund type. A brand-new employee
// logs the initial affiliations with an empty previous fund.
func (s *Store) appendAffiliationChanges(ctx context.Context, prev, next payroll.EmployeeRecord, effective engine.Date) error {
	changes := []struct {
		fundType string
		from, to engine.FundCode
	}{
		{payroll.FundTypeHealth, prev.HealthFund, next.HealthFund},
		{payroll.FundTypePension, prev.PensionFund, next.PensionFund},
		{payroll.FundTypeSeverance, prev.SeveranceFund, next.SeveranceFund},
		{payroll.FundTypeRisk, prev.RiskInsurer, next.RiskInsurer},
		{payroll.FundTypeCompensation, prev.CompensationFund, next.CompensationFund},
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, ch := range changes {
		if ch.from == ch.to {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO affiliation_history
			(employee_id, fund_type, previous_fund, new_fund, effective_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			next.ID, ch.fundType, string(ch.from), string(ch.to), effective.String(), now,
		); err != nil {
			return fmt.Errorf("failed to append affiliation change: %w", err)
		}
	}
	return nil
}

// ListAffiliationEvents returns an employee's fund changes in
// chronological order.
func (s *Store) ListAffiliationEvents(ctx context.Context, employeeID engine.EmployeeID) ([]payroll.AffiliationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, fund_type, previous_fund, new_fund, effective_date
		FROM affiliation_history WHERE employee_id = ?
		ORDER BY effective_date, id`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query affiliation history: %w", err)
	}
	defer rows.Close()

	var out []payroll.AffiliationEvent
	for rows.Next() {
		var ev payroll.AffiliationEvent
		var effective string
		if err := rows.Scan(&ev.EmployeeID, &ev.FundType, &ev.PreviousFund, &ev.NewFund, &effective); err != nil {
			return nil, fmt.Errorf("failed to scan affiliation event: %w", err)
		}
		d, perr := engine.ParseDate(effective)
		if perr != nil {
			return nil, fmt.Errorf("failed to parse affiliation date: %w", perr)
		}
		ev.EffectiveDate = d
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetEmployee loads one employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (payroll.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, id)
}

func (s *Store) getEmployee(ctx context.Context, id engine.EmployeeID) (payroll.EmployeeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identity_type, identity_number, birth_date, first_name, last_name, email,
		       bank_name, bank_account, health_fund, pension_fund, severance_fund,
		       risk_insurer, compensation_fund
		FROM employees WHERE id = ?`, id)
	return scanEmployee(row)
}

// ListEmployees returns every employee, ordered by last name.
func (s *Store) ListEmployees(ctx context.Context) ([]payroll.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_type, identity_number, birth_date, first_name, last_name, email,
		       bank_name, bank_account, health_fund, pension_fund, severance_fund,
		       risk_insurer, compensation_fund
		FROM employees ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []payroll.EmployeeRecord
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (payroll.EmployeeRecord, error) {
	var e payroll.EmployeeRecord
	var birth, email, bankName, bankAccount sql.NullString
	var health, pension, severance, risk, ccf sql.NullString

	err := row.Scan(&e.ID, &e.IdentityType, &e.IdentityNumber, &birth,
		&e.FirstName, &e.LastName, &email, &bankName, &bankAccount,
		&health, &pension, &severance, &risk, &ccf)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.EmployeeRecord{}, ErrNotFound
	}
	if err != nil {
		return payroll.EmployeeRecord{}, fmt.Errorf("failed to scan employee: %w", err)
	}

	if birth.Valid {
		if d, perr := engine.ParseDate(birth.String); perr == nil {
			e.BirthDate = d
		}
	}
	e.Email = email.String
	e.BankName = bankName.String
	e.BankAccount = bankAccount.String
	e.HealthFund = engine.FundCode(health.String)
	e.PensionFund = engine.FundCode(pension.String)
	e.SeveranceFund = engine.FundCode(severance.String)
	e.RiskInsurer = engine.FundCode(risk.String)
	e.CompensationFund = engine.FundCode(ccf.String)
	return e, nil
}

// =============================================================================
// FAMILY MEMBERS
// =============================================================================

// SaveFamilyMember inserts or updates one family record.
func (s *Store) SaveFamilyMember(ctx context.Context, m payroll.FamilyMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO family_members
		(id, employee_id, relation, first_name, last_name, identity_type,
		 identity_number, birth_date, beneficiary, dependent, student,
		 disability, works, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			relation = excluded.relation,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			identity_type = excluded.identity_type,
			identity_number = excluded.identity_number,
			birth_date = excluded.birth_date,
			beneficiary = excluded.beneficiary,
			dependent = excluded.dependent,
			student = excluded.student,
			disability = excluded.disability,
			works = excluded.works,
			updated_at = excluded.updated_at`,
		m.ID, m.EmployeeID, string(m.Relation), m.FirstName, m.LastName,
		m.IdentityType, m.IdentityNumber, m.BirthDate.String(),
		boolToInt(m.Beneficiary), boolToInt(m.Dependent), boolToInt(m.Student),
		boolToInt(m.Disability), boolToInt(m.Works),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save family member: %w", err)
	}
	return nil
}

// ListFamilyMembers returns an employee's family ordered the way the
// subsidy review reads it: relation first, then birth date.
func (s *Store) ListFamilyMembers(ctx context.Context, employeeID engine.EmployeeID) ([]payroll.FamilyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, relation, first_name, last_name, identity_type,
		       identity_number, birth_date, beneficiary, dependent, student,
		       disability, works
		FROM family_members WHERE employee_id = ?
		ORDER BY relation, birth_date`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var out []payroll.FamilyMember
	for rows.Next() {
		var m payroll.FamilyMember
		var identityType, identityNumber sql.NullString
		var birth string
		var beneficiary, dependent, student, disability, works int
		if err := rows.Scan(&m.ID, &m.EmployeeID, &m.Relation, &m.FirstName, &m.LastName,
			&identityType, &identityNumber, &birth, &beneficiary, &dependent,
			&student, &disability, &works); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		m.IdentityType = identityType.String
		m.IdentityNumber = identityNumber.String
		if d, perr := engine.ParseDate(birth); perr == nil {
			m.BirthDate = d
		}
		m.Beneficiary = beneficiary != 0
		m.Dependent = dependent != 0
		m.Student = student != 0
		m.Disability = disability != 0
		m.Works = works != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// CONTRACTS
// =============================================================================

// SaveContract inserts or updates a contract. Wage changes do not go
// through here: the wage column only materializes the history's latest
// value (see AppendWageEvent).
func (s *Store) SaveContract(ctx context.Context, c engine.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts
		(id, employee_id, wage, wage_type, integral_factor, transport_allowance,
		 severance_policy, risk_class, wh_method, wh_procedure, wh_fixed_value,
		 wh_percentage, wh_exempt_pct, wh_trailing_avg, start_date, end_date, state,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			wage = excluded.wage,
			wage_type = excluded.wage_type,
			integral_factor = excluded.integral_factor,
			transport_allowance = excluded.transport_allowance,
			severance_policy = excluded.severance_policy,
			risk_class = excluded.risk_class,
			wh_method = excluded.wh_method,
			wh_procedure = excluded.wh_procedure,
			wh_fixed_value = excluded.wh_fixed_value,
			wh_percentage = excluded.wh_percentage,
			wh_exempt_pct = excluded.wh_exempt_pct,
			wh_trailing_avg = excluded.wh_trailing_avg,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		c.ID, c.EmployeeID, c.Wage.String(), string(orDefault(string(c.WageType), string(engine.WageOrdinary))),
		c.IntegralFactor.String(), boolToInt(c.TransportAllowance),
		orDefault(string(c.SeverancePolicy), string(engine.SeveranceBaseLegal)), int(c.RiskClass),
		orDefault(string(c.Withholding.Method), string(engine.WithholdingNone)), int(c.Withholding.Procedure),
		c.Withholding.FixedValue.String(), c.Withholding.Percentage.String(),
		c.Withholding.ExemptIncomePct.String(), c.Withholding.TrailingAverageIncome.String(),
		c.Start.String(), endDateOrNull(c.End), orDefault(string(c.State), string(engine.ContractDraft)),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

// GetContract loads one contract by ID.
func (s *Store) GetContract(ctx context.Context, id engine.ContractID) (engine.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, contractSelect+` WHERE id = ?`, id)
	return scanContract(row)
}

// ListContractsByEmployee returns an employee's contracts ordered by start.
func (s *Store) ListContractsByEmployee(ctx context.Context, employeeID engine.EmployeeID) ([]engine.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, contractSelect+` WHERE employee_id = ? ORDER BY start_date`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var out []engine.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const contractSelect = `
	SELECT id, employee_id, wage, wage_type, integral_factor, transport_allowance,
	       severance_policy, risk_class, wh_method, wh_procedure, wh_fixed_value,
	       wh_percentage, wh_exempt_pct, wh_trailing_avg, start_date, end_date, state
	FROM contracts`

func scanContract(row rowScanner) (engine.Contract, error) {
	var c engine.Contract
	var wage, factor, fixed, pct, exempt, trailing string
	var transport, riskClass, procedure int
	var start string
	var end sql.NullString

	err := row.Scan(&c.ID, &c.EmployeeID, &wage, &c.WageType, &factor, &transport,
		&c.SeverancePolicy, &riskClass, &c.Withholding.Method, &procedure,
		&fixed, &pct, &exempt, &trailing, &start, &end, &c.State)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Contract{}, ErrNotFound
	}
	if err != nil {
		return engine.Contract{}, fmt.Errorf("failed to scan contract: %w", err)
	}

	c.Wage = engine.MustDecimal(wage)
	c.IntegralFactor = engine.MustDecimal(factor)
	c.TransportAllowance = transport != 0
	c.RiskClass = engine.RiskClass(riskClass)
	c.Withholding.Procedure = engine.WithholdingProcedure(procedure)
	c.Withholding.FixedValue = engine.MustDecimal(fixed)
	c.Withholding.Percentage = engine.MustDecimal(pct)
	c.Withholding.ExemptIncomePct = engine.MustDecimal(exempt)
	c.Withholding.TrailingAverageIncome = engine.MustDecimal(trailing)

	if c.Start, err = engine.ParseDate(start); err != nil {
		return engine.Contract{}, fmt.Errorf("corrupt contract start date: %w", err)
	}
	if end.Valid {
		d, perr := engine.ParseDate(end.String)
		if perr != nil {
			return engine.Contract{}, fmt.Errorf("corrupt contract end date: %w", perr)
		}
		c.End = &d
	}
	return c, nil
}

// =============================================================================
// WAGE HISTORY - Append-only
// =============================================================================

// AppendWageEvent records a wage change and materializes the new wage on
// the contract row, atomically. The history row is never updated or
// deleted afterward.
func (s *Store) AppendWageEvent(ctx context.Context, ev engine.WageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wage_history (contract_id, previous_wage, new_wage, effective_date, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ContractID, ev.PreviousWage.String(), ev.NewWage.String(),
		ev.EffectiveDate.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateWageEvent
		}
		return fmt.Errorf("failed to append wage event: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE contracts SET wage = ?, updated_at = ? WHERE id = ?`,
		ev.NewWage.String(), time.Now().UTC().Format(time.RFC3339), ev.ContractID)
	if err != nil {
		return fmt.Errorf("failed to materialize wage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// LoadWageEvents returns a contract's wage history in chronological order.
func (s *Store) LoadWageEvents(ctx context.Context, contractID engine.ContractID) ([]engine.WageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, previous_wage, new_wage, effective_date
		FROM wage_history WHERE contract_id = ? ORDER BY effective_date`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wage history: %w", err)
	}
	defer rows.Close()

	var out []engine.WageEvent
	for rows.Next() {
		var ev engine.WageEvent
		var prev, next, effective string
		if err := rows.Scan(&ev.ContractID, &prev, &next, &effective); err != nil {
			return nil, fmt.Errorf("failed to scan wage event: %w", err)
		}
		ev.PreviousWage = engine.MustDecimal(prev)
		ev.NewWage = engine.MustDecimal(next)
		if ev.EffectiveDate, err = engine.ParseDate(effective); err != nil {
			return nil, fmt.Errorf("corrupt wage event date: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// =============================================================================
// NOVELTIES AND VARIABLE EARNINGS
// =============================================================================

// SaveNovelty inserts a novelty record.
func (s *Store) SaveNovelty(ctx context.Context, id string, n engine.Novelty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO novelties (id, employee_id, contract_id, kind, from_date, to_date, paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, n.EmployeeID, n.ContractID, n.Kind, n.From.String(), n.To.String(),
		boolToInt(n.Paid), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save novelty: %w", err)
	}
	return nil
}

// ListNovelties returns an employee's novelties overlapping a range.
func (s *Store) ListNovelties(ctx context.Context, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.Novelty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, contract_id, kind, from_date, to_date, paid
		FROM novelties
		WHERE employee_id = ? AND from_date <= ? AND to_date >= ?
		ORDER BY from_date`,
		employeeID, to.String(), from.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query novelties: %w", err)
	}
	defer rows.Close()

	var out []engine.Novelty
	for rows.Next() {
		var n engine.Novelty
		var fromS, toS string
		var paid int
		if err := rows.Scan(&n.EmployeeID, &n.ContractID, &n.Kind, &fromS, &toS, &paid); err != nil {
			return nil, fmt.Errorf("failed to scan novelty: %w", err)
		}
		if n.From, err = engine.ParseDate(fromS); err != nil {
			return nil, err
		}
		if n.To, err = engine.ParseDate(toS); err != nil {
			return nil, err
		}
		n.Paid = paid != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// SaveVariableEarning upserts one month's variable pay for a contract.
func (s *Store) SaveVariableEarning(ctx context.Context, v engine.VariableEarning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variable_earnings (contract_id, month, amount, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contract_id, month) DO UPDATE SET amount = excluded.amount`,
		v.ContractID, v.Month.String(), v.Amount.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save variable earning: %w", err)
	}
	return nil
}

// ListVariableEarnings returns a contract's reported variable months.
func (s *Store) ListVariableEarnings(ctx context.Context, contractID engine.ContractID) ([]engine.VariableEarning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, month, amount FROM variable_earnings
		WHERE contract_id = ? ORDER BY month`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variable earnings: %w", err)
	}
	defer rows.Close()

	var out []engine.VariableEarning
	for rows.Next() {
		var v engine.VariableEarning
		var month, amount string
		if err := rows.Scan(&v.ContractID, &month, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan variable earning: %w", err)
		}
		if v.Month, err = engine.ParseDate(month); err != nil {
			return nil, err
		}
		v.Amount = engine.MustDecimal(amount)
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveOvertime upserts the reported hours for one contract/month/kind.
func (s *Store) SaveOvertime(ctx context.Context, month engine.Date, o engine.OvertimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overtime (contract_id, month, kind, hours, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(contract_id, month, kind) DO UPDATE SET hours = excluded.hours`,
		o.ContractID, month.String(), o.Kind, o.Hours.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save overtime: %w", err)
	}
	return nil
}

// ListOvertime returns a contract's overtime entries for one month.
func (s *Store) ListOvertime(ctx context.Context, contractID engine.ContractID, month engine.Date) ([]engine.OvertimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, kind, hours FROM overtime
		WHERE contract_id = ? AND month = ? ORDER BY kind`, contractID, month.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query overtime: %w", err)
	}
	defer rows.Close()

	var out []engine.OvertimeEntry
	for rows.Next() {
		var o engine.OvertimeEntry
		var hours string
		if err := rows.Scan(&o.ContractID, &o.Kind, &hours); err != nil {
			return nil, fmt.Errorf("failed to scan overtime: %w", err)
		}
		o.Hours = engine.MustDecimal(hours)
		out = append(out, o)
	}
	return out, rows.Err()
}

// =============================================================================
// INPUT ASSEMBLY
// =============================================================================

// LoadEmployeeData assembles everything stored about one employee for a
// period's calculation. The novelty range is widened backward so trailing
// variable-earning months are always present.
func (s *Store) LoadEmployeeData(ctx context.Context, employeeID engine.EmployeeID, period engine.Period) (payroll.EmployeeData, error) {
	record, err := s.GetEmployee(ctx, employeeID)
	if err != nil {
		return payroll.EmployeeData{}, err
	}
	contracts, err := s.ListContractsByEmployee(ctx, employeeID)
	if err != nil {
		return payroll.EmployeeData{}, err
	}

	data := payroll.EmployeeData{Record: record, Contracts: contracts}
	for _, c := range contracts {
		events, err := s.LoadWageEvents(ctx, c.ID)
		if err != nil {
			return payroll.EmployeeData{}, err
		}
		data.WageEvents = append(data.WageEvents, events...)

		earnings, err := s.ListVariableEarnings(ctx, c.ID)
		if err != nil {
			return payroll.EmployeeData{}, err
		}
		data.VariableEarnings = append(data.VariableEarnings, earnings...)

		// Overtime is keyed by the period's closing month.
		overtime, err := s.ListOvertime(ctx, c.ID, engine.NewDate(period.To.Year(), period.To.Month(), 1))
		if err != nil {
			return payroll.EmployeeData{}, err
		}
		data.Overtime = append(data.Overtime, overtime...)
	}

	novelties, err := s.ListNovelties(ctx, employeeID, period.From, period.To)
	if err != nil {
		return payroll.EmployeeData{}, err
	}
	data.Novelties = novelties
	return data, nil
}

// =============================================================================
// RUNS
// =============================================================================

// SaveRun persists a run with all its lines in one transaction. Lines for
// a run ID that already exists are replaced only when the stored run is
// still in draft or calculated state.
func (s *Store) SaveRun(ctx context.Context, run *engine.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT state FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (id, period_from, period_to, state, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, run.Period.From.String(), run.Period.To.String(), run.State, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read run state: %w", err)
	default:
		if existing != string(engine.RunDraft) && existing != string(engine.RunCalculated) {
			return fmt.Errorf("%w: run %s is %s", ErrStaleRunState, run.ID, existing)
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE runs SET state = ?, updated_at = ? WHERE id = ?`, run.State, now, run.ID); err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM provision_lines WHERE run_id = ?`, run.ID); err != nil {
			return fmt.Errorf("failed to clear provision lines: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM contribution_lines WHERE run_id = ?`, run.ID); err != nil {
			return fmt.Errorf("failed to clear contribution lines: %w", err)
		}
	}

	for _, line := range run.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO provision_lines
			(run_id, employee_id, contract_id, kind, base, amount, worked_days,
			 segment_from, segment_to, health_fund, pension_fund)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, line.EmployeeID, line.ContractID, line.Kind.String(),
			line.Base.String(), line.Amount.String(), line.WorkedDays,
			line.SegmentFrom.String(), line.SegmentTo.String(),
			line.HealthFund, line.PensionFund)
		if err != nil {
			return fmt.Errorf("failed to insert provision line: %w", err)
		}
	}

	for _, c := range run.Contributions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contribution_lines
			(run_id, employee_id, contract_id, kind, fund, ibc, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, c.EmployeeID, c.ContractID, c.Kind.String(), c.Fund,
			c.IBC.String(), c.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to insert contribution line: %w", err)
		}
	}

	for _, ev := range run.History {
		var count int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM run_history
			WHERE run_id = ? AND from_state = ? AND to_state = ? AND at = ?`,
			run.ID, ev.From, ev.To, ev.At.Format(time.RFC3339Nano)).Scan(&count); err != nil {
			return fmt.Errorf("failed to check run history: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_history (run_id, from_state, to_state, actor, at)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, ev.From, ev.To, ev.Actor, ev.At.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert run history: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateRunState persists one state transition with a compare-and-swap on
// the stored state.
func (s *Store) UpdateRunState(ctx context.Context, runID engine.RunID, from, to engine.RunState, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		to, time.Now().UTC().Format(time.RFC3339), runID, from)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current string
		if scanErr := tx.QueryRowContext(ctx, `SELECT state FROM runs WHERE id = ?`, runID).Scan(&current); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to read run state: %w", scanErr)
		}
		return fmt.Errorf("%w: expected %s, found %s", ErrStaleRunState, from, current)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO run_history (run_id, from_state, to_state, actor, at)
		VALUES (?, ?, ?, ?, ?)`,
		runID, from, to, actor, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to insert run history: %w", err)
	}

	return tx.Commit()
}

// GetRun loads a run with its lines and history.
func (s *Store) GetRun(ctx context.Context, runID engine.RunID) (*engine.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := &engine.Run{ID: runID}
	var fromS, toS string
	err := s.db.QueryRowContext(ctx,
		`SELECT period_from, period_to, state FROM runs WHERE id = ?`, runID).
		Scan(&fromS, &toS, &run.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run.Period.From, err = engine.ParseDate(fromS); err != nil {
		return nil, err
	}
	if run.Period.To, err = engine.ParseDate(toS); err != nil {
		return nil, err
	}

	if run.Lines, err = s.loadProvisionLines(ctx, runID, run.Period); err != nil {
		return nil, err
	}
	if run.Contributions, err = s.loadContributionLines(ctx, runID, run.Period); err != nil {
		return nil, err
	}
	if run.History, err = s.loadRunHistory(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns run headers, newest period first.
func (s *Store) ListRuns(ctx context.Context) ([]*engine.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period_from, period_to, state FROM runs ORDER BY period_from DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*engine.Run
	for rows.Next() {
		run := &engine.Run{}
		var fromS, toS string
		if err := rows.Scan(&run.ID, &fromS, &toS, &run.State); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.Period.From, err = engine.ParseDate(fromS); err != nil {
			return nil, err
		}
		if run.Period.To, err = engine.ParseDate(toS); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) loadProvisionLines(ctx context.Context, runID engine.RunID, period engine.Period) ([]engine.ProvisionLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, contract_id, kind, base, amount, worked_days,
		       segment_from, segment_to, health_fund, pension_fund
		FROM provision_lines WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query provision lines: %w", err)
	}
	defer rows.Close()

	var out []engine.ProvisionLine
	for rows.Next() {
		var l engine.ProvisionLine
		var kind, base, amount, segFrom, segTo string
		var health, pension sql.NullString
		if err := rows.Scan(&l.EmployeeID, &l.ContractID, &kind, &base, &amount,
			&l.WorkedDays, &segFrom, &segTo, &health, &pension); err != nil {
			return nil, fmt.Errorf("failed to scan provision line: %w", err)
		}
		k, ok := engine.ParseBenefitKind(kind)
		if !ok {
			return nil, fmt.Errorf("corrupt benefit kind %q", kind)
		}
		l.Kind = k
		l.Base = engine.MustDecimal(base)
		l.Amount = engine.MustDecimal(amount)
		if l.SegmentFrom, err = engine.ParseDate(segFrom); err != nil {
			return nil, err
		}
		if l.SegmentTo, err = engine.ParseDate(segTo); err != nil {
			return nil, err
		}
		l.Period = period
		l.HealthFund = engine.FundCode(health.String)
		l.PensionFund = engine.FundCode(pension.String)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) loadContributionLines(ctx context.Context, runID engine.RunID, period engine.Period) ([]engine.ContributionLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, contract_id, kind, fund, ibc, amount
		FROM contribution_lines WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution lines: %w", err)
	}
	defer rows.Close()

	kindByName := map[string]engine.ContributionKind{}
	for _, k := range engine.AllContributionKinds {
		kindByName[k.String()] = k
	}

	var out []engine.ContributionLine
	for rows.Next() {
		var c engine.ContributionLine
		var kind, ibc, amount string
		if err := rows.Scan(&c.EmployeeID, &c.ContractID, &kind, &c.Fund, &ibc, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan contribution line: %w", err)
		}
		k, ok := kindByName[kind]
		if !ok {
			return nil, fmt.Errorf("corrupt contribution kind %q", kind)
		}
		c.Kind = k
		c.IBC = engine.MustDecimal(ibc)
		c.Amount = engine.MustDecimal(amount)
		c.Period = period
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) loadRunHistory(ctx context.Context, runID engine.RunID) ([]engine.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_state, to_state, actor, at
		FROM run_history WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var out []engine.RunEvent
	for rows.Next() {
		var ev engine.RunEvent
		var at string
		if err := rows.Scan(&ev.From, &ev.To, &ev.Actor, &at); err != nil {
			return nil, fmt.Errorf("failed to scan run event: %w", err)
		}
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("corrupt run event timestamp: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// =============================================================================
// ADJUSTMENTS - Append-only
// =============================================================================

// SaveAdjustment appends an adjustment record.
func (s *Store) SaveAdjustment(ctx context.Context, a payroll.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adjustments (id, run_id, employee_id, kind, delta, reason, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.EmployeeID, a.Kind.String(), a.Delta.String(), a.Reason,
		a.CreatedAt.Format(time.RFC3339Nano), a.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to save adjustment: %w", err)
	}
	return nil
}

// ListAdjustments returns a run's adjustments, oldest first.
func (s *Store) ListAdjustments(ctx context.Context, runID engine.RunID) ([]payroll.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, employee_id, kind, delta, reason, created_at, created_by
		FROM adjustments WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var out []payroll.Adjustment
	for rows.Next() {
		var a payroll.Adjustment
		var kind, delta, createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.EmployeeID, &kind, &delta, &a.Reason,
			&createdAt, &a.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		k, ok := engine.ParseBenefitKind(kind)
		if !ok {
			return nil, fmt.Errorf("corrupt benefit kind %q", kind)
		}
		a.Kind = k
		a.Delta = engine.MustDecimal(delta)
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt adjustment timestamp: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func dateOrNull(d engine.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func endDateOrNull(d *engine.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
