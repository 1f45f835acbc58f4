/*
family.go - Employee family members and dependents

PURPOSE:
  Family members back the compensation-fund family subsidy: an unemployed
  spouse or a qualifying child makes the employee eligible. Eligibility is
  derived from the record at a reference date, never stored.

WRITE-TIME RULES:
  - relation must be a known kinship
  - birth dates cannot lie in the future
  - at most one spouse per employee
*/
package payroll

import (
	"github.com/andino-hr/payroll-engine/engine"
)

// Relation classifies a family member's kinship to the employee.
type Relation string

const (
	RelationSpouse  Relation = "spouse"
	RelationChild   Relation = "child"
	RelationParent  Relation = "parent"
	RelationSibling Relation = "sibling"
	RelationOther   Relation = "other"
)

func (r Relation) Valid() bool {
	switch r {
	case RelationSpouse, RelationChild, RelationParent, RelationSibling, RelationOther:
		return true
	}
	return false
}

// FamilyMember is one relative on an employee's record.
type FamilyMember struct {
	ID         string
	EmployeeID engine.EmployeeID
	Relation   Relation

	FirstName string
	LastName  string

	IdentityType   string
	IdentityNumber string
	BirthDate      engine.Date

	// Beneficiary covers social security; Dependent marks economic
	// dependence on the employee.
	Beneficiary bool
	Dependent   bool

	// Child qualifiers for the subsidy rules.
	Student    bool
	Disability bool

	// Spouse qualifier: an employed spouse draws no subsidy.
	Works bool
}

// FullName is the display name for reports.
func (m FamilyMember) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	default:
		return m.FirstName + " " + m.LastName
	}
}

// AgeAt returns completed years of age on a date.
func (m FamilyMember) AgeAt(on engine.Date) int {
	age := on.Year() - m.BirthDate.Year()
	anniversary := engine.NewDate(on.Year(), m.BirthDate.Month(), m.BirthDate.Day())
	if on.Before(anniversary) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// SubsidyEligible reports whether the member counts toward the
// compensation-fund family subsidy on a date:
//   - a spouse who does not work
//   - a child under 18, aged 18-23 while studying, or any age with a
//     disability
func (m FamilyMember) SubsidyEligible(on engine.Date) bool {
	switch m.Relation {
	case RelationSpouse:
		return !m.Works
	case RelationChild:
		if m.Disability {
			return true
		}
		age := m.AgeAt(on)
		return age < 18 || (age <= 23 && m.Student)
	}
	return false
}

// SubsidyEligibleCount counts the members eligible on a date.
func SubsidyEligibleCount(members []FamilyMember, on engine.Date) int {
	n := 0
	for _, m := range members {
		if m.SubsidyEligible(on) {
			n++
		}
	}
	return n
}

// ValidateFamilyMember enforces the write-time rules against the
// employee's existing family records.
func ValidateFamilyMember(m FamilyMember, existing []FamilyMember, asOf engine.Date) error {
	if !m.Relation.Valid() {
		return engine.NewValidationError("relation", "unknown relation "+string(m.Relation), nil)
	}
	if m.FirstName == "" && m.LastName == "" {
		return engine.NewValidationError("name", "family member name is required", nil)
	}
	if m.BirthDate.IsZero() {
		return engine.NewValidationError("birth_date", "birth date is required", nil)
	}
	if m.BirthDate.After(asOf) {
		return engine.NewValidationError("birth_date", "birth date cannot be in the future", nil)
	}
	if m.Relation == RelationSpouse {
		for _, ex := range existing {
			if ex.Relation == RelationSpouse && ex.ID != m.ID {
				return engine.NewValidationError("relation",
					"employee already has a registered spouse", nil)
			}
		}
	}
	return nil
}
