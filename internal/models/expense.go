package models

import (
	"strings"
	"time"
)

// ExpenseCategory classifies an expense.
type ExpenseCategory string

const (
	ExpenseFuel        ExpenseCategory = "Fuel"
	ExpenseMaintenance ExpenseCategory = "Maintenance"
	ExpenseInsurance   ExpenseCategory = "Insurance"
	ExpenseToll        ExpenseCategory = "Toll"
	ExpenseTax         ExpenseCategory = "Tax"
	ExpenseOther       ExpenseCategory = "Other"
)

// Expense represents a fleet cost record.
type Expense struct {
	ID             string          `json:"id" bson:"_id" gorm:"primaryKey;size:24"`
	OrganizationID string          `json:"organization_id" bson:"organization_id" gorm:"index;size:24;not null"`
	VehicleID      string          `json:"vehicle_id,omitempty" bson:"vehicle_id,omitempty" gorm:"index;size:24"`
	TripID         string          `json:"trip_id,omitempty" bson:"trip_id,omitempty" gorm:"index;size:24"`
	Category       ExpenseCategory `json:"category" bson:"category" gorm:"size:16"`
	Description    string          `json:"description" bson:"description"`
	Amount         float64         `json:"amount" bson:"amount"`
	Date           time.Time       `json:"date" bson:"date"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
}

// CreateExpenseRequest is the body of POST /api/expenses.
type CreateExpenseRequest struct {
	VehicleID   string          `json:"vehicle_id"`
	TripID      string          `json:"trip_id"`
	Category    ExpenseCategory `json:"category"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Date        string          `json:"date"`
}

// ExpenseUpdate edits an expense; nil fields are left untouched.
type ExpenseUpdate struct {
	VehicleID   *string          `json:"vehicle_id"`
	TripID      *string          `json:"trip_id"`
	Category    *ExpenseCategory `json:"category"`
	Description *string          `json:"description"`
	Amount      *float64         `json:"amount"`
	Date        *string          `json:"date"`
}

// ExpenseFilter narrows expense listings.
type ExpenseFilter struct {
	VehicleID string
	TripID    string
	Category  ExpenseCategory
}

// IsValidExpenseCategory reports whether c is a known category.
func IsValidExpenseCategory(c ExpenseCategory) bool {
	switch c {
	case ExpenseFuel, ExpenseMaintenance, ExpenseInsurance, ExpenseToll, ExpenseTax, ExpenseOther:
		return true
	}
	return false
}

// Expense builds an expense from the request, validating it. A zero date means now.
func (r CreateExpenseRequest) Expense(orgID string, now time.Time) (*Expense, error) {
	e := &Expense{
		OrganizationID: orgID,
		VehicleID:      strings.TrimSpace(r.VehicleID),
		TripID:         strings.TrimSpace(r.TripID),
		Category:       r.Category,
		Description:    strings.TrimSpace(r.Description),
		Amount:         r.Amount,
		Date:           now,
	}
	if strings.TrimSpace(r.Date) != "" {
		d, err := ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		e.Date = d
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the record's own fields.
func (e *Expense) Validate() error {
	switch {
	case !IsValidExpenseCategory(e.Category):
		return Invalidf("category must be one of Fuel, Maintenance, Insurance, Toll, Tax, Other")
	case e.Amount <= 0:
		return Invalidf("amount must be positive")
	}
	return nil
}

// Apply copies the set fields onto e.
func (u ExpenseUpdate) Apply(e *Expense) error {
	if u.VehicleID != nil {
		e.VehicleID = strings.TrimSpace(*u.VehicleID)
	}
	if u.TripID != nil {
		e.TripID = strings.TrimSpace(*u.TripID)
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.Description != nil {
		e.Description = strings.TrimSpace(*u.Description)
	}
	if u.Amount != nil {
		e.Amount = *u.Amount
	}
	if u.Date != nil {
		d, err := ParseDate(*u.Date)
		if err != nil {
			return err
		}
		e.Date = d
	}
	return nil
}

// Fields returns the stored names of the set attributes.
func (u ExpenseUpdate) Fields() []string {
	var f []string
	if u.VehicleID != nil {
		f = append(f, "vehicle_id")
	}
	if u.TripID != nil {
		f = append(f, "trip_id")
	}
	if u.Category != nil {
		f = append(f, "category")
	}
	if u.Description != nil {
		f = append(f, "description")
	}
	if u.Amount != nil {
		f = append(f, "amount")
	}
	if u.Date != nil {
		f = append(f, "date")
	}
	return f
}

// Match reports whether e passes the filter.
func (f ExpenseFilter) Match(e Expense) bool {
	if f.VehicleID != "" && e.VehicleID != f.VehicleID {
		return false
	}
	if f.TripID != "" && e.TripID != f.TripID {
		return false
	}
	return f.Category == "" || e.Category == f.Category
}
