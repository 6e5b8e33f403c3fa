package fleet

import (
	"context"

	"github.com/ukydev/fleetflow/internal/models"
)

// ListExpenses returns the organization's expenses matching f.
func (s *Service) ListExpenses(ctx context.Context, caller models.Caller, f models.ExpenseFilter) ([]models.Expense, error) {
	return s.store.FindExpenses(ctx, caller.OrganizationID, f)
}

// GetExpense returns one expense.
func (s *Service) GetExpense(ctx context.Context, caller models.Caller, id string) (*models.Expense, error) {
	return s.expense(ctx, caller.OrganizationID, id)
}

// CreateExpense records a cost. An expense booked on a trip inherits the
// trip's vehicle when none is given.
func (s *Service) CreateExpense(ctx context.Context, caller models.Caller, req models.CreateExpenseRequest) (*models.Expense, error) {
	orgID := caller.OrganizationID
	e, err := req.Expense(orgID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.resolveExpenseRefs(ctx, e); err != nil {
		return nil, err
	}
	if err := s.store.InsertExpense(ctx, e); err != nil {
		return nil, err
	}
	s.changed(ctx, orgID)
	return e, nil
}

// UpdateExpense edits an expense.
func (s *Service) UpdateExpense(ctx context.Context, caller models.Caller, id string, upd models.ExpenseUpdate) (*models.Expense, error) {
	orgID := caller.OrganizationID
	e, err := s.expense(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := upd.Apply(e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	fields := upd.Fields()
	if len(fields) == 0 {
		return e, nil
	}
	hadVehicle := e.VehicleID != ""
	if err := s.resolveExpenseRefs(ctx, e); err != nil {
		return nil, err
	}
	if !hadVehicle && e.VehicleID != "" && upd.VehicleID == nil {
		fields = append(fields, "vehicle_id")
	}
	if err := s.store.UpdateExpense(ctx, e, fields); err != nil {
		return nil, err
	}
	s.changed(ctx, orgID)
	return e, nil
}

func (s *Service) resolveExpenseRefs(ctx context.Context, e *models.Expense) error {
	if e.VehicleID != "" {
		if _, err := s.vehicle(ctx, e.OrganizationID, e.VehicleID); err != nil {
			return err
		}
	}
	if e.TripID == "" {
		return nil
	}
	t, err := s.trip(ctx, e.OrganizationID, e.TripID)
	if err != nil {
		return err
	}
	switch {
	case e.VehicleID == "":
		e.VehicleID = t.VehicleID
	case t.VehicleID != "" && t.VehicleID != e.VehicleID:
		return models.Invalidf("trip %s was not run with vehicle %s", t.ID, e.VehicleID)
	}
	return nil
}

// DeleteExpense removes an expense.
func (s *Service) DeleteExpense(ctx context.Context, caller models.Caller, id string) error {
	orgID := caller.OrganizationID
	if _, err := s.expense(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, orgID, id); err != nil {
		return err
	}
	s.changed(ctx, orgID)
	return nil
}
