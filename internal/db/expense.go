package db

import (
	"context"

	"github.com/ukydev/fleetflow/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// InsertExpense inserts an expense record.
func (s *MongoStore) InsertExpense(ctx context.Context, e *models.Expense) error {
	stampNew(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return s.insert(ctx, s.expenses, e, "expense")
}

// FindExpenses lists the organization's expenses matching filter.
func (s *MongoStore) FindExpenses(ctx context.Context, orgID string, f models.ExpenseFilter) ([]models.Expense, error) {
	q := bson.M{"organization_id": orgID}
	if f.VehicleID != "" {
		q["vehicle_id"] = f.VehicleID
	}
	if f.TripID != "" {
		q["trip_id"] = f.TripID
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	expenses := []models.Expense{}
	if err := s.findAll(ctx, s.expenses, q, &expenses, "expense"); err != nil {
		return nil, err
	}
	return expenses, nil
}

// FindExpenseByID finds an expense by its ID.
func (s *MongoStore) FindExpenseByID(ctx context.Context, id string) (*models.Expense, error) {
	var e models.Expense
	if err := s.findOne(ctx, s.expenses, bson.M{"_id": id}, &e, "expense"); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateExpense writes the named fields of e.
func (s *MongoStore) UpdateExpense(ctx context.Context, e *models.Expense, fields []string) error {
	filter := bson.M{"_id": e.ID, "organization_id": e.OrganizationID}
	return s.updateFields(ctx, s.expenses, filter, e, fields, models.NotFound("expense"), "expense")
}

// DeleteExpense deletes an expense by its ID.
func (s *MongoStore) DeleteExpense(ctx context.Context, orgID, id string) error {
	filter := bson.M{"_id": id, "organization_id": orgID}
	return s.deleteOne(ctx, s.expenses, filter, models.NotFound("expense"), "expense")
}
