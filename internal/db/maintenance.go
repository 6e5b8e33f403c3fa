package db

import (
	"context"

	"github.com/ukydev/fleetflow/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// InsertMaintenance inserts a maintenance record into the collection.
func (s *MongoStore) InsertMaintenance(ctx context.Context, m *models.Maintenance) error {
	stampNew(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return s.insert(ctx, s.maintenance, m, "maintenance log")
}

// FindMaintenance lists the organization's maintenance logs matching filter.
func (s *MongoStore) FindMaintenance(ctx context.Context, orgID string, f models.MaintenanceFilter) ([]models.Maintenance, error) {
	q := bson.M{"organization_id": orgID}
	if f.VehicleID != "" {
		q["vehicle_id"] = f.VehicleID
	}
	switch {
	case f.Status != "":
		q["status"] = f.Status
		if f.OpenOnly && f.Status == models.MaintenanceCompleted {
			return []models.Maintenance{}, nil
		}
	case f.OpenOnly:
		q["status"] = bson.M{"$ne": models.MaintenanceCompleted}
	}
	logs := []models.Maintenance{}
	if err := s.findAll(ctx, s.maintenance, q, &logs, "maintenance log"); err != nil {
		return nil, err
	}
	return logs, nil
}

// FindMaintenanceByID finds a maintenance record by its ID.
func (s *MongoStore) FindMaintenanceByID(ctx context.Context, id string) (*models.Maintenance, error) {
	var m models.Maintenance
	if err := s.findOne(ctx, s.maintenance, bson.M{"_id": id}, &m, "maintenance log"); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMaintenance writes the named fields of m while its stored status is one of from.
func (s *MongoStore) UpdateMaintenance(ctx context.Context, m *models.Maintenance, from []models.MaintenanceStatus, fields []string) error {
	filter, miss := scoped(m.OrganizationID, m.ID, from, "maintenance log")
	return s.updateFields(ctx, s.maintenance, filter, m, fields, miss, "maintenance log")
}

// DeleteMaintenance deletes a maintenance record by its ID.
func (s *MongoStore) DeleteMaintenance(ctx context.Context, orgID, id string) error {
	filter, miss := scoped[models.MaintenanceStatus](orgID, id, nil, "maintenance log")
	return s.deleteOne(ctx, s.maintenance, filter, miss, "maintenance log")
}
