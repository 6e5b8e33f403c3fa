package db

import (
	"context"
	"time"

	"github.com/ukydev/fleetflow/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// InsertVehicle inserts a vehicle record into the collection.
func (s *MongoStore) InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	stampNew(&vehicle.ID, &vehicle.CreatedAt, &vehicle.UpdatedAt)
	return s.insert(ctx, s.vehicles, vehicle, "vehicle")
}

// FindVehicles lists the organization's vehicles matching filter.
func (s *MongoStore) FindVehicles(ctx context.Context, orgID string, f models.VehicleFilter) ([]models.Vehicle, error) {
	q := bson.M{"organization_id": orgID}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Type != "" {
		q["type"] = f.Type
	}
	if f.Region != "" {
		q["region"] = f.Region
	}
	if f.MinCapacity > 0 {
		q["max_capacity"] = bson.M{"$gte": f.MinCapacity}
	}
	vehicles := []models.Vehicle{}
	if err := s.findAll(ctx, s.vehicles, q, &vehicles, "vehicle"); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// FindVehicleByID finds a vehicle by its ID.
func (s *MongoStore) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := s.findOne(ctx, s.vehicles, bson.M{"_id": id}, &v, "vehicle"); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVehicle writes the named fields of vehicle.
func (s *MongoStore) UpdateVehicle(ctx context.Context, vehicle *models.Vehicle, fields []string) error {
	filter, miss := scoped[models.VehicleStatus](vehicle.OrganizationID, vehicle.ID, nil, "vehicle")
	return s.updateFields(ctx, s.vehicles, filter, vehicle, fields, miss, "vehicle")
}

// SetVehicleStatus moves a vehicle between statuses.
func (s *MongoStore) SetVehicleStatus(ctx context.Context, orgID, id string, from []models.VehicleStatus, to models.VehicleStatus) error {
	filter, miss := scoped(orgID, id, from, "vehicle")
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}}
	return s.updateOne(ctx, s.vehicles, filter, update, miss, "vehicle")
}

// ReleaseVehicle returns an On Trip vehicle to Available.
func (s *MongoStore) ReleaseVehicle(ctx context.Context, orgID, id string, odometer *float64) error {
	filter, miss := scoped(orgID, id, []models.VehicleStatus{models.VehicleOnTrip}, "vehicle")
	update := bson.M{"$set": bson.M{"status": models.VehicleAvailable, "updated_at": time.Now().UTC()}}
	if odometer != nil {
		update["$max"] = bson.M{"odometer": *odometer}
	}
	return s.updateOne(ctx, s.vehicles, filter, update, miss, "vehicle")
}

// DeleteVehicle deletes a vehicle by its ID.
func (s *MongoStore) DeleteVehicle(ctx context.Context, orgID, id string, from []models.VehicleStatus) error {
	filter, miss := scoped(orgID, id, from, "vehicle")
	return s.deleteOne(ctx, s.vehicles, filter, miss, "vehicle")
}

func stampNew(id *string, created, updated *time.Time) {
	now := time.Now().UTC()
	if *id == "" {
		*id = newID()
	}
	*created = now
	*updated = now
}
