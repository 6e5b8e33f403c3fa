package db

import (
	"context"
	"time"

	"github.com/ukydev/fleetflow/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// InsertDriver inserts a driver record.
func (s *MongoStore) InsertDriver(ctx context.Context, driver *models.Driver) error {
	stampNew(&driver.ID, &driver.CreatedAt, &driver.UpdatedAt)
	if driver.LicenseCategory == nil {
		driver.LicenseCategory = []string{}
	}
	return s.insert(ctx, s.drivers, driver, "driver")
}

// FindDrivers lists the organization's drivers matching filter.
func (s *MongoStore) FindDrivers(ctx context.Context, orgID string, f models.DriverFilter) ([]models.Driver, error) {
	q := bson.M{"organization_id": orgID}
	if f.Status != "" {
		q["status"] = f.Status
	}
	drivers := []models.Driver{}
	if err := s.findAll(ctx, s.drivers, q, &drivers, "driver"); err != nil {
		return nil, err
	}
	return drivers, nil
}

// FindDriverByID finds a driver by its ID.
func (s *MongoStore) FindDriverByID(ctx context.Context, id string) (*models.Driver, error) {
	var d models.Driver
	if err := s.findOne(ctx, s.drivers, bson.M{"_id": id}, &d, "driver"); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDriver writes the named fields of driver.
func (s *MongoStore) UpdateDriver(ctx context.Context, driver *models.Driver, fields []string) error {
	filter, miss := scoped[models.DriverStatus](driver.OrganizationID, driver.ID, nil, "driver")
	return s.updateFields(ctx, s.drivers, filter, driver, fields, miss, "driver")
}

// SetDriverStatus moves a driver between statuses.
func (s *MongoStore) SetDriverStatus(ctx context.Context, orgID, id string, from []models.DriverStatus, to models.DriverStatus) error {
	filter, miss := scoped(orgID, id, from, "driver")
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}}
	return s.updateOne(ctx, s.drivers, filter, update, miss, "driver")
}

// ReleaseDriver returns an On Trip driver to Available.
func (s *MongoStore) ReleaseDriver(ctx context.Context, orgID, id string, completed bool) error {
	filter, miss := scoped(orgID, id, []models.DriverStatus{models.DriverOnTrip}, "driver")
	update := bson.M{"$set": bson.M{"status": models.DriverAvailable, "updated_at": time.Now().UTC()}}
	if completed {
		update["$inc"] = bson.M{"trips_completed": 1}
	}
	return s.updateOne(ctx, s.drivers, filter, update, miss, "driver")
}

// DeleteDriver deletes a driver by its ID.
func (s *MongoStore) DeleteDriver(ctx context.Context, orgID, id string, from []models.DriverStatus) error {
	filter, miss := scoped(orgID, id, from, "driver")
	return s.deleteOne(ctx, s.drivers, filter, miss, "driver")
}
