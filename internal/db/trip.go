package db

import (
	"context"

	"github.com/ukydev/fleetflow/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// InsertTrip inserts a trip record into the collection.
func (s *MongoStore) InsertTrip(ctx context.Context, trip *models.Trip) error {
	stampNew(&trip.ID, &trip.CreatedAt, &trip.UpdatedAt)
	return s.insert(ctx, s.trips, trip, "trip")
}

// FindTrips lists the organization's trips matching filter.
func (s *MongoStore) FindTrips(ctx context.Context, orgID string, f models.TripFilter) ([]models.Trip, error) {
	q := bson.M{"organization_id": orgID}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.VehicleID != "" {
		q["vehicle_id"] = f.VehicleID
	}
	if f.DriverID != "" {
		q["driver_id"] = f.DriverID
	}
	trips := []models.Trip{}
	if err := s.findAll(ctx, s.trips, q, &trips, "trip"); err != nil {
		return nil, err
	}
	return trips, nil
}

// FindTripByID finds a trip by its ID.
func (s *MongoStore) FindTripByID(ctx context.Context, id string) (*models.Trip, error) {
	var t models.Trip
	if err := s.findOne(ctx, s.trips, bson.M{"_id": id}, &t, "trip"); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTrip writes the named fields of trip while its stored status is one of from.
func (s *MongoStore) UpdateTrip(ctx context.Context, trip *models.Trip, from []models.TripStatus, fields []string) error {
	filter, miss := scoped(trip.OrganizationID, trip.ID, from, "trip")
	return s.updateFields(ctx, s.trips, filter, trip, fields, miss, "trip")
}

// DeleteTrip deletes a trip by its ID.
func (s *MongoStore) DeleteTrip(ctx context.Context, orgID, id string, from []models.TripStatus) error {
	filter, miss := scoped(orgID, id, from, "trip")
	return s.deleteOne(ctx, s.trips, filter, miss, "trip")
}
