package fleet

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/models"
)

// ListTrips returns the organization's trips, newest first.
func (s *Service) ListTrips(ctx context.Context, caller models.Caller, f models.TripFilter) ([]models.Trip, error) {
	return s.store.FindTrips(ctx, caller.OrganizationID, f)
}

// GetTrip returns one trip of the caller's organization.
func (s *Service) GetTrip(ctx context.Context, caller models.Caller, id string) (*models.Trip, error) {
	return s.trip(ctx, caller.OrganizationID, id)
}

// CreateTrip stores a new trip. A Dispatched trip takes its vehicle and
// driver off the pool in the same transaction; a Draft has no side effects.
func (s *Service) CreateTrip(ctx context.Context, caller models.Caller, req models.CreateTripRequest) (*models.Trip, error) {
	orgID := caller.OrganizationID
	trip, err := req.Trip(orgID)
	if err != nil {
		return nil, err
	}

	if trip.Status == models.TripDraft {
		if err := s.checkRefs(ctx, orgID, trip.VehicleID, trip.DriverID); err != nil {
			return nil, err
		}
		if err := s.store.InsertTrip(ctx, trip); err != nil {
			return nil, err
		}
		s.changed(ctx, orgID)
		return trip, nil
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.assign(ctx, orgID, trip); err != nil {
			return err
		}
		return s.store.InsertTrip(ctx, trip)
	})
	if err != nil {
		return nil, err
	}

	s.dispatched(ctx, caller, trip)
	return trip, nil
}

// DispatchTrip moves a Draft trip to Dispatched, optionally replacing its
// vehicle and driver first.
func (s *Service) DispatchTrip(ctx context.Context, caller models.Caller, id string, req models.DispatchTripRequest) (*models.Trip, error) {
	orgID := caller.OrganizationID
	var trip *models.Trip
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if trip, err = s.trip(ctx, orgID, id); err != nil {
			return err
		}
		if trip.Status != models.TripDraft {
			return models.Conflictf("trip is %s, only drafts can be dispatched", trip.Status)
		}
		if req.VehicleID != "" {
			trip.VehicleID = req.VehicleID
		}
		if req.DriverID != "" {
			trip.DriverID = req.DriverID
		}
		trip.Status = models.TripDispatched
		if err := trip.Validate(); err != nil {
			return err
		}
		if err := s.assign(ctx, orgID, trip); err != nil {
			return err
		}
		err = s.store.UpdateTrip(ctx, trip, []models.TripStatus{models.TripDraft},
			[]string{"vehicle_id", "driver_id", "status", "dispatched_at"})
		return conflict(err, "trip is no longer a draft")
	})
	if err != nil {
		return nil, err
	}

	s.dispatched(ctx, caller, trip)
	return trip, nil
}

// assign checks that the trip's vehicle and driver can take it and marks
// both On Trip. Must run inside a transaction together with the trip write.
func (s *Service) assign(ctx context.Context, orgID string, trip *models.Trip) error {
	v, err := s.vehicle(ctx, orgID, trip.VehicleID)
	if err != nil {
		return err
	}
	d, err := s.driver(ctx, orgID, trip.DriverID)
	if err != nil {
		return err
	}

	if trip.CargoWeight > v.MaxCapacity {
		return fmt.Errorf("%w: cargo weight %.0f kg exceeds %s capacity of %.0f kg",
			models.ErrCapacityExceeded, trip.CargoWeight, v.LicensePlate, v.MaxCapacity)
	}
	if v.Status != models.VehicleAvailable {
		return models.Unavailablef("vehicle %s is %s", v.LicensePlate, v.Status)
	}
	if d.Status != models.DriverAvailable {
		return models.Unavailablef("driver %s is %s", d.Name, d.Status)
	}
	if d.LicenseExpired(s.now()) {
		return models.Unavailablef("license of driver %s has expired", d.Name)
	}
	if !d.CanOperate(v.Type) {
		return models.Unavailablef("driver %s is not licensed for %s", d.Name, v.Type)
	}

	// The status guards serialize concurrent dispatches of the same vehicle
	// or driver: only one of them matches.
	err = s.store.SetVehicleStatus(ctx, orgID, v.ID, []models.VehicleStatus{models.VehicleAvailable}, models.VehicleOnTrip)
	if err != nil {
		return unavailable(err, "vehicle %s is no longer available", v.LicensePlate)
	}
	err = s.store.SetDriverStatus(ctx, orgID, d.ID, []models.DriverStatus{models.DriverAvailable}, models.DriverOnTrip)
	if err != nil {
		return unavailable(err, "driver %s is no longer available", d.Name)
	}

	now := s.now()
	trip.DispatchedAt = &now
	return nil
}

func (s *Service) dispatched(ctx context.Context, caller models.Caller, trip *models.Trip) {
	logrus.WithFields(logrus.Fields{
		"trip_id":    trip.ID,
		"vehicle_id": trip.VehicleID,
		"driver_id":  trip.DriverID,
		"by":         caller.UserID,
	}).Info("trip dispatched")
	s.changed(ctx, caller.OrganizationID, models.FleetEvent{
		Type:      models.EventTripDispatched,
		TripID:    trip.ID,
		VehicleID: trip.VehicleID,
		DriverID:  trip.DriverID,
	})
}

// CompleteTrip closes a Dispatched trip and releases its vehicle and driver.
// The vehicle odometer only moves forward. Completing a trip twice fails.
func (s *Service) CompleteTrip(ctx context.Context, caller models.Caller, id string, req models.CompleteTripRequest) (*models.Trip, error) {
	if req.FinalOdometer != nil && *req.FinalOdometer < 0 {
		return nil, models.Invalidf("final_odometer cannot be negative")
	}
	orgID := caller.OrganizationID
	var trip *models.Trip
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if trip, err = s.trip(ctx, orgID, id); err != nil {
			return err
		}
		if trip.Status != models.TripDispatched {
			return models.Conflictf("trip is %s, only dispatched trips can be completed", trip.Status)
		}
		now := s.now()
		trip.Status = models.TripCompleted
		trip.CompletedAt = &now
		trip.FinalOdometer = req.FinalOdometer
		err = s.store.UpdateTrip(ctx, trip, []models.TripStatus{models.TripDispatched},
			[]string{"status", "completed_at", "final_odometer"})
		if err != nil {
			return conflict(err, "trip is no longer dispatched")
		}
		return s.release(ctx, trip, req.FinalOdometer, true)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"trip_id": trip.ID, "by": caller.UserID}).Info("trip completed")
	s.changed(ctx, orgID, models.FleetEvent{
		Type:      models.EventTripCompleted,
		TripID:    trip.ID,
		VehicleID: trip.VehicleID,
		DriverID:  trip.DriverID,
	})
	return trip, nil
}

// CancelTrip cancels a Draft or Dispatched trip. A dispatched trip gives its
// vehicle and driver back without counting the trip.
func (s *Service) CancelTrip(ctx context.Context, caller models.Caller, id string) (*models.Trip, error) {
	orgID := caller.OrganizationID
	var trip *models.Trip
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if trip, err = s.trip(ctx, orgID, id); err != nil {
			return err
		}
		prev := trip.Status
		if prev != models.TripDraft && prev != models.TripDispatched {
			return models.Conflictf("trip is already %s", prev)
		}
		now := s.now()
		trip.Status = models.TripCancelled
		trip.CancelledAt = &now
		err = s.store.UpdateTrip(ctx, trip, []models.TripStatus{prev}, []string{"status", "cancelled_at"})
		if err != nil {
			return conflict(err, "trip is no longer %s", prev)
		}
		if prev == models.TripDispatched {
			return s.release(ctx, trip, nil, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"trip_id": trip.ID, "by": caller.UserID}).Info("trip cancelled")
	s.changed(ctx, orgID, models.FleetEvent{
		Type:      models.EventTripCancelled,
		TripID:    trip.ID,
		VehicleID: trip.VehicleID,
		DriverID:  trip.DriverID,
	})
	return trip, nil
}

func (s *Service) release(ctx context.Context, trip *models.Trip, odometer *float64, completed bool) error {
	if err := s.store.ReleaseVehicle(ctx, trip.OrganizationID, trip.VehicleID, odometer); err != nil {
		return conflict(err, "vehicle of trip %s is not on a trip", trip.ID)
	}
	if err := s.store.ReleaseDriver(ctx, trip.OrganizationID, trip.DriverID, completed); err != nil {
		return conflict(err, "driver of trip %s is not on a trip", trip.ID)
	}
	return nil
}

// UpdateTrip edits a Draft trip.
func (s *Service) UpdateTrip(ctx context.Context, caller models.Caller, id string, upd models.TripUpdate) (*models.Trip, error) {
	orgID := caller.OrganizationID
	trip, err := s.trip(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripDraft {
		return nil, models.Conflictf("trip is %s, only drafts can be edited", trip.Status)
	}
	upd.Apply(trip)
	if err := trip.Validate(); err != nil {
		return nil, err
	}
	fields := upd.Fields()
	if len(fields) == 0 {
		return trip, nil
	}
	if err := s.checkRefs(ctx, orgID, trip.VehicleID, trip.DriverID); err != nil {
		return nil, err
	}
	err = s.store.UpdateTrip(ctx, trip, []models.TripStatus{models.TripDraft}, fields)
	if err != nil {
		return nil, conflict(err, "trip is no longer a draft")
	}
	s.changed(ctx, orgID)
	return trip, nil
}

// DeleteTrip removes a trip that is not underway.
func (s *Service) DeleteTrip(ctx context.Context, caller models.Caller, id string) error {
	orgID := caller.OrganizationID
	trip, err := s.trip(ctx, orgID, id)
	if err != nil {
		return err
	}
	if trip.Status == models.TripDispatched {
		return models.Conflictf("trip is dispatched, cancel it first")
	}
	err = s.store.DeleteTrip(ctx, orgID, id,
		[]models.TripStatus{models.TripDraft, models.TripCompleted, models.TripCancelled})
	if err != nil {
		return conflict(err, "trip was dispatched meanwhile")
	}
	s.changed(ctx, orgID)
	return nil
}

// checkRefs verifies that the optional vehicle and driver of a draft belong
// to the organization.
func (s *Service) checkRefs(ctx context.Context, orgID, vehicleID, driverID string) error {
	if vehicleID != "" {
		if _, err := s.vehicle(ctx, orgID, vehicleID); err != nil {
			return err
		}
	}
	if driverID != "" {
		if _, err := s.driver(ctx, orgID, driverID); err != nil {
			return err
		}
	}
	return nil
}
