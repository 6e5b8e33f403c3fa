package fleet

import (
	"context"

	"github.com/ukydev/fleetflow/internal/models"
)

// ListVehicles returns the organization's vehicles matching f.
func (s *Service) ListVehicles(ctx context.Context, caller models.Caller, f models.VehicleFilter) ([]models.Vehicle, error) {
	return s.store.FindVehicles(ctx, caller.OrganizationID, f)
}

// GetVehicle returns one vehicle.
func (s *Service) GetVehicle(ctx context.Context, caller models.Caller, id string) (*models.Vehicle, error) {
	return s.vehicle(ctx, caller.OrganizationID, id)
}

// AvailableVehicles lists the vehicles that could carry cargo kg right now.
// An empty type matches every type.
func (s *Service) AvailableVehicles(ctx context.Context, caller models.Caller, cargo float64, t models.VehicleType) ([]models.Vehicle, error) {
	if cargo < 0 {
		return nil, models.Invalidf("cargo_weight cannot be negative")
	}
	if t != "" && !models.IsValidVehicleType(t) {
		return nil, models.Invalidf("unknown vehicle type %q", t)
	}
	return s.store.FindVehicles(ctx, caller.OrganizationID, models.VehicleFilter{
		Status:      models.VehicleAvailable,
		Type:        t,
		MinCapacity: cargo,
	})
}

// CreateVehicle registers a vehicle. License plates are unique.
func (s *Service) CreateVehicle(ctx context.Context, caller models.Caller, req models.CreateVehicleRequest) (*models.Vehicle, error) {
	v, err := req.Vehicle(caller.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertVehicle(ctx, v); err != nil {
		return nil, err
	}
	s.changed(ctx, caller.OrganizationID)
	return v, nil
}

// UpdateVehicle edits a vehicle. Status changes cannot enter or leave
// On Trip, and a vehicle with open maintenance stays In Shop.
func (s *Service) UpdateVehicle(ctx context.Context, caller models.Caller, id string, upd models.VehicleUpdate) (*models.Vehicle, error) {
	orgID := caller.OrganizationID
	var v *models.Vehicle
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if v, err = s.vehicle(ctx, orgID, id); err != nil {
			return err
		}
		prev := v.Status
		upd.Apply(v)
		if err := v.Validate(); err != nil {
			return err
		}
		if v.Status != prev {
			if err := s.checkVehicleStatusEdit(ctx, v, prev); err != nil {
				return err
			}
		}
		if fields := upd.Fields(); len(fields) > 0 {
			if err := s.store.UpdateVehicle(ctx, v, fields); err != nil {
				return err
			}
		}
		if v.Status == prev {
			return nil
		}
		err = s.store.SetVehicleStatus(ctx, orgID, id, []models.VehicleStatus{prev}, v.Status)
		return conflict(err, "vehicle %s changed status", v.LicensePlate)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, orgID)
	return v, nil
}

func (s *Service) checkVehicleStatusEdit(ctx context.Context, v *models.Vehicle, prev models.VehicleStatus) error {
	switch {
	case v.Status == models.VehicleOnTrip:
		return models.Invalidf("a vehicle can only go on trip through dispatch")
	case prev == models.VehicleOnTrip:
		return models.Conflictf("vehicle %s is on a trip, complete or cancel it first", v.LicensePlate)
	case prev == models.VehicleInShop:
		open, err := s.store.FindMaintenance(ctx, v.OrganizationID, models.MaintenanceFilter{VehicleID: v.ID, OpenOnly: true})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return models.Conflictf("vehicle %s has %d open maintenance logs", v.LicensePlate, len(open))
		}
	}
	return nil
}

// DeleteVehicle removes a vehicle that is not on a trip.
func (s *Service) DeleteVehicle(ctx context.Context, caller models.Caller, id string) error {
	orgID := caller.OrganizationID
	v, err := s.vehicle(ctx, orgID, id)
	if err != nil {
		return err
	}
	if v.Status == models.VehicleOnTrip {
		return models.Conflictf("vehicle %s is on a trip", v.LicensePlate)
	}
	err = s.store.DeleteVehicle(ctx, orgID, id,
		[]models.VehicleStatus{models.VehicleAvailable, models.VehicleInShop, models.VehicleRetired})
	if err != nil {
		return conflict(err, "vehicle %s was dispatched meanwhile", v.LicensePlate)
	}
	s.changed(ctx, orgID)
	return nil
}
