package fleet

import (
	"context"

	"github.com/ukydev/fleetflow/internal/models"
)

// ListDrivers returns the organization's drivers matching f.
func (s *Service) ListDrivers(ctx context.Context, caller models.Caller, f models.DriverFilter) ([]models.Driver, error) {
	f.Status = models.NormalizeDriverStatus(f.Status)
	return s.store.FindDrivers(ctx, caller.OrganizationID, f)
}

// GetDriver returns one driver.
func (s *Service) GetDriver(ctx context.Context, caller models.Caller, id string) (*models.Driver, error) {
	return s.driver(ctx, caller.OrganizationID, id)
}

// AvailableDrivers lists drivers that could be dispatched now: Available,
// with a valid license covering vehicleType (any type when empty).
func (s *Service) AvailableDrivers(ctx context.Context, caller models.Caller, vehicleType models.VehicleType) ([]models.Driver, error) {
	if vehicleType != "" && !models.IsValidVehicleType(vehicleType) {
		return nil, models.Invalidf("unknown vehicle type %q", vehicleType)
	}
	all, err := s.store.FindDrivers(ctx, caller.OrganizationID, models.DriverFilter{Status: models.DriverAvailable})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]models.Driver, 0, len(all))
	for _, d := range all {
		if d.LicenseExpired(now) {
			continue
		}
		if vehicleType != "" && !d.CanOperate(vehicleType) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// CreateDriver registers a driver.
func (s *Service) CreateDriver(ctx context.Context, caller models.Caller, req models.CreateDriverRequest) (*models.Driver, error) {
	d, err := req.Driver(caller.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertDriver(ctx, d); err != nil {
		return nil, err
	}
	s.changed(ctx, caller.OrganizationID)
	return d, nil
}

// UpdateDriver edits a driver. On Trip can only be entered and left through
// trips.
func (s *Service) UpdateDriver(ctx context.Context, caller models.Caller, id string, upd models.DriverUpdate) (*models.Driver, error) {
	orgID := caller.OrganizationID
	var d *models.Driver
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if d, err = s.driver(ctx, orgID, id); err != nil {
			return err
		}
		prev := d.Status
		if err := upd.Apply(d); err != nil {
			return err
		}
		if err := d.Validate(); err != nil {
			return err
		}
		if d.Status != prev {
			switch {
			case d.Status == models.DriverOnTrip:
				return models.Invalidf("a driver can only go on trip through dispatch")
			case prev == models.DriverOnTrip:
				return models.Conflictf("driver %s is on a trip, complete or cancel it first", d.Name)
			}
		}
		if fields := upd.Fields(); len(fields) > 0 {
			if err := s.store.UpdateDriver(ctx, d, fields); err != nil {
				return err
			}
		}
		if d.Status == prev {
			return nil
		}
		err = s.store.SetDriverStatus(ctx, orgID, id, []models.DriverStatus{prev}, d.Status)
		return conflict(err, "driver %s changed status", d.Name)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, orgID)
	return d, nil
}

// DeleteDriver removes a driver that is not on a trip.
func (s *Service) DeleteDriver(ctx context.Context, caller models.Caller, id string) error {
	orgID := caller.OrganizationID
	d, err := s.driver(ctx, orgID, id)
	if err != nil {
		return err
	}
	if d.Status == models.DriverOnTrip {
		return models.Conflictf("driver %s is on a trip", d.Name)
	}
	err = s.store.DeleteDriver(ctx, orgID, id,
		[]models.DriverStatus{models.DriverAvailable, models.DriverOffDuty, models.DriverSuspended})
	if err != nil {
		return conflict(err, "driver %s was dispatched meanwhile", d.Name)
	}
	s.changed(ctx, orgID)
	return nil
}
