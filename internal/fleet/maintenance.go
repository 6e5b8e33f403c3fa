package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/db"
	"github.com/ukydev/fleetflow/internal/models"
)

// ListMaintenance returns the organization's maintenance logs.
func (s *Service) ListMaintenance(ctx context.Context, caller models.Caller, f models.MaintenanceFilter) ([]models.Maintenance, error) {
	return s.store.FindMaintenance(ctx, caller.OrganizationID, f)
}

// GetMaintenance returns one maintenance log.
func (s *Service) GetMaintenance(ctx context.Context, caller models.Caller, id string) (*models.Maintenance, error) {
	return s.maintenanceLog(ctx, caller.OrganizationID, id)
}

// CreateMaintenance opens a service log and sends the vehicle to the shop.
// Vehicles on a trip or retired cannot be serviced.
func (s *Service) CreateMaintenance(ctx context.Context, caller models.Caller, req models.CreateMaintenanceRequest) (*models.Maintenance, error) {
	orgID := caller.OrganizationID
	m, err := req.Maintenance(orgID, s.now())
	if err != nil {
		return nil, err
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		v, err := s.vehicle(ctx, orgID, m.VehicleID)
		if err != nil {
			return err
		}
		if v.Status == models.VehicleOnTrip || v.Status == models.VehicleRetired {
			return models.Conflictf("vehicle %s is %s", v.LicensePlate, v.Status)
		}
		if err := s.store.InsertMaintenance(ctx, m); err != nil {
			return err
		}
		err = s.store.SetVehicleStatus(ctx, orgID, v.ID,
			[]models.VehicleStatus{models.VehicleAvailable, models.VehicleInShop}, models.VehicleInShop)
		return conflict(err, "vehicle %s changed status", v.LicensePlate)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"maintenance_id": m.ID, "vehicle_id": m.VehicleID, "by": caller.UserID}).Info("maintenance opened")
	s.changed(ctx, orgID, models.FleetEvent{
		Type:          models.EventMaintenanceOpened,
		MaintenanceID: m.ID,
		VehicleID:     m.VehicleID,
	})
	return m, nil
}

// UpdateMaintenance edits a log. Moving it to Completed behaves like
// CompleteMaintenance; a completed log cannot be reopened.
func (s *Service) UpdateMaintenance(ctx context.Context, caller models.Caller, id string, upd models.MaintenanceUpdate) (*models.Maintenance, error) {
	orgID := caller.OrganizationID
	var (
		m         *models.Maintenance
		completed bool
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if m, err = s.maintenanceLog(ctx, orgID, id); err != nil {
			return err
		}
		prev := m.Status
		if err := upd.Apply(m); err != nil {
			return err
		}
		fields := upd.Fields()
		if upd.Status != nil && *upd.Status != prev {
			switch {
			case prev == models.MaintenanceCompleted:
				return models.Conflictf("maintenance log is already completed")
			case *upd.Status == models.MaintenanceCompleted:
				if err := m.Validate(); err != nil {
					return err
				}
				completed = true
				return s.closeLog(ctx, m, fields)
			}
			m.Status = *upd.Status
			fields = append(fields, "status")
		}
		if err := m.Validate(); err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		err = s.store.UpdateMaintenance(ctx, m, []models.MaintenanceStatus{prev}, fields)
		return conflict(err, "maintenance log changed status")
	})
	if err != nil {
		return nil, err
	}

	if completed {
		s.maintenanceDone(ctx, caller, m)
	} else {
		s.changed(ctx, orgID)
	}
	return m, nil
}

// CompleteMaintenance closes an open log. When it was the vehicle's last
// open log the vehicle leaves the shop.
func (s *Service) CompleteMaintenance(ctx context.Context, caller models.Caller, id string) (*models.Maintenance, error) {
	orgID := caller.OrganizationID
	var m *models.Maintenance
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if m, err = s.maintenanceLog(ctx, orgID, id); err != nil {
			return err
		}
		if !m.IsOpen() {
			return models.Conflictf("maintenance log is already completed")
		}
		return s.closeLog(ctx, m, nil)
	})
	if err != nil {
		return nil, err
	}
	s.maintenanceDone(ctx, caller, m)
	return m, nil
}

func (s *Service) closeLog(ctx context.Context, m *models.Maintenance, fields []string) error {
	prev := m.Status
	now := s.now()
	m.Status = models.MaintenanceCompleted
	m.CompletedAt = &now
	fields = append(fields, "status", "completed_at")
	err := s.store.UpdateMaintenance(ctx, m, []models.MaintenanceStatus{prev}, fields)
	if err != nil {
		return conflict(err, "maintenance log changed status")
	}
	serviced := m.Date
	return s.leaveShop(ctx, m.OrganizationID, m.VehicleID, &serviced)
}

func (s *Service) maintenanceDone(ctx context.Context, caller models.Caller, m *models.Maintenance) {
	logrus.WithFields(logrus.Fields{"maintenance_id": m.ID, "vehicle_id": m.VehicleID, "by": caller.UserID}).Info("maintenance completed")
	s.changed(ctx, caller.OrganizationID, models.FleetEvent{
		Type:          models.EventMaintenanceCompleted,
		MaintenanceID: m.ID,
		VehicleID:     m.VehicleID,
	})
}

// leaveShop returns an In Shop vehicle to Available once it has no open
// logs left. serviced, when set, is recorded as the last service date.
func (s *Service) leaveShop(ctx context.Context, orgID, vehicleID string, serviced *time.Time) error {
	open, err := s.store.FindMaintenance(ctx, orgID, models.MaintenanceFilter{VehicleID: vehicleID, OpenOnly: true})
	if err != nil {
		return err
	}
	v, err := s.vehicle(ctx, orgID, vehicleID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if serviced != nil && (v.LastService == nil || serviced.After(*v.LastService)) {
		v.LastService = serviced
		if err := s.store.UpdateVehicle(ctx, v, []string{"last_service"}); err != nil {
			return err
		}
	}
	if len(open) > 0 || v.Status != models.VehicleInShop {
		return nil
	}
	err = s.store.SetVehicleStatus(ctx, orgID, vehicleID, []models.VehicleStatus{models.VehicleInShop}, models.VehicleAvailable)
	if errors.Is(err, db.ErrStatusChanged) {
		return nil
	}
	return err
}

// DeleteMaintenance removes a log. Deleting the last open log of a vehicle
// releases it from the shop.
func (s *Service) DeleteMaintenance(ctx context.Context, caller models.Caller, id string) error {
	orgID := caller.OrganizationID
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		m, err := s.maintenanceLog(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := s.store.DeleteMaintenance(ctx, orgID, id); err != nil {
			return err
		}
		if m.IsOpen() {
			return s.leaveShop(ctx, orgID, m.VehicleID, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.changed(ctx, orgID)
	return nil
}
