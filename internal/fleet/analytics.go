package fleet

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/models"
)

const (
	summaryKey = "analytics:summary"
	costsKey   = "analytics:costs"
)

// Summary computes the dashboard KPIs of the caller's organization.
func (s *Service) Summary(ctx context.Context, caller models.Caller) (*models.FleetSummary, error) {
	orgID := caller.OrganizationID
	var out models.FleetSummary
	if s.cached(ctx, orgID, summaryKey, &out) {
		return &out, nil
	}

	vehicles, err := s.store.FindVehicles(ctx, orgID, models.VehicleFilter{})
	if err != nil {
		return nil, err
	}
	drivers, err := s.store.FindDrivers(ctx, orgID, models.DriverFilter{})
	if err != nil {
		return nil, err
	}
	trips, err := s.store.FindTrips(ctx, orgID, models.TripFilter{})
	if err != nil {
		return nil, err
	}
	logs, err := s.store.FindMaintenance(ctx, orgID, models.MaintenanceFilter{})
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.FindExpenses(ctx, orgID, models.ExpenseFilter{})
	if err != nil {
		return nil, err
	}

	out.TotalVehicles = len(vehicles)
	for _, v := range vehicles {
		switch v.Status {
		case models.VehicleOnTrip:
			out.ActiveFleet++
		case models.VehicleInShop:
			out.InShop++
		case models.VehicleRetired:
			out.Retired++
		}
	}
	if inService := out.TotalVehicles - out.Retired; inService > 0 {
		out.UtilizationRate = round2(float64(out.ActiveFleet) * 100 / float64(inService))
	}

	for _, t := range trips {
		switch t.Status {
		case models.TripDraft:
			out.PendingCargo++
		case models.TripDispatched:
			out.DispatchedTrips++
		case models.TripCompleted:
			out.CompletedTrips++
		}
	}

	now := s.now()
	for _, d := range drivers {
		if d.Status == models.DriverAvailable || d.Status == models.DriverOnTrip {
			out.ActiveDrivers++
		}
		if d.LicenseExpired(now) {
			out.ExpiredLicenses++
		}
	}

	for _, e := range expenses {
		out.TotalExpenses += e.Amount
	}
	for _, m := range logs {
		out.TotalMaintenanceCost += m.Cost
	}
	out.TotalExpenses = round2(out.TotalExpenses)
	out.TotalMaintenanceCost = round2(out.TotalMaintenanceCost)

	s.remember(ctx, orgID, summaryKey, out)
	return &out, nil
}

// Costs breaks the organization's spending down per vehicle, most expensive
// first. Maintenance covers service logs and Maintenance expenses.
func (s *Service) Costs(ctx context.Context, caller models.Caller) ([]models.VehicleCost, error) {
	orgID := caller.OrganizationID
	var out []models.VehicleCost
	if s.cached(ctx, orgID, costsKey, &out) {
		return out, nil
	}

	vehicles, err := s.store.FindVehicles(ctx, orgID, models.VehicleFilter{})
	if err != nil {
		return nil, err
	}
	logs, err := s.store.FindMaintenance(ctx, orgID, models.MaintenanceFilter{})
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.FindExpenses(ctx, orgID, models.ExpenseFilter{})
	if err != nil {
		return nil, err
	}

	byVehicle := make(map[string]*models.VehicleCost, len(vehicles))
	out = make([]models.VehicleCost, len(vehicles))
	for i, v := range vehicles {
		out[i] = models.VehicleCost{VehicleID: v.ID, Name: v.Name, LicensePlate: v.LicensePlate}
		byVehicle[v.ID] = &out[i]
	}
	for _, m := range logs {
		if c, ok := byVehicle[m.VehicleID]; ok {
			c.Maintenance += m.Cost
		}
	}
	for _, e := range expenses {
		c, ok := byVehicle[e.VehicleID]
		if !ok {
			continue
		}
		switch e.Category {
		case models.ExpenseFuel:
			c.Fuel += e.Amount
		case models.ExpenseMaintenance:
			c.Maintenance += e.Amount
		default:
			c.Other += e.Amount
		}
	}
	for i := range out {
		c := &out[i]
		c.Fuel, c.Maintenance, c.Other = round2(c.Fuel), round2(c.Maintenance), round2(c.Other)
		c.Total = round2(c.Fuel + c.Maintenance + c.Other)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })

	s.remember(ctx, orgID, costsKey, out)
	return out, nil
}

func (s *Service) cached(ctx context.Context, orgID, key string, dst interface{}) bool {
	ok, err := s.cache.Get(ctx, orgID, key, dst)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	return ok
}

func (s *Service) remember(ctx context.Context, orgID, key string, v interface{}) {
	if err := s.cache.Set(ctx, orgID, key, v); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
