package models

// FleetSummary holds the dashboard KPIs of one organization.
type FleetSummary struct {
	TotalVehicles        int     `json:"total_vehicles"`
	ActiveFleet          int     `json:"active_fleet"`
	InShop               int     `json:"in_shop"`
	Retired              int     `json:"retired"`
	UtilizationRate      float64 `json:"utilization_rate"` // percent of non-retired vehicles on a trip
	PendingCargo         int     `json:"pending_cargo"`
	DispatchedTrips      int     `json:"dispatched_trips"`
	CompletedTrips       int     `json:"completed_trips"`
	ActiveDrivers        int     `json:"active_drivers"`
	ExpiredLicenses      int     `json:"expired_licenses"`
	TotalExpenses        float64 `json:"total_expenses"`
	TotalMaintenanceCost float64 `json:"total_maintenance_cost"`
}

// VehicleCost is the cost breakdown of one vehicle.
type VehicleCost struct {
	VehicleID    string  `json:"vehicle_id"`
	Name         string  `json:"name"`
	LicensePlate string  `json:"license_plate"`
	Fuel         float64 `json:"fuel"`
	Maintenance  float64 `json:"maintenance"`
	Other        float64 `json:"other"`
	Total        float64 `json:"total"`
}
