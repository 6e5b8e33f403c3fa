package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/fleetflow/internal/models"
)

// ErrStatusChanged is returned by conditional writes when the record is no
// longer in one of the expected states.
var ErrStatusChanged = errors.New("status changed concurrently")

// Transactor runs fn atomically. Store calls made with the ctx passed to fn
// join the transaction; a non-nil error from fn rolls everything back.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrganizationCollection defines the interface for tenant operations.
type OrganizationCollection interface {
	InsertOrganization(ctx context.Context, org *models.Organization) error
	FindOrganizationByID(ctx context.Context, id string) (*models.Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error)
}

// UserCollection defines the interface for user database operations.
type UserCollection interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, orgID string) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User, fields []string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	CountUsersByRole(ctx context.Context, orgID string, role models.Role) (int64, error)
}

// VehicleCollection defines the interface for vehicle data operations.
// Lookups by id are unscoped so callers can tell a foreign record from a
// missing one; every write is filtered by organization.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error
	FindVehicles(ctx context.Context, orgID string, filter models.VehicleFilter) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, vehicle *models.Vehicle, fields []string) error
	// SetVehicleStatus moves the vehicle to `to` only while its status is one of `from`.
	SetVehicleStatus(ctx context.Context, orgID, id string, from []models.VehicleStatus, to models.VehicleStatus) error
	// ReleaseVehicle moves an On Trip vehicle back to Available. A non-nil
	// odometer is applied only if it is larger than the stored reading.
	ReleaseVehicle(ctx context.Context, orgID, id string, odometer *float64) error
	// DeleteVehicle removes the vehicle; a non-empty `from` restricts the statuses it may be in.
	DeleteVehicle(ctx context.Context, orgID, id string, from []models.VehicleStatus) error
}

// DriverCollection defines the interface for driver data operations.
type DriverCollection interface {
	InsertDriver(ctx context.Context, driver *models.Driver) error
	FindDrivers(ctx context.Context, orgID string, filter models.DriverFilter) ([]models.Driver, error)
	FindDriverByID(ctx context.Context, id string) (*models.Driver, error)
	UpdateDriver(ctx context.Context, driver *models.Driver, fields []string) error
	SetDriverStatus(ctx context.Context, orgID, id string, from []models.DriverStatus, to models.DriverStatus) error
	// ReleaseDriver moves an On Trip driver back to Available, counting the
	// trip when completed is true.
	ReleaseDriver(ctx context.Context, orgID, id string, completed bool) error
	DeleteDriver(ctx context.Context, orgID, id string, from []models.DriverStatus) error
}

// TripCollection defines the interface for trip data operations.
type TripCollection interface {
	InsertTrip(ctx context.Context, trip *models.Trip) error
	FindTrips(ctx context.Context, orgID string, filter models.TripFilter) ([]models.Trip, error)
	FindTripByID(ctx context.Context, id string) (*models.Trip, error)
	// UpdateTrip writes the named fields while the stored status is one of
	// `from` (any status when empty).
	UpdateTrip(ctx context.Context, trip *models.Trip, from []models.TripStatus, fields []string) error
	DeleteTrip(ctx context.Context, orgID, id string, from []models.TripStatus) error
}

// MaintenanceCollection defines the interface for maintenance log operations.
type MaintenanceCollection interface {
	InsertMaintenance(ctx context.Context, m *models.Maintenance) error
	FindMaintenance(ctx context.Context, orgID string, filter models.MaintenanceFilter) ([]models.Maintenance, error)
	FindMaintenanceByID(ctx context.Context, id string) (*models.Maintenance, error)
	UpdateMaintenance(ctx context.Context, m *models.Maintenance, from []models.MaintenanceStatus, fields []string) error
	DeleteMaintenance(ctx context.Context, orgID, id string) error
}

// ExpenseCollection defines the interface for expense operations.
type ExpenseCollection interface {
	InsertExpense(ctx context.Context, e *models.Expense) error
	FindExpenses(ctx context.Context, orgID string, filter models.ExpenseFilter) ([]models.Expense, error)
	FindExpenseByID(ctx context.Context, id string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, e *models.Expense, fields []string) error
	DeleteExpense(ctx context.Context, orgID, id string) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	Transactor
	OrganizationCollection
	UserCollection
	VehicleCollection
	DriverCollection
	TripCollection
	MaintenanceCollection
	ExpenseCollection
	Close(ctx context.Context) error
}
