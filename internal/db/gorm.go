package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ukydev/fleetflow/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type gormTxKey struct{}

// GormStore implements Store on a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres opens a Postgres connection and migrates the schema.
func OpenPostgres(dsn string) (*GormStore, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := NewGormStore(conn)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{db: conn}
}

// Migrate creates or updates the tables.
func (s *GormStore) Migrate() error {
	err := s.db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Vehicle{},
		&models.Driver{},
		&models.Trip{},
		&models.Maintenance{},
		&models.Expense{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// WithTransaction runs fn inside a database transaction. Nested calls join
// the outer transaction.
func (s *GormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormTxKey{}, tx))
	})
	return err
}

// Close closes the underlying connection pool.
func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func gormErr(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NotFound(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s already exists", models.ErrConflict, entity)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", models.ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", models.ErrTransient, err)
	}
	return err
}

func strs[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

// whereScoped restricts q to one record of the organization, optionally in
// one of the given statuses, and returns the error for a miss.
func whereScoped[S ~string](q *gorm.DB, orgID, id string, from []S, entity string) (*gorm.DB, error) {
	q = q.Where("id = ? AND organization_id = ?", id, orgID)
	if len(from) == 0 {
		return q, models.NotFound(entity)
	}
	return q.Where("status IN ?", strs(from)), ErrStatusChanged
}

func (s *GormStore) findByID(ctx context.Context, out interface{}, id, entity string) error {
	return gormErr(s.conn(ctx).Where("id = ?", id).First(out).Error, entity)
}

// updateSelected writes the named columns of record, whose ID and
// organization identify the row.
func updateSelected[S ~string](s *GormStore, ctx context.Context, record interface{}, orgID, id string, from []S, fields []string, entity string) error {
	cols := append(append([]string{}, fields...), "updated_at")
	q, miss := whereScoped(s.conn(ctx).Model(record), orgID, id, from, entity)
	res := q.Select(cols).Updates(record)
	if res.Error != nil {
		return gormErr(res.Error, entity)
	}
	if res.RowsAffected == 0 {
		return miss
	}
	return nil
}

func updateColumns[S ~string](s *GormStore, ctx context.Context, model interface{}, orgID, id string, from []S, values map[string]interface{}, entity string) error {
	values["updated_at"] = time.Now().UTC()
	q, miss := whereScoped(s.conn(ctx).Model(model), orgID, id, from, entity)
	res := q.Updates(values)
	if res.Error != nil {
		return gormErr(res.Error, entity)
	}
	if res.RowsAffected == 0 {
		return miss
	}
	return nil
}

func deleteScoped[S ~string](s *GormStore, ctx context.Context, model interface{}, orgID, id string, from []S, entity string) error {
	q, miss := whereScoped(s.conn(ctx), orgID, id, from, entity)
	res := q.Delete(model)
	if res.Error != nil {
		return gormErr(res.Error, entity)
	}
	if res.RowsAffected == 0 {
		return miss
	}
	return nil
}

// Organizations

func (s *GormStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = newID()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	return gormErr(s.conn(ctx).Create(org).Error, "organization")
}

func (s *GormStore) FindOrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := s.findByID(ctx, &org, id, "organization"); err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *GormStore) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	var org models.Organization
	if err := s.conn(ctx).Where("name = ?", name).First(&org).Error; err != nil {
		return nil, gormErr(err, "organization")
	}
	return &org, nil
}

// Users

func (s *GormStore) InsertUser(ctx context.Context, user *models.User) error {
	stampNew(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	user.Email = strings.ToLower(user.Email)
	user.IsActive = true
	return gormErr(s.conn(ctx).Create(user).Error, "user")
}

func (s *GormStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.findByID(ctx, &u, id, "user"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, gormErr(err, "user")
	}
	return &u, nil
}

func (s *GormStore) FindUsers(ctx context.Context, orgID string) ([]models.User, error) {
	users := []models.User{}
	err := s.conn(ctx).Where("organization_id = ?", orgID).Order("created_at DESC").Find(&users).Error
	return users, gormErr(err, "user")
}

func (s *GormStore) UpdateUser(ctx context.Context, user *models.User, fields []string) error {
	user.Email = strings.ToLower(user.Email)
	user.UpdatedAt = time.Now().UTC()
	return updateSelected[models.Role](s, ctx, user, user.OrganizationID, user.ID, nil, fields, "user")
}

func (s *GormStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_login": at, "updated_at": at})
	if res.Error != nil {
		return gormErr(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return models.NotFound("user")
	}
	return nil
}

func (s *GormStore) CountUsersByRole(ctx context.Context, orgID string, role models.Role) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.User{}).Where("organization_id = ? AND role = ?", orgID, role).Count(&n).Error
	return n, gormErr(err, "user")
}

// Vehicles

func (s *GormStore) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	stampNew(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	return gormErr(s.conn(ctx).Create(v).Error, "vehicle")
}

func (s *GormStore) FindVehicles(ctx context.Context, orgID string, f models.VehicleFilter) ([]models.Vehicle, error) {
	q := s.conn(ctx).Where("organization_id = ?", orgID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Region != "" {
		q = q.Where("region = ?", f.Region)
	}
	if f.MinCapacity > 0 {
		q = q.Where("max_capacity >= ?", f.MinCapacity)
	}
	vehicles := []models.Vehicle{}
	err := q.Order("created_at DESC").Find(&vehicles).Error
	return vehicles, gormErr(err, "vehicle")
}

func (s *GormStore) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := s.findByID(ctx, &v, id, "vehicle"); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *GormStore) UpdateVehicle(ctx context.Context, v *models.Vehicle, fields []string) error {
	v.UpdatedAt = time.Now().UTC()
	return updateSelected[models.VehicleStatus](s, ctx, v, v.OrganizationID, v.ID, nil, fields, "vehicle")
}

func (s *GormStore) SetVehicleStatus(ctx context.Context, orgID, id string, from []models.VehicleStatus, to models.VehicleStatus) error {
	return updateColumns(s, ctx, &models.Vehicle{}, orgID, id, from, map[string]interface{}{"status": to}, "vehicle")
}

func (s *GormStore) ReleaseVehicle(ctx context.Context, orgID, id string, odometer *float64) error {
	values := map[string]interface{}{"status": models.VehicleAvailable}
	if odometer != nil {
		values["odometer"] = gorm.Expr("GREATEST(odometer, ?)", *odometer)
	}
	from := []models.VehicleStatus{models.VehicleOnTrip}
	return updateColumns(s, ctx, &models.Vehicle{}, orgID, id, from, values, "vehicle")
}

func (s *GormStore) DeleteVehicle(ctx context.Context, orgID, id string, from []models.VehicleStatus) error {
	return deleteScoped(s, ctx, &models.Vehicle{}, orgID, id, from, "vehicle")
}

// Drivers

func (s *GormStore) InsertDriver(ctx context.Context, d *models.Driver) error {
	stampNew(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if d.LicenseCategory == nil {
		d.LicenseCategory = []string{}
	}
	return gormErr(s.conn(ctx).Create(d).Error, "driver")
}

func (s *GormStore) FindDrivers(ctx context.Context, orgID string, f models.DriverFilter) ([]models.Driver, error) {
	q := s.conn(ctx).Where("organization_id = ?", orgID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	drivers := []models.Driver{}
	err := q.Order("created_at DESC").Find(&drivers).Error
	return drivers, gormErr(err, "driver")
}

func (s *GormStore) FindDriverByID(ctx context.Context, id string) (*models.Driver, error) {
	var d models.Driver
	if err := s.findByID(ctx, &d, id, "driver"); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *GormStore) UpdateDriver(ctx context.Context, d *models.Driver, fields []string) error {
	d.UpdatedAt = time.Now().UTC()
	return updateSelected[models.DriverStatus](s, ctx, d, d.OrganizationID, d.ID, nil, fields, "driver")
}

func (s *GormStore) SetDriverStatus(ctx context.Context, orgID, id string, from []models.DriverStatus, to models.DriverStatus) error {
	return updateColumns(s, ctx, &models.Driver{}, orgID, id, from, map[string]interface{}{"status": to}, "driver")
}

func (s *GormStore) ReleaseDriver(ctx context.Context, orgID, id string, completed bool) error {
	values := map[string]interface{}{"status": models.DriverAvailable}
	if completed {
		values["trips_completed"] = gorm.Expr("trips_completed + 1")
	}
	from := []models.DriverStatus{models.DriverOnTrip}
	return updateColumns(s, ctx, &models.Driver{}, orgID, id, from, values, "driver")
}

func (s *GormStore) DeleteDriver(ctx context.Context, orgID, id string, from []models.DriverStatus) error {
	return deleteScoped(s, ctx, &models.Driver{}, orgID, id, from, "driver")
}

// Trips

func (s *GormStore) InsertTrip(ctx context.Context, t *models.Trip) error {
	stampNew(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return gormErr(s.conn(ctx).Create(t).Error, "trip")
}

func (s *GormStore) FindTrips(ctx context.Context, orgID string, f models.TripFilter) ([]models.Trip, error) {
	q := s.conn(ctx).Where("organization_id = ?", orgID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.VehicleID != "" {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.DriverID != "" {
		q = q.Where("driver_id = ?", f.DriverID)
	}
	trips := []models.Trip{}
	err := q.Order("created_at DESC").Find(&trips).Error
	return trips, gormErr(err, "trip")
}

func (s *GormStore) FindTripByID(ctx context.Context, id string) (*models.Trip, error) {
	var t models.Trip
	if err := s.findByID(ctx, &t, id, "trip"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) UpdateTrip(ctx context.Context, t *models.Trip, from []models.TripStatus, fields []string) error {
	t.UpdatedAt = time.Now().UTC()
	return updateSelected(s, ctx, t, t.OrganizationID, t.ID, from, fields, "trip")
}

func (s *GormStore) DeleteTrip(ctx context.Context, orgID, id string, from []models.TripStatus) error {
	return deleteScoped(s, ctx, &models.Trip{}, orgID, id, from, "trip")
}

// Maintenance

func (s *GormStore) InsertMaintenance(ctx context.Context, m *models.Maintenance) error {
	stampNew(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return gormErr(s.conn(ctx).Create(m).Error, "maintenance log")
}

func (s *GormStore) FindMaintenance(ctx context.Context, orgID string, f models.MaintenanceFilter) ([]models.Maintenance, error) {
	q := s.conn(ctx).Where("organization_id = ?", orgID)
	if f.VehicleID != "" {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OpenOnly {
		q = q.Where("status <> ?", models.MaintenanceCompleted)
	}
	logs := []models.Maintenance{}
	err := q.Order("created_at DESC").Find(&logs).Error
	return logs, gormErr(err, "maintenance log")
}

func (s *GormStore) FindMaintenanceByID(ctx context.Context, id string) (*models.Maintenance, error) {
	var m models.Maintenance
	if err := s.findByID(ctx, &m, id, "maintenance log"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) UpdateMaintenance(ctx context.Context, m *models.Maintenance, from []models.MaintenanceStatus, fields []string) error {
	m.UpdatedAt = time.Now().UTC()
	return updateSelected(s, ctx, m, m.OrganizationID, m.ID, from, fields, "maintenance log")
}

func (s *GormStore) DeleteMaintenance(ctx context.Context, orgID, id string) error {
	return deleteScoped[models.MaintenanceStatus](s, ctx, &models.Maintenance{}, orgID, id, nil, "maintenance log")
}

// Expenses

func (s *GormStore) InsertExpense(ctx context.Context, e *models.Expense) error {
	stampNew(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return gormErr(s.conn(ctx).Create(e).Error, "expense")
}

func (s *GormStore) FindExpenses(ctx context.Context, orgID string, f models.ExpenseFilter) ([]models.Expense, error) {
	q := s.conn(ctx).Where("organization_id = ?", orgID)
	if f.VehicleID != "" {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.TripID != "" {
		q = q.Where("trip_id = ?", f.TripID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	expenses := []models.Expense{}
	err := q.Order("created_at DESC").Find(&expenses).Error
	return expenses, gormErr(err, "expense")
}

func (s *GormStore) FindExpenseByID(ctx context.Context, id string) (*models.Expense, error) {
	var e models.Expense
	if err := s.findByID(ctx, &e, id, "expense"); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *GormStore) UpdateExpense(ctx context.Context, e *models.Expense, fields []string) error {
	e.UpdatedAt = time.Now().UTC()
	return updateSelected[models.ExpenseCategory](s, ctx, e, e.OrganizationID, e.ID, nil, fields, "expense")
}

func (s *GormStore) DeleteExpense(ctx context.Context, orgID, id string) error {
	return deleteScoped[models.ExpenseCategory](s, ctx, &models.Expense{}, orgID, id, nil, "expense")
}

var _ Store = (*GormStore)(nil)
