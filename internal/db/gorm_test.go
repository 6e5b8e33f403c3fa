package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleetflow/internal/models"
	"gorm.io/gorm"
)

func TestGormErr(t *testing.T) {
	assert.NoError(t, gormErr(nil, "trip"))
	assert.ErrorIs(t, gormErr(gorm.ErrRecordNotFound, "trip"), models.ErrNotFound)
	assert.ErrorIs(t, gormErr(gorm.ErrDuplicatedKey, "trip"), models.ErrConflict)
	assert.ErrorIs(t, gormErr(context.DeadlineExceeded, "trip"), models.ErrTransient)
	other := errors.New("boom")
	assert.Equal(t, other, gormErr(other, "trip"))
}

func TestStrs(t *testing.T) {
	assert.Equal(t, []string{"Available", "In Shop"}, strs([]models.VehicleStatus{models.VehicleAvailable, models.VehicleInShop}))
}

func newPostgresStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	s, err := OpenPostgres(dsn)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	for _, table := range []string{"expenses", "maintenance_logs", "trips", "drivers", "vehicles", "users", "organizations"} {
		require.NoError(t, s.db.Exec("DELETE FROM "+table).Error)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestGormStore_DispatchRoundTrip_Integration(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	v := &models.Vehicle{OrganizationID: "org1", Name: "Van", Model: "Sprinter", Type: models.VehicleVan,
		LicensePlate: "PG-1", MaxCapacity: 800, Odometer: 10, Status: models.VehicleAvailable}
	require.NoError(t, s.InsertVehicle(ctx, v))
	d := &models.Driver{OrganizationID: "org1", Name: "Sam", LicenseCategory: []string{"Van"}, Status: models.DriverAvailable, SafetyScore: 90}
	require.NoError(t, s.InsertDriver(ctx, d))

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.SetVehicleStatus(ctx, "org1", v.ID, []models.VehicleStatus{models.VehicleAvailable}, models.VehicleOnTrip); err != nil {
			return err
		}
		return s.SetDriverStatus(ctx, "org1", d.ID, []models.DriverStatus{models.DriverAvailable}, models.DriverOnTrip)
	})
	require.NoError(t, err)

	odo := 42.0
	require.NoError(t, s.ReleaseVehicle(ctx, "org1", v.ID, &odo))
	require.NoError(t, s.ReleaseDriver(ctx, "org1", d.ID, true))
	assert.ErrorIs(t, s.ReleaseDriver(ctx, "org1", d.ID, true), ErrStatusChanged)

	gotV, err := s.FindVehicleByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, gotV.Odometer)
	gotD, err := s.FindDriverByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotD.TripsCompleted)
	assert.Equal(t, []string{"Van"}, gotD.LicenseCategory)

	dup := &models.Vehicle{OrganizationID: "org2", Name: "X", Model: "Y", Type: models.VehicleVan, LicensePlate: "PG-1", MaxCapacity: 1}
	assert.ErrorIs(t, s.InsertVehicle(ctx, dup), models.ErrConflict)
}
