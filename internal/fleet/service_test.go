package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleetflow/internal/db"
	"github.com/ukydev/fleetflow/internal/models"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingCache struct {
	mu          sync.Mutex
	values      map[string]map[string]interface{}
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: map[string]map[string]interface{}{}}
}

func (c *recordingCache) Get(_ context.Context, orgID, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[orgID][key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *models.FleetSummary:
		*d = v.(models.FleetSummary)
	case *[]models.VehicleCost:
		*d = v.([]models.VehicleCost)
	}
	return true, nil
}

func (c *recordingCache) Set(_ context.Context, orgID, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values[orgID] == nil {
		c.values[orgID] = map[string]interface{}{}
	}
	c.values[orgID][key] = value
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, orgID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, orgID)
	c.invalidated = append(c.invalidated, orgID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.FleetEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.FleetEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *db.MemoryStore
	cache  *recordingCache
	events *recordingPublisher
	acme   models.Caller
	globex models.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  db.NewMemoryStore(),
		cache:  newRecordingCache(),
		events: &recordingPublisher{},
		acme:   models.Caller{UserID: "u1", OrganizationID: "acme", Role: models.RoleDispatcher},
		globex: models.Caller{UserID: "u2", OrganizationID: "globex", Role: models.RoleManager},
	}
	f.svc = NewService(f.store, f.cache, f.events)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) vehicle(t *testing.T, caller models.Caller, plate string, capacity float64) *models.Vehicle {
	t.Helper()
	v, err := f.svc.CreateVehicle(context.Background(), caller, models.CreateVehicleRequest{
		Name: "Truck " + plate, Model: "FH16", Type: models.VehicleTruck, LicensePlate: plate,
		MaxCapacity: capacity, Odometer: 1000, Region: "North",
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) driver(t *testing.T, caller models.Caller, name string) *models.Driver {
	t.Helper()
	d, err := f.svc.CreateDriver(context.Background(), caller, models.CreateDriverRequest{
		Name: name, Phone: "555-0100", LicenseCategory: []string{"Truck", "Van"}, LicenseExpiry: "2027-06-30",
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) dispatch(t *testing.T, v *models.Vehicle, d *models.Driver, cargo float64) *models.Trip {
	t.Helper()
	trip, err := f.svc.CreateTrip(context.Background(), f.acme, models.CreateTripRequest{
		VehicleID: v.ID, DriverID: d.ID, Origin: "Depot", Destination: "Port", CargoWeight: cargo,
	})
	require.NoError(t, err)
	return trip
}

func (f *fixture) vehicleStatus(t *testing.T, id string) models.VehicleStatus {
	t.Helper()
	v, err := f.store.FindVehicleByID(context.Background(), id)
	require.NoError(t, err)
	return v.Status
}

func (f *fixture) driverState(t *testing.T, id string) (models.DriverStatus, int) {
	t.Helper()
	d, err := f.store.FindDriverByID(context.Background(), id)
	require.NoError(t, err)
	return d.Status, d.TripsCompleted
}

func (f *fixture) tripCount(t *testing.T) int {
	t.Helper()
	trips, err := f.store.FindTrips(context.Background(), f.acme.OrganizationID, models.TripFilter{})
	require.NoError(t, err)
	return len(trips)
}

// failingStore fails the trip insert after the status writes went through.
type failingStore struct {
	*db.MemoryStore
}

func (failingStore) InsertTrip(context.Context, *models.Trip) error {
	return errors.New("disk full")
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(db.NewMemoryStore(), nil, nil)
	assert.NotNil(t, svc.cache)
	assert.NotNil(t, svc.events)
	assert.Equal(t, time.UTC, svc.now().Location())
}

func TestOwned(t *testing.T) {
	v := &models.Vehicle{ID: "v1", OrganizationID: "acme"}
	org := func(v *models.Vehicle) string { return v.OrganizationID }

	got, err := owned(v, nil, "acme", org)
	require.NoError(t, err)
	assert.Same(t, v, got)

	_, err = owned(v, nil, "globex", org)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = owned[models.Vehicle](nil, models.NotFound("vehicle"), "acme", org)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConflictAndUnavailable(t *testing.T) {
	assert.ErrorIs(t, conflict(db.ErrStatusChanged, "x"), models.ErrConflict)
	assert.ErrorIs(t, unavailable(db.ErrStatusChanged, "x"), models.ErrResourceUnavailable)

	other := errors.New("boom")
	assert.Equal(t, other, conflict(other, "x"))
	assert.Equal(t, other, unavailable(other, "x"))
	assert.NoError(t, conflict(nil, "x"))
}
