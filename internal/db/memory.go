package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/fleetflow/internal/models"
)

type memoryState struct {
	organizations map[string]models.Organization
	users         map[string]models.User
	vehicles      map[string]models.Vehicle
	drivers       map[string]models.Driver
	trips         map[string]models.Trip
	maintenance   map[string]models.Maintenance
	expenses      map[string]models.Expense
}

func newMemoryState() memoryState {
	return memoryState{
		organizations: map[string]models.Organization{},
		users:         map[string]models.User{},
		vehicles:      map[string]models.Vehicle{},
		drivers:       map[string]models.Driver{},
		trips:         map[string]models.Trip{},
		maintenance:   map[string]models.Maintenance{},
		expenses:      map[string]models.Expense{},
	}
}

func (st memoryState) clone() memoryState {
	c := newMemoryState()
	for k, v := range st.organizations {
		c.organizations[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range st.drivers {
		c.drivers[k] = cloneDriver(v)
	}
	for k, v := range st.trips {
		c.trips[k] = v
	}
	for k, v := range st.maintenance {
		c.maintenance[k] = v
	}
	for k, v := range st.expenses {
		c.expenses[k] = v
	}
	return c
}

func cloneDriver(d models.Driver) models.Driver {
	if d.LicenseCategory != nil {
		d.LicenseCategory = append([]string(nil), d.LicenseCategory...)
	}
	return d
}

type memTxKey struct{}

// MemoryStore is an in-process Store. Transactions hold the store lock for
// their whole duration and restore a snapshot when fn fails.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
	now   func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState(), now: func() time.Time { return time.Now().UTC() }}
}

// WithTransaction runs fn atomically with respect to other store calls.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error { return nil }

// run executes fn with the state lock held, unless ctx already belongs to a
// transaction that holds it.
func (s *MemoryStore) run(ctx context.Context, fn func(st *memoryState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ctx.Value(memTxKey{}) == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.state)
}

func statusIn[S ~string](s S, from []S) bool {
	if len(from) == 0 {
		return true
	}
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

// missing returns the error for a scoped record that failed to match.
func missing[S ~string](exists bool, from []S, entity string) error {
	if exists && len(from) > 0 {
		return ErrStatusChanged
	}
	return models.NotFound(entity)
}

func newest[T any](items []T, created func(T) time.Time) []T {
	sort.SliceStable(items, func(i, j int) bool { return created(items[i]).After(created(items[j])) })
	return items
}

// Organizations

func (s *MemoryStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	return s.run(ctx, func(st *memoryState) error {
		for _, o := range st.organizations {
			if o.Name == org.Name {
				return models.Conflictf("organization already exists")
			}
		}
		if org.ID == "" {
			org.ID = newID()
		}
		if org.CreatedAt.IsZero() {
			org.CreatedAt = s.now()
		}
		st.organizations[org.ID] = *org
		return nil
	})
}

func (s *MemoryStore) FindOrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	var out *models.Organization
	err := s.run(ctx, func(st *memoryState) error {
		o, ok := st.organizations[id]
		if !ok {
			return models.NotFound("organization")
		}
		out = &o
		return nil
	})
	return out, err
}

func (s *MemoryStore) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	var out *models.Organization
	err := s.run(ctx, func(st *memoryState) error {
		for _, o := range st.organizations {
			if o.Name == name {
				o := o
				out = &o
				return nil
			}
		}
		return models.NotFound("organization")
	})
	return out, err
}

// Users

func (s *MemoryStore) InsertUser(ctx context.Context, user *models.User) error {
	return s.run(ctx, func(st *memoryState) error {
		user.Email = strings.ToLower(user.Email)
		for _, u := range st.users {
			if u.Email == user.Email {
				return models.Conflictf("user already exists")
			}
		}
		now := s.now()
		if user.ID == "" {
			user.ID = newID()
		}
		user.CreatedAt, user.UpdatedAt, user.IsActive = now, now, true
		st.users[user.ID] = *user
		return nil
	})
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var out *models.User
	err := s.run(ctx, func(st *memoryState) error {
		u, ok := st.users[id]
		if !ok {
			return models.NotFound("user")
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(email)
	var out *models.User
	err := s.run(ctx, func(st *memoryState) error {
		for _, u := range st.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return models.NotFound("user")
	})
	return out, err
}

func (s *MemoryStore) FindUsers(ctx context.Context, orgID string) ([]models.User, error) {
	out := []models.User{}
	err := s.run(ctx, func(st *memoryState) error {
		for _, u := range st.users {
			if u.OrganizationID == orgID {
				out = append(out, u)
			}
		}
		return nil
	})
	return newest(out, func(u models.User) time.Time { return u.CreatedAt }), err
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User, fields []string) error {
	return s.run(ctx, func(st *memoryState) error {
		cur, ok := st.users[user.ID]
		if !ok || cur.OrganizationID != user.OrganizationID {
			return models.NotFound("user")
		}
		email := strings.ToLower(user.Email)
		for _, f := range fields {
			switch f {
			case "full_name":
				cur.FullName = user.FullName
			case "email":
				for id, u := range st.users {
					if id != user.ID && u.Email == email {
						return models.Conflictf("user already exists")
					}
				}
				cur.Email = email
			case "password_hash":
				cur.PasswordHash = user.PasswordHash
			case "role":
				cur.Role = user.Role
			case "is_active":
				cur.IsActive = user.IsActive
			}
		}
		cur.UpdatedAt = s.now()
		st.users[user.ID] = cur
		return nil
	})
}

func (s *MemoryStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.run(ctx, func(st *memoryState) error {
		u, ok := st.users[id]
		if !ok {
			return models.NotFound("user")
		}
		u.LastLogin, u.UpdatedAt = &at, at
		st.users[id] = u
		return nil
	})
}

func (s *MemoryStore) CountUsersByRole(ctx context.Context, orgID string, role models.Role) (int64, error) {
	var n int64
	err := s.run(ctx, func(st *memoryState) error {
		for _, u := range st.users {
			if u.OrganizationID == orgID && u.Role == role {
				n++
			}
		}
		return nil
	})
	return n, err
}

// Vehicles

func (s *MemoryStore) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	return s.run(ctx, func(st *memoryState) error {
		if plateTaken(st, v.LicensePlate, "") {
			return models.Conflictf("vehicle already exists")
		}
		now := s.now()
		if v.ID == "" {
			v.ID = newID()
		}
		v.CreatedAt, v.UpdatedAt = now, now
		st.vehicles[v.ID] = *v
		return nil
	})
}

func plateTaken(st *memoryState, plate, except string) bool {
	for id, v := range st.vehicles {
		if id != except && v.LicensePlate == plate {
			return true
		}
	}
	return false
}

func (s *MemoryStore) FindVehicles(ctx context.Context, orgID string, f models.VehicleFilter) ([]models.Vehicle, error) {
	out := []models.Vehicle{}
	err := s.run(ctx, func(st *memoryState) error {
		for _, v := range st.vehicles {
			if v.OrganizationID == orgID && f.Match(v) {
				out = append(out, v)
			}
		}
		return nil
	})
	return newest(out, func(v models.Vehicle) time.Time { return v.CreatedAt }), err
}

func (s *MemoryStore) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var out *models.Vehicle
	err := s.run(ctx, func(st *memoryState) error {
		v, ok := st.vehicles[id]
		if !ok {
			return models.NotFound("vehicle")
		}
		out = &v
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpdateVehicle(ctx context.Context, v *models.Vehicle, fields []string) error {
	return s.run(ctx, func(st *memoryState) error {
		cur, ok := st.vehicles[v.ID]
		if !ok || cur.OrganizationID != v.OrganizationID {
			return models.NotFound("vehicle")
		}
		for _, f := range fields {
			switch f {
			case "name":
				cur.Name = v.Name
			case "model":
				cur.Model = v.Model
			case "type":
				cur.Type = v.Type
			case "license_plate":
				if plateTaken(st, v.LicensePlate, v.ID) {
					return models.Conflictf("vehicle already exists")
				}
				cur.LicensePlate = v.LicensePlate
			case "max_capacity":
				cur.MaxCapacity = v.MaxCapacity
			case "odometer":
				cur.Odometer = v.Odometer
			case "region":
				cur.Region = v.Region
			case "last_service":
				cur.LastService = v.LastService
			}
		}
		cur.UpdatedAt = s.now()
		st.vehicles[v.ID] = cur
		return nil
	})
}

func (s *MemoryStore) SetVehicleStatus(ctx context.Context, orgID, id string, from []models.VehicleStatus, to models.VehicleStatus) error {
	return s.run(ctx, func(st *memoryState) error {
		v, ok := st.vehicles[id]
		if !ok || v.OrganizationID != orgID || !statusIn(v.Status, from) {
			return missing(ok && v.OrganizationID == orgID, from, "vehicle")
		}
		v.Status, v.UpdatedAt = to, s.now()
		st.vehicles[id] = v
		return nil
	})
}

func (s *MemoryStore) ReleaseVehicle(ctx context.Context, orgID, id string, odometer *float64) error {
	from := []models.VehicleStatus{models.VehicleOnTrip}
	return s.run(ctx, func(st *memoryState) error {
		v, ok := st.vehicles[id]
		if !ok || v.OrganizationID != orgID || !statusIn(v.Status, from) {
			return missing(ok && v.OrganizationID == orgID, from, "vehicle")
		}
		if odometer != nil && *odometer > v.Odometer {
			v.Odometer = *odometer
		}
		v.Status, v.UpdatedAt = models.VehicleAvailable, s.now()
		st.vehicles[id] = v
		return nil
	})
}

func (s *MemoryStore) DeleteVehicle(ctx context.Context, orgID, id string, from []models.VehicleStatus) error {
	return s.run(ctx, func(st *memoryState) error {
		v, ok := st.vehicles[id]
		if !ok || v.OrganizationID != orgID || !statusIn(v.Status, from) {
			return missing(ok && v.OrganizationID == orgID, from, "vehicle")
		}
		delete(st.vehicles, id)
		return nil
	})
}

// Drivers

func (s *MemoryStore) InsertDriver(ctx context.Context, d *models.Driver) error {
	return s.run(ctx, func(st *memoryState) error {
		now := s.now()
		if d.ID == "" {
			d.ID = newID()
		}
		d.CreatedAt, d.UpdatedAt = now, now
		st.drivers[d.ID] = cloneDriver(*d)
		return nil
	})
}

func (s *MemoryStore) FindDrivers(ctx context.Context, orgID string, f models.DriverFilter) ([]models.Driver, error) {
	out := []models.Driver{}
	err := s.run(ctx, func(st *memoryState) error {
		for _, d := range st.drivers {
			if d.OrganizationID == orgID && f.Match(d) {
				out = append(out, cloneDriver(d))
			}
		}
		return nil
	})
	return newest(out, func(d models.Driver) time.Time { return d.CreatedAt }), err
}

func (s *MemoryStore) FindDriverByID(ctx context.Context, id string) (*models.Driver, error) {
	var out *models.Driver
	err := s.run(ctx, func(st *memoryState) error {
		d, ok := st.drivers[id]
		if !ok {
			return models.NotFound("driver")
		}
		d = cloneDriver(d)
		out = &d
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpdateDriver(ctx context.Context, d *models.Driver, fields []string) error {
	return s.run(ctx, func(st *memoryState) error {
		cur, ok := st.drivers[d.ID]
		if !ok || cur.OrganizationID != d.OrganizationID {
			return models.NotFound("driver")
		}
		for _, f := range fields {
			switch f {
			case "name":
				cur.Name = d.Name
			case "phone":
				cur.Phone = d.Phone
			case "license_category":
				cur.LicenseCategory = append([]string(nil), d.LicenseCategory...)
			case "license_expiry":
				cur.LicenseExpiry = d.LicenseExpiry
			case "safety_score":
				cur.SafetyScore = d.SafetyScore
			}
		}
		cur.UpdatedAt = s.now()
		st.drivers[d.ID] = cur
		return nil
	})
}

func (s *MemoryStore) SetDriverStatus(ctx context.Context, orgID, id string, from []models.DriverStatus, to models.DriverStatus) error {
	return s.run(ctx, func(st *memoryState) error {
		d, ok := st.drivers[id]
		if !ok || d.OrganizationID != orgID || !statusIn(d.Status, from) {
			return missing(ok && d.OrganizationID == orgID, from, "driver")
		}
		d.Status, d.UpdatedAt = to, s.now()
		st.drivers[id] = d
		return nil
	})
}

func (s *MemoryStore) ReleaseDriver(ctx context.Context, orgID, id string, completed bool) error {
	from := []models.DriverStatus{models.DriverOnTrip}
	return s.run(ctx, func(st *memoryState) error {
		d, ok := st.drivers[id]
		if !ok || d.OrganizationID != orgID || !statusIn(d.Status, from) {
			return missing(ok && d.OrganizationID == orgID, from, "driver")
		}
		if completed {
			d.TripsCompleted++
		}
		d.Status, d.UpdatedAt = models.DriverAvailable, s.now()
		st.drivers[id] = d
		return nil
	})
}

func (s *MemoryStore) DeleteDriver(ctx context.Context, orgID, id string, from []models.DriverStatus) error {
	return s.run(ctx, func(st *memoryState) error {
		d, ok := st.drivers[id]
		if !ok || d.OrganizationID != orgID || !statusIn(d.Status, from) {
			return missing(ok && d.OrganizationID == orgID, from, "driver")
		}
		delete(st.drivers, id)
		return nil
	})
}

// Trips

func (s *MemoryStore) InsertTrip(ctx context.Context, t *models.Trip) error {
	return s.run(ctx, func(st *memoryState) error {
		now := s.now()
		if t.ID == "" {
			t.ID = newID()
		}
		t.CreatedAt, t.UpdatedAt = now, now
		st.trips[t.ID] = *t
		return nil
	})
}

func (s *MemoryStore) FindTrips(ctx context.Context, orgID string, f models.TripFilter) ([]models.Trip, error) {
	out := []models.Trip{}
	err := s.run(ctx, func(st *memoryState) error {
		for _, t := range st.trips {
			if t.OrganizationID == orgID && f.Match(t) {
				out = append(out, t)
			}
		}
		return nil
	})
	return newest(out, func(t models.Trip) time.Time { return t.CreatedAt }), err
}

func (s *MemoryStore) FindTripByID(ctx context.Context, id string) (*models.Trip, error) {
	var out *models.Trip
	err := s.run(ctx, func(st *memoryState) error {
		t, ok := st.trips[id]
		if !ok {
			return models.NotFound("trip")
		}
		out = &t
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpdateTrip(ctx context.Context, t *models.Trip, from []models.TripStatus, fields []string) error {
	return s.run(ctx, func(st *memoryState) error {
		cur, ok := st.trips[t.ID]
		if !ok || cur.OrganizationID != t.OrganizationID || !statusIn(cur.Status, from) {
			return missing(ok && cur.OrganizationID == t.OrganizationID, from, "trip")
		}
		for _, f := range fields {
			switch f {
			case "vehicle_id":
				cur.VehicleID = t.VehicleID
			case "driver_id":
				cur.DriverID = t.DriverID
			case "origin":
				cur.Origin = t.Origin
			case "destination":
				cur.Destination = t.Destination
			case "cargo_weight":
				cur.CargoWeight = t.CargoWeight
			case "status":
				cur.Status = t.Status
			case "final_odometer":
				cur.FinalOdometer = t.FinalOdometer
			case "dispatched_at":
				cur.DispatchedAt = t.DispatchedAt
			case "completed_at":
				cur.CompletedAt = t.CompletedAt
			case "cancelled_at":
				cur.CancelledAt = t.CancelledAt
			}
		}
		cur.UpdatedAt = s.now()
		st.trips[t.ID] = cur
		return nil
	})
}

func (s *MemoryStore) DeleteTrip(ctx context.Context, orgID, id string, from []models.TripStatus) error {
	return s.run(ctx, func(st *memoryState) error {
		t, ok := st.trips[id]
		if !ok || t.OrganizationID != orgID || !statusIn(t.Status, from) {
			return missing(ok && t.OrganizationID == orgID, from, "trip")
		}
		delete(st.trips, id)
		return nil
	})
}

// Maintenance

func (s *MemoryStore) InsertMaintenance(ctx context.Context, m *models.Maintenance) error {
	return s.run(ctx, func(st *memoryState) error {
		now := s.now()
		if m.ID == "" {
			m.ID = newID()
		}
		m.CreatedAt, m.UpdatedAt = now, now
		st.maintenance[m.ID] = *m
		return nil
	})
}

func (s *MemoryStore) FindMaintenance(ctx context.Context, orgID string, f models.MaintenanceFilter) ([]models.Maintenance, error) {
	out := []models.Maintenance{}
	err := s.run(ctx, func(st *memoryState) error {
		for _, m := range st.maintenance {
			if m.OrganizationID == orgID && f.Match(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	return newest(out, func(m models.Maintenance) time.Time { return m.CreatedAt }), err
}

func (s *MemoryStore) FindMaintenanceByID(ctx context.Context, id string) (*models.Maintenance, error) {
	var out *models.Maintenance
	err := s.run(ctx, func(st *memoryState) error {
		m, ok := st.maintenance[id]
		if !ok {
			return models.NotFound("maintenance log")
		}
		out = &m
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpdateMaintenance(ctx context.Context, m *models.Maintenance, from []models.MaintenanceStatus, fields []string) error {
	return s.run(ctx, func(st *memoryState) error {
		cur, ok := st.maintenance[m.ID]
		if !ok || cur.OrganizationID != m.OrganizationID || !statusIn(cur.Status, from) {
			return missing(ok && cur.OrganizationID == m.OrganizationID, from, "maintenance log")
		}
		for _, f := range fields {
			switch f {
			case "type":
				cur.Type = m.Type
			case "description":
				cur.Description = m.Description
			case "cost":
				cur.Cost = m.Cost
			case "date":
				cur.Date = m.Date
			case "status":
				cur.Status = m.Status
			case "completed_at":
				cur.CompletedAt = m.CompletedAt
			}
		}
		cur.UpdatedAt = s.now()
		st.maintenance[m.ID] = cur
		return nil
	})
}

func (s *MemoryStore) DeleteMaintenance(ctx context.Context, orgID, id string) error {
	return s.run(ctx, func(st *memoryState) error {
		m, ok := st.maintenance[id]
		if !ok || m.OrganizationID != orgID {
			return models.NotFound("maintenance log")
		}
		delete(st.maintenance, id)
		return nil
	})
}

// Expenses

func (s *MemoryStore) InsertExpense(ctx context.Context, e *models.Expense) error {
	return s.run(ctx, func(st *memoryState) error {
		now := s.now()
		if e.ID == "" {
			e.ID = newID()
		}
		e.CreatedAt, e.UpdatedAt = now, now
		st.expenses[e.ID] = *e
		return nil
	})
}

func (s *MemoryStore) FindExpenses(ctx context.Context, orgID string, f models.ExpenseFilter) ([]models.Expense, error) {
	out := []models.Expense{}
	err := s.run(ctx, func(st *memoryState) error {
		for _, e := range st.expenses {
			if e.OrganizationID == orgID && f.Match(e) {
				out = append(out, e)
			}
		}
		return nil
	})
	return newest(out, func(e models.Expense) time.Time { return e.CreatedAt }), err
}

func (s *MemoryStore) FindExpenseByID(ctx context.Context, id string) (*models.Expense, error) {
	var out *models.Expense
	err := s.run(ctx, func(st *memoryState) error {
		e, ok := st.expenses[id]
		if !ok {
			return models.NotFound("expense")
		}
		out = &e
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpdateExpense(ctx context.Context, e *models.Expense, fields []string) error {
	return s.run(ctx, func(st *memoryState) error {
		cur, ok := st.expenses[e.ID]
		if !ok || cur.OrganizationID != e.OrganizationID {
			return models.NotFound("expense")
		}
		for _, f := range fields {
			switch f {
			case "vehicle_id":
				cur.VehicleID = e.VehicleID
			case "trip_id":
				cur.TripID = e.TripID
			case "category":
				cur.Category = e.Category
			case "description":
				cur.Description = e.Description
			case "amount":
				cur.Amount = e.Amount
			case "date":
				cur.Date = e.Date
			}
		}
		cur.UpdatedAt = s.now()
		st.expenses[e.ID] = cur
		return nil
	})
}

func (s *MemoryStore) DeleteExpense(ctx context.Context, orgID, id string) error {
	return s.run(ctx, func(st *memoryState) error {
		e, ok := st.expenses[id]
		if !ok || e.OrganizationID != orgID {
			return models.NotFound("expense")
		}
		delete(st.expenses, id)
		return nil
	})
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)
