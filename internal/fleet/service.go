package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/cache"
	"github.com/ukydev/fleetflow/internal/db"
	"github.com/ukydev/fleetflow/internal/events"
	"github.com/ukydev/fleetflow/internal/models"
)

// Service implements the organization-scoped fleet operations. Every method
// takes the authenticated caller and never reads or writes records of
// another organization.
type Service struct {
	store  db.Store
	cache  cache.Cache
	events events.Publisher
	now    func() time.Time
}

// NewService wires the fleet service. A nil cache or publisher disables
// that concern.
func NewService(store db.Store, c cache.Cache, pub events.Publisher) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:  store,
		cache:  c,
		events: pub,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// changed runs after a committed write: cached views of the organization are
// stale from here on.
func (s *Service) changed(ctx context.Context, orgID string, evs ...models.FleetEvent) {
	if err := s.cache.Invalidate(ctx, orgID); err != nil {
		logrus.WithError(err).WithField("organization_id", orgID).Warn("cache invalidation failed")
	}
	for _, ev := range evs {
		ev.OrganizationID = orgID
		if ev.At.IsZero() {
			ev.At = s.now()
		}
		s.events.Publish(ctx, ev)
	}
}

// owned turns a record of another organization into ErrUnauthorized.
func owned[T any](rec *T, err error, orgID string, org func(*T) string) (*T, error) {
	if err != nil {
		return nil, err
	}
	if org(rec) != orgID {
		return nil, models.ErrUnauthorized
	}
	return rec, nil
}

func (s *Service) vehicle(ctx context.Context, orgID, id string) (*models.Vehicle, error) {
	v, err := s.store.FindVehicleByID(ctx, id)
	return owned(v, err, orgID, func(v *models.Vehicle) string { return v.OrganizationID })
}

func (s *Service) driver(ctx context.Context, orgID, id string) (*models.Driver, error) {
	d, err := s.store.FindDriverByID(ctx, id)
	return owned(d, err, orgID, func(d *models.Driver) string { return d.OrganizationID })
}

func (s *Service) trip(ctx context.Context, orgID, id string) (*models.Trip, error) {
	t, err := s.store.FindTripByID(ctx, id)
	return owned(t, err, orgID, func(t *models.Trip) string { return t.OrganizationID })
}

func (s *Service) maintenanceLog(ctx context.Context, orgID, id string) (*models.Maintenance, error) {
	m, err := s.store.FindMaintenanceByID(ctx, id)
	return owned(m, err, orgID, func(m *models.Maintenance) string { return m.OrganizationID })
}

func (s *Service) expense(ctx context.Context, orgID, id string) (*models.Expense, error) {
	e, err := s.store.FindExpenseByID(ctx, id)
	return owned(e, err, orgID, func(e *models.Expense) string { return e.OrganizationID })
}

// conflict reports a lost conditional write as a state conflict.
func conflict(err error, format string, args ...interface{}) error {
	if errors.Is(err, db.ErrStatusChanged) {
		return models.Conflictf(format, args...)
	}
	return err
}

// unavailable reports a lost conditional write as a busy resource.
func unavailable(err error, format string, args ...interface{}) error {
	if errors.Is(err, db.ErrStatusChanged) {
		return models.Unavailablef(format, args...)
	}
	return err
}
