package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ukydev/fleetflow/internal/fleet"
	"github.com/ukydev/fleetflow/internal/models"
)

// FleetHandler exposes the fleet service over HTTP.
type FleetHandler struct {
	fleet *fleet.Service
}

// NewFleetHandler creates the fleet handler.
func NewFleetHandler(svc *fleet.Service) *FleetHandler {
	return &FleetHandler{fleet: svc}
}

// serve runs fn for the authenticated caller and writes its result.
func serve[T any](w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, c models.Caller) (T, error)) {
	c, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := fn(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

// serveBody decodes the request body into a B before calling fn.
func serveBody[B, T any](w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, c models.Caller, body B) (T, error)) {
	var body B
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	serve(w, r, status, func(ctx context.Context, c models.Caller) (T, error) {
		return fn(ctx, c, body)
	})
}

// serveDelete runs fn and answers 204 on success.
func serveDelete(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, c models.Caller, id string) error) {
	c, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := fn(r.Context(), c, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func query(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// Vehicles

func (h *FleetHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	minCap, err := queryFloat(r, "min_capacity")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := models.VehicleFilter{
		Status:      models.VehicleStatus(query(r, "status")),
		Type:        models.VehicleType(query(r, "type")),
		Region:      query(r, "region"),
		MinCapacity: minCap,
	}
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) ([]models.Vehicle, error) {
		return h.fleet.ListVehicles(ctx, c, f)
	})
}

func (h *FleetHandler) AvailableVehicles(w http.ResponseWriter, r *http.Request) {
	cargo, err := queryFloat(r, "cargo_weight")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t := models.VehicleType(query(r, "type"))
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) ([]models.Vehicle, error) {
		return h.fleet.AvailableVehicles(ctx, c, cargo, t)
	})
}

func (h *FleetHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Vehicle, error) {
		return h.fleet.GetVehicle(ctx, c, r.PathValue("id"))
	})
}

func (h *FleetHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusCreated, h.fleet.CreateVehicle)
}

func (h *FleetHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusOK, func(ctx context.Context, c models.Caller, upd models.VehicleUpdate) (*models.Vehicle, error) {
		return h.fleet.UpdateVehicle(ctx, c, r.PathValue("id"), upd)
	})
}

func (h *FleetHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	serveDelete(w, r, h.fleet.DeleteVehicle)
}

// Drivers

func (h *FleetHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	f := models.DriverFilter{Status: models.DriverStatus(query(r, "status"))}
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) ([]models.Driver, error) {
		return h.fleet.ListDrivers(ctx, c, f)
	})
}

func (h *FleetHandler) AvailableDrivers(w http.ResponseWriter, r *http.Request) {
	t := models.VehicleType(query(r, "vehicle_type"))
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) ([]models.Driver, error) {
		return h.fleet.AvailableDrivers(ctx, c, t)
	})
}

func (h *FleetHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Driver, error) {
		return h.fleet.GetDriver(ctx, c, r.PathValue("id"))
	})
}

func (h *FleetHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusCreated, h.fleet.CreateDriver)
}

func (h *FleetHandler) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusOK, func(ctx context.Context, c models.Caller, upd models.DriverUpdate) (*models.Driver, error) {
		return h.fleet.UpdateDriver(ctx, c, r.PathValue("id"), upd)
	})
}

func (h *FleetHandler) DeleteDriver(w http.ResponseWriter, r *http.Request) {
	serveDelete(w, r, h.fleet.DeleteDriver)
}

// Trips

func (h *FleetHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	f := models.TripFilter{
		Status:    models.TripStatus(query(r, "status")),
		VehicleID: query(r, "vehicle_id"),
		DriverID:  query(r, "driver_id"),
	}
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) ([]models.Trip, error) {
		return h.fleet.ListTrips(ctx, c, f)
	})
}

func (h *FleetHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Trip, error) {
		return h.fleet.GetTrip(ctx, c, r.PathValue("id"))
	})
}

func (h *FleetHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusCreated, h.fleet.CreateTrip)
}

func (h *FleetHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusOK, func(ctx context.Context, c models.Caller, upd models.TripUpdate) (*models.Trip, error) {
		return h.fleet.UpdateTrip(ctx, c, r.PathValue("id"), upd)
	})
}

func (h *FleetHandler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	serveDelete(w, r, h.fleet.DeleteTrip)
}

// DispatchTrip accepts an empty body when the draft already names its
// vehicle and driver.
func (h *FleetHandler) DispatchTrip(w http.ResponseWriter, r *http.Request) {
	var req models.DispatchTripRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Trip, error) {
		return h.fleet.DispatchTrip(ctx, c, r.PathValue("id"), req)
	})
}

func (h *FleetHandler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteTripRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Trip, error) {
		return h.fleet.CompleteTrip(ctx, c, r.PathValue("id"), req)
	})
}

func (h *FleetHandler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Trip, error) {
		return h.fleet.CancelTrip(ctx, c, r.PathValue("id"))
	})
}

// Maintenance

func (h *FleetHandler) ListMaintenance(w http.ResponseWriter, r *http.Request) {
	f := models.MaintenanceFilter{
		VehicleID: query(r, "vehicle_id"),
		Status:    models.MaintenanceStatus(query(r, "status")),
		OpenOnly:  query(r, "open") == "true",
	}
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) ([]models.Maintenance, error) {
		return h.fleet.ListMaintenance(ctx, c, f)
	})
}

func (h *FleetHandler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Maintenance, error) {
		return h.fleet.GetMaintenance(ctx, c, r.PathValue("id"))
	})
}

func (h *FleetHandler) CreateMaintenance(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusCreated, h.fleet.CreateMaintenance)
}

func (h *FleetHandler) UpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusOK, func(ctx context.Context, c models.Caller, upd models.MaintenanceUpdate) (*models.Maintenance, error) {
		return h.fleet.UpdateMaintenance(ctx, c, r.PathValue("id"), upd)
	})
}

func (h *FleetHandler) CompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Maintenance, error) {
		return h.fleet.CompleteMaintenance(ctx, c, r.PathValue("id"))
	})
}

func (h *FleetHandler) DeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	serveDelete(w, r, h.fleet.DeleteMaintenance)
}

// Expenses

func (h *FleetHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	f := models.ExpenseFilter{
		VehicleID: query(r, "vehicle_id"),
		TripID:    query(r, "trip_id"),
		Category:  models.ExpenseCategory(query(r, "category")),
	}
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) ([]models.Expense, error) {
		return h.fleet.ListExpenses(ctx, c, f)
	})
}

func (h *FleetHandler) GetExpense(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, func(ctx context.Context, c models.Caller) (*models.Expense, error) {
		return h.fleet.GetExpense(ctx, c, r.PathValue("id"))
	})
}

func (h *FleetHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusCreated, h.fleet.CreateExpense)
}

func (h *FleetHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	serveBody(w, r, http.StatusOK, func(ctx context.Context, c models.Caller, upd models.ExpenseUpdate) (*models.Expense, error) {
		return h.fleet.UpdateExpense(ctx, c, r.PathValue("id"), upd)
	})
}

func (h *FleetHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	serveDelete(w, r, h.fleet.DeleteExpense)
}

// Analytics

func (h *FleetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, h.fleet.Summary)
}

func (h *FleetHandler) Costs(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, h.fleet.Costs)
}
