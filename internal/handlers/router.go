package handlers

import (
	"net/http"
	"time"

	"github.com/ukydev/fleetflow/internal/auth"
	"github.com/ukydev/fleetflow/internal/fleet"
	"github.com/ukydev/fleetflow/internal/middleware"
	"github.com/ukydev/fleetflow/internal/models"
)

// RouterConfig holds what the HTTP layer needs.
type RouterConfig struct {
	Tokens         *auth.Service
	Accounts       *auth.Accounts
	Fleet          *fleet.Service
	CORSOrigins    []string
	RequestTimeout time.Duration
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// NewRouter builds the complete API handler.
func NewRouter(cfg RouterConfig) http.Handler {
	authMW := middleware.NewAuthMiddleware(cfg.Tokens)
	limiter := middleware.NewRateLimitMiddleware().RateLimit(cfg.AuthRateLimit, cfg.AuthRateWindow)
	authH := NewAuthHandler(cfg.Accounts)
	fh := NewFleetHandler(cfg.Fleet)

	mux := http.NewServeMux()
	can := func(perm string, h http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(perm)(h)
	}

	mux.HandleFunc("GET /health", Health)

	mux.Handle("POST /api/auth/register", limiter(http.HandlerFunc(authH.Register)))
	mux.Handle("POST /api/auth/login", limiter(http.HandlerFunc(authH.Login)))
	mux.HandleFunc("GET /api/auth/me", authH.GetProfile)
	mux.HandleFunc("PUT /api/auth/me", authH.UpdateProfile)
	mux.HandleFunc("POST /api/auth/password", authH.ChangePassword)

	mux.Handle("GET /api/users", can(models.PermManageUsers, authH.ListUsers))
	mux.Handle("PUT /api/users/{id}/role", can(models.PermManageUsers, authH.UpdateRole))

	mux.Handle("GET /api/vehicles", can(models.PermViewFleet, fh.ListVehicles))
	mux.Handle("GET /api/vehicles/available", can(models.PermViewFleet, fh.AvailableVehicles))
	mux.Handle("GET /api/vehicles/{id}", can(models.PermViewFleet, fh.GetVehicle))
	mux.Handle("POST /api/vehicles", can(models.PermManageVehicles, fh.CreateVehicle))
	mux.Handle("PUT /api/vehicles/{id}", can(models.PermManageVehicles, fh.UpdateVehicle))
	mux.Handle("DELETE /api/vehicles/{id}", can(models.PermManageVehicles, fh.DeleteVehicle))

	mux.Handle("GET /api/drivers", can(models.PermViewFleet, fh.ListDrivers))
	mux.Handle("GET /api/drivers/available", can(models.PermViewFleet, fh.AvailableDrivers))
	mux.Handle("GET /api/drivers/{id}", can(models.PermViewFleet, fh.GetDriver))
	mux.Handle("POST /api/drivers", can(models.PermManageDrivers, fh.CreateDriver))
	mux.Handle("PUT /api/drivers/{id}", can(models.PermManageDrivers, fh.UpdateDriver))
	mux.Handle("DELETE /api/drivers/{id}", can(models.PermManageDrivers, fh.DeleteDriver))

	mux.Handle("GET /api/trips", can(models.PermViewFleet, fh.ListTrips))
	mux.Handle("GET /api/trips/{id}", can(models.PermViewFleet, fh.GetTrip))
	mux.Handle("POST /api/trips", can(models.PermManageTrips, fh.CreateTrip))
	mux.Handle("PUT /api/trips/{id}", can(models.PermManageTrips, fh.UpdateTrip))
	mux.Handle("DELETE /api/trips/{id}", can(models.PermManageTrips, fh.DeleteTrip))
	mux.Handle("POST /api/trips/{id}/dispatch", can(models.PermManageTrips, fh.DispatchTrip))
	mux.Handle("POST /api/trips/{id}/complete", can(models.PermManageTrips, fh.CompleteTrip))
	mux.Handle("POST /api/trips/{id}/cancel", can(models.PermManageTrips, fh.CancelTrip))

	mux.Handle("GET /api/maintenance", can(models.PermViewFleet, fh.ListMaintenance))
	mux.Handle("GET /api/maintenance/{id}", can(models.PermViewFleet, fh.GetMaintenance))
	mux.Handle("POST /api/maintenance", can(models.PermManageMaintenance, fh.CreateMaintenance))
	mux.Handle("PUT /api/maintenance/{id}", can(models.PermManageMaintenance, fh.UpdateMaintenance))
	mux.Handle("DELETE /api/maintenance/{id}", can(models.PermManageMaintenance, fh.DeleteMaintenance))
	mux.Handle("POST /api/maintenance/{id}/complete", can(models.PermManageMaintenance, fh.CompleteMaintenance))

	mux.Handle("GET /api/expenses", can(models.PermViewFleet, fh.ListExpenses))
	mux.Handle("GET /api/expenses/{id}", can(models.PermViewFleet, fh.GetExpense))
	mux.Handle("POST /api/expenses", can(models.PermManageExpenses, fh.CreateExpense))
	mux.Handle("PUT /api/expenses/{id}", can(models.PermManageExpenses, fh.UpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", can(models.PermManageExpenses, fh.DeleteExpense))

	mux.Handle("GET /api/analytics/summary", can(models.PermViewAnalytics, fh.Summary))
	mux.Handle("GET /api/analytics/costs", can(models.PermViewAnalytics, fh.Costs))

	return middleware.Chain(mux,
		middleware.RequestLogger,
		middleware.CORS(cfg.CORSOrigins),
		middleware.Timeout(cfg.RequestTimeout),
		authMW.Authenticate,
	)
}

// Health reports that the process is serving.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
