package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/models"
)

// City is a named trip endpoint.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

var cities = []City{
	{"London", 51.5074, -0.1278},
	{"Birmingham", 52.4862, -1.8904},
	{"Manchester", 53.4808, -2.2426},
	{"Leeds", 53.8008, -1.5491},
	{"Glasgow", 55.8642, -4.2518},
	{"Bristol", 51.4545, -2.5879},
	{"Cardiff", 51.4816, -3.1791},
	{"Liverpool", 53.4084, -2.9916},
	{"Newcastle", 54.9783, -1.6178},
	{"Southampton", 50.9097, -1.4044},
}

var vehicleClasses = []struct {
	Type     models.VehicleType
	Models   []string
	Capacity float64
}{
	{models.VehicleTruck, []string{"Actros", "FH16", "TGX"}, 12000},
	{models.VehicleVan, []string{"Sprinter", "Transit", "Master"}, 1500},
	{models.VehicleBike, []string{"Cargo e-Bike"}, 120},
}

func haversineKm(a, b City) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Body)
}

// Client is a minimal authenticated client for the fleet API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Authenticate registers the simulator account, logging in instead when it
// already exists.
func (c *Client) Authenticate(ctx context.Context, org, email, password string) error {
	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", models.RegisterRequest{
		FullName:         "Fleet Simulator",
		Email:            email,
		Password:         password,
		OrganizationName: org,
		Role:             models.RoleDispatcher,
	}, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		err = c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &resp)
	}
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	c.Token = resp.Token
	return nil
}

// Unit is a vehicle and the driver assigned to run it.
type Unit struct {
	Vehicle models.Vehicle
	Driver  models.Driver
	City    City
}

// Simulator seeds a fleet and keeps it moving.
type Simulator struct {
	api      *Client
	rng      *rand.Rand
	mu       sync.Mutex
	tick     time.Duration
	runID    string
	shopRate float64
}

func NewSimulator(api *Client, tick time.Duration, seed int64) *Simulator {
	return &Simulator{
		api:      api,
		rng:      rand.New(rand.NewSource(seed)),
		tick:     tick,
		runID:    strconv.FormatInt(seed%100000, 10),
		shopRate: 0.1,
	}
}

func (s *Simulator) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Simulator) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Seed creates size vehicle/driver pairs.
func (s *Simulator) Seed(ctx context.Context, size int) ([]*Unit, error) {
	units := make([]*Unit, 0, size)
	for i := 0; i < size; i++ {
		class := vehicleClasses[s.intn(len(vehicleClasses))]
		home := cities[s.intn(len(cities))]

		var v models.Vehicle
		err := s.api.do(ctx, http.MethodPost, "/vehicles", models.CreateVehicleRequest{
			Name:         fmt.Sprintf("%s %d", class.Type, i+1),
			Model:        class.Models[s.intn(len(class.Models))],
			Type:         class.Type,
			LicensePlate: fmt.Sprintf("SIM-%s-%03d", s.runID, i+1),
			MaxCapacity:  class.Capacity,
			Odometer:     float64(s.intn(50000)),
			Region:       home.Name,
		}, &v)
		if err != nil {
			return units, fmt.Errorf("create vehicle: %w", err)
		}

		var d models.Driver
		err = s.api.do(ctx, http.MethodPost, "/drivers", models.CreateDriverRequest{
			Name:            fmt.Sprintf("Driver %d", i+1),
			Phone:           fmt.Sprintf("+44 7700 900%03d", i+1),
			LicenseCategory: []string{string(class.Type)},
			LicenseExpiry:   time.Now().AddDate(2, 0, 0).Format("2006-01-02"),
		}, &d)
		if err != nil {
			return units, fmt.Errorf("create driver: %w", err)
		}

		log.WithFields(log.Fields{
			"vehicle_id": v.ID,
			"driver_id":  d.ID,
			"type":       class.Type,
			"home":       home.Name,
		}).Info("Created unit")
		units = append(units, &Unit{Vehicle: v, Driver: d, City: home})
	}
	return units, nil
}

// pickDestination returns a city other than from.
func (s *Simulator) pickDestination(from City) City {
	for {
		c := cities[s.intn(len(cities))]
		if c.Name != from.Name {
			return c
		}
	}
}

// cargoFor loads between 30% and 95% of capacity.
func (s *Simulator) cargoFor(capacity float64) float64 {
	return math.Round(capacity*(0.3+0.65*s.float())*100) / 100
}

// RunTrip dispatches the unit to a new city, waits for the drive and
// completes the trip with the travelled distance added to the odometer.
func (s *Simulator) RunTrip(ctx context.Context, u *Unit) (*models.Trip, error) {
	dest := s.pickDestination(u.City)
	var trip models.Trip
	err := s.api.do(ctx, http.MethodPost, "/trips", models.CreateTripRequest{
		VehicleID:   u.Vehicle.ID,
		DriverID:    u.Driver.ID,
		Origin:      u.City.Name,
		Destination: dest.Name,
		CargoWeight: s.cargoFor(u.Vehicle.MaxCapacity),
	}, &trip)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	km := haversineKm(u.City, dest)
	log.WithFields(log.Fields{
		"trip_id":     trip.ID,
		"vehicle_id":  u.Vehicle.ID,
		"origin":      u.City.Name,
		"destination": dest.Name,
		"km":          math.Round(km),
	}).Info("Trip dispatched")

	select {
	case <-ctx.Done():
		// leave the fleet consistent
		_ = s.api.do(context.Background(), http.MethodPost, "/trips/"+trip.ID+"/cancel", nil, nil)
		return nil, ctx.Err()
	case <-time.After(s.tick):
	}

	odometer := math.Round((u.Vehicle.Odometer+km)*10) / 10
	err = s.api.do(ctx, http.MethodPost, "/trips/"+trip.ID+"/complete",
		models.CompleteTripRequest{FinalOdometer: &odometer}, &trip)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	u.Vehicle.Odometer = odometer
	u.City = dest

	fuel := math.Round(km*0.35*1.6*100) / 100
	if err := s.api.do(ctx, http.MethodPost, "/expenses", models.CreateExpenseRequest{
		TripID:      trip.ID,
		Category:    models.ExpenseFuel,
		Description: "Refuel at " + dest.Name,
		Amount:      fuel,
	}, nil); err != nil {
		log.WithError(err).WithField("trip_id", trip.ID).Warn("Failed to record fuel expense")
	}
	return &trip, nil
}

// Service sends the vehicle to the shop and brings it back.
func (s *Simulator) Service(ctx context.Context, u *Unit) error {
	var m models.Maintenance
	err := s.api.do(ctx, http.MethodPost, "/maintenance", models.CreateMaintenanceRequest{
		VehicleID:   u.Vehicle.ID,
		Type:        []string{"Oil Change", "Tire Rotation", "Brake Service"}[s.intn(3)],
		Description: "Scheduled service",
		Cost:        math.Round((80+400*s.float())*100) / 100,
		Status:      models.MaintenanceInProgress,
	}, &m)
	if err != nil {
		return fmt.Errorf("open maintenance: %w", err)
	}
	log.WithFields(log.Fields{"vehicle_id": u.Vehicle.ID, "maintenance_id": m.ID}).Info("Vehicle in shop")

	select {
	case <-ctx.Done():
	case <-time.After(s.tick):
	}
	// completed even on shutdown so the vehicle is not left in the shop
	return s.api.do(context.Background(), http.MethodPost, "/maintenance/"+m.ID+"/complete", nil, nil)
}

// Drive runs trips for one unit until ctx is cancelled.
func (s *Simulator) Drive(ctx context.Context, u *Unit) {
	for ctx.Err() == nil {
		if s.float() < s.shopRate {
			if err := s.Service(ctx, u); err != nil {
				log.WithError(err).WithField("vehicle_id", u.Vehicle.ID).Error("Maintenance failed")
			}
			continue
		}
		if _, err := s.RunTrip(ctx, u); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).WithField("vehicle_id", u.Vehicle.ID).Error("Trip failed")
			select {
			case <-ctx.Done():
			case <-time.After(s.tick):
			}
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	fleetSize := 10
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			fleetSize = n
		}
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	api := &Client{
		BaseURL: getEnv("API_BASE_URL", "http://localhost:8080/api"),
		Token:   os.Getenv("SIM_AUTH_TOKEN"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    api.BaseURL,
		"interval":   interval,
	}).Info("Starting fleet simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if api.Token == "" {
		err := api.Authenticate(ctx,
			getEnv("SIM_ORGANIZATION", "Simulated Logistics"),
			getEnv("SIM_EMAIL", "simulator@fleetflow.local"),
			getEnv("SIM_PASSWORD", "simulator-password"))
		if err != nil {
			log.WithError(err).Fatal("Could not authenticate against the API")
		}
	}

	sim := NewSimulator(api, interval, time.Now().UnixNano())
	units, err := sim.Seed(ctx, fleetSize)
	if err != nil {
		log.WithError(err).Error("Seeding stopped early")
	}
	log.WithField("units", len(units)).Info("Fleet seeded")
	if len(units) == 0 {
		log.Error("No units created. Ensure the API is reachable. Exiting.")
		return
	}

	var wg sync.WaitGroup
	for _, u := range units {
		wg.Add(1)
		go func(u *Unit) {
			defer wg.Done()
			sim.Drive(ctx, u)
		}(u)
	}
	log.Info("Trip simulation started")
	wg.Wait()
	log.Info("Simulation stopped")
}
