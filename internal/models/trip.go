package models

import (
	"strings"
	"time"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripDraft      TripStatus = "Draft"
	TripDispatched TripStatus = "Dispatched"
	TripCompleted  TripStatus = "Completed"
	TripCancelled  TripStatus = "Cancelled"
)

// Trip represents a cargo run from origin to destination.
type Trip struct {
	ID             string     `json:"id" bson:"_id" gorm:"primaryKey;size:24"`
	OrganizationID string     `json:"organization_id" bson:"organization_id" gorm:"index;size:24;not null"`
	VehicleID      string     `json:"vehicle_id,omitempty" bson:"vehicle_id" gorm:"index;size:24"`
	DriverID       string     `json:"driver_id,omitempty" bson:"driver_id" gorm:"index;size:24"`
	Origin         string     `json:"origin" bson:"origin"`
	Destination    string     `json:"destination" bson:"destination"`
	CargoWeight    float64    `json:"cargo_weight" bson:"cargo_weight"` // kg
	Status         TripStatus `json:"status" bson:"status" gorm:"size:16;index"`
	FinalOdometer  *float64   `json:"final_odometer,omitempty" bson:"final_odometer,omitempty"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty" bson:"dispatched_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

// CreateTripRequest is the body of POST /api/trips. Status defaults to Dispatched.
type CreateTripRequest struct {
	VehicleID   string     `json:"vehicle_id"`
	DriverID    string     `json:"driver_id"`
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	CargoWeight float64    `json:"cargo_weight"`
	Status      TripStatus `json:"status"`
}

// DispatchTripRequest optionally overrides a draft's vehicle and driver.
type DispatchTripRequest struct {
	VehicleID string `json:"vehicle_id"`
	DriverID  string `json:"driver_id"`
}

// CompleteTripRequest is the body of POST /api/trips/{id}/complete.
type CompleteTripRequest struct {
	FinalOdometer *float64 `json:"final_odometer"`
}

// TripUpdate edits a draft trip; nil fields are left untouched.
type TripUpdate struct {
	VehicleID   *string  `json:"vehicle_id"`
	DriverID    *string  `json:"driver_id"`
	Origin      *string  `json:"origin"`
	Destination *string  `json:"destination"`
	CargoWeight *float64 `json:"cargo_weight"`
}

// TripFilter narrows trip listings.
type TripFilter struct {
	Status    TripStatus
	VehicleID string
	DriverID  string
}

// Trip builds a trip record from the request, validating the fields that do
// not depend on other records.
func (r CreateTripRequest) Trip(orgID string) (*Trip, error) {
	t := &Trip{
		OrganizationID: orgID,
		VehicleID:      strings.TrimSpace(r.VehicleID),
		DriverID:       strings.TrimSpace(r.DriverID),
		Origin:         strings.TrimSpace(r.Origin),
		Destination:    strings.TrimSpace(r.Destination),
		CargoWeight:    r.CargoWeight,
		Status:         r.Status,
	}
	if t.Status == "" {
		t.Status = TripDispatched
	}
	if t.Status != TripDraft && t.Status != TripDispatched {
		return nil, Invalidf("a new trip must be Draft or Dispatched")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the record's own fields.
func (t *Trip) Validate() error {
	switch {
	case t.Origin == "":
		return Invalidf("origin is required")
	case t.Destination == "":
		return Invalidf("destination is required")
	case t.CargoWeight < 0:
		return Invalidf("cargo_weight cannot be negative")
	case t.Status != TripDraft && (t.VehicleID == "" || t.DriverID == ""):
		return Invalidf("vehicle_id and driver_id are required to dispatch")
	}
	return nil
}

// Apply copies the set fields onto t.
func (u TripUpdate) Apply(t *Trip) {
	if u.VehicleID != nil {
		t.VehicleID = strings.TrimSpace(*u.VehicleID)
	}
	if u.DriverID != nil {
		t.DriverID = strings.TrimSpace(*u.DriverID)
	}
	if u.Origin != nil {
		t.Origin = strings.TrimSpace(*u.Origin)
	}
	if u.Destination != nil {
		t.Destination = strings.TrimSpace(*u.Destination)
	}
	if u.CargoWeight != nil {
		t.CargoWeight = *u.CargoWeight
	}
}

// Fields returns the stored names of the set attributes.
func (u TripUpdate) Fields() []string {
	var f []string
	if u.VehicleID != nil {
		f = append(f, "vehicle_id")
	}
	if u.DriverID != nil {
		f = append(f, "driver_id")
	}
	if u.Origin != nil {
		f = append(f, "origin")
	}
	if u.Destination != nil {
		f = append(f, "destination")
	}
	if u.CargoWeight != nil {
		f = append(f, "cargo_weight")
	}
	return f
}

// Match reports whether t passes the filter.
func (f TripFilter) Match(t Trip) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.VehicleID != "" && t.VehicleID != f.VehicleID {
		return false
	}
	return f.DriverID == "" || t.DriverID == f.DriverID
}
