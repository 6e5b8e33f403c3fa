package models

import (
	"strings"
	"time"
)

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleAvailable VehicleStatus = "Available"
	VehicleOnTrip    VehicleStatus = "On Trip"
	VehicleInShop    VehicleStatus = "In Shop"
	VehicleRetired   VehicleStatus = "Retired"
)

// VehicleType is the class of a vehicle; driver license categories use the same tags.
type VehicleType string

const (
	VehicleTruck VehicleType = "Truck"
	VehicleVan   VehicleType = "Van"
	VehicleBike  VehicleType = "Bike"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID             string        `bson:"_id" json:"id" gorm:"primaryKey;size:24"`
	OrganizationID string        `bson:"organization_id" json:"organization_id" gorm:"index;size:24;not null"`
	Name           string        `bson:"name" json:"name"`
	Model          string        `bson:"model" json:"model"`
	Type           VehicleType   `bson:"type" json:"type" gorm:"size:16"`
	LicensePlate   string        `bson:"license_plate" json:"license_plate" gorm:"uniqueIndex;size:32;not null"`
	MaxCapacity    float64       `bson:"max_capacity" json:"max_capacity"` // kg
	Odometer       float64       `bson:"odometer" json:"odometer"`         // km
	Status         VehicleStatus `bson:"status" json:"status" gorm:"size:16;index"`
	Region         string        `bson:"region" json:"region"`
	LastService    *time.Time    `bson:"last_service,omitempty" json:"last_service,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// CreateVehicleRequest is the body of POST /api/vehicles.
type CreateVehicleRequest struct {
	Name         string        `json:"name"`
	Model        string        `json:"model"`
	Type         VehicleType   `json:"type"`
	LicensePlate string        `json:"license_plate"`
	MaxCapacity  float64       `json:"max_capacity"`
	Odometer     float64       `json:"odometer"`
	Region       string        `json:"region"`
	Status       VehicleStatus `json:"status"`
}

// VehicleUpdate is the body of PUT /api/vehicles/{id}; nil fields are left untouched.
type VehicleUpdate struct {
	Name         *string        `json:"name"`
	Model        *string        `json:"model"`
	Type         *VehicleType   `json:"type"`
	LicensePlate *string        `json:"license_plate"`
	MaxCapacity  *float64       `json:"max_capacity"`
	Odometer     *float64       `json:"odometer"`
	Region       *string        `json:"region"`
	Status       *VehicleStatus `json:"status"`
}

// VehicleFilter narrows vehicle listings. Zero values match everything.
type VehicleFilter struct {
	Status      VehicleStatus
	Type        VehicleType
	Region      string
	MinCapacity float64
}

// IsValidVehicleType reports whether t is a known vehicle type.
func IsValidVehicleType(t VehicleType) bool {
	switch t {
	case VehicleTruck, VehicleVan, VehicleBike:
		return true
	}
	return false
}

// IsValidVehicleStatus reports whether s is a known vehicle status.
func IsValidVehicleStatus(s VehicleStatus) bool {
	switch s {
	case VehicleAvailable, VehicleOnTrip, VehicleInShop, VehicleRetired:
		return true
	}
	return false
}

// Vehicle builds a vehicle record from the request, validating it.
func (r CreateVehicleRequest) Vehicle(orgID string) (*Vehicle, error) {
	v := &Vehicle{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(r.Name),
		Model:          strings.TrimSpace(r.Model),
		Type:           r.Type,
		LicensePlate:   strings.ToUpper(strings.TrimSpace(r.LicensePlate)),
		MaxCapacity:    r.MaxCapacity,
		Odometer:       r.Odometer,
		Region:         strings.TrimSpace(r.Region),
		Status:         r.Status,
	}
	if v.Status == "" {
		v.Status = VehicleAvailable
	}
	if v.Status == VehicleOnTrip {
		return nil, Invalidf("a vehicle can only go on trip through dispatch")
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks the record's own fields.
func (v *Vehicle) Validate() error {
	switch {
	case v.Name == "":
		return Invalidf("name is required")
	case v.Model == "":
		return Invalidf("model is required")
	case !IsValidVehicleType(v.Type):
		return Invalidf("type must be one of Truck, Van, Bike")
	case v.LicensePlate == "":
		return Invalidf("license_plate is required")
	case v.MaxCapacity <= 0:
		return Invalidf("max_capacity must be positive")
	case v.Odometer < 0:
		return Invalidf("odometer cannot be negative")
	case !IsValidVehicleStatus(v.Status):
		return Invalidf("unknown vehicle status %q", v.Status)
	}
	return nil
}

// Apply copies the set fields onto v.
func (u VehicleUpdate) Apply(v *Vehicle) {
	if u.Name != nil {
		v.Name = strings.TrimSpace(*u.Name)
	}
	if u.Model != nil {
		v.Model = strings.TrimSpace(*u.Model)
	}
	if u.Type != nil {
		v.Type = *u.Type
	}
	if u.LicensePlate != nil {
		v.LicensePlate = strings.ToUpper(strings.TrimSpace(*u.LicensePlate))
	}
	if u.MaxCapacity != nil {
		v.MaxCapacity = *u.MaxCapacity
	}
	if u.Odometer != nil {
		v.Odometer = *u.Odometer
	}
	if u.Region != nil {
		v.Region = strings.TrimSpace(*u.Region)
	}
	if u.Status != nil {
		v.Status = *u.Status
	}
}

// Fields returns the stored names of the set attributes. Status is excluded;
// it only moves through conditional updates.
func (u VehicleUpdate) Fields() []string {
	var f []string
	if u.Name != nil {
		f = append(f, "name")
	}
	if u.Model != nil {
		f = append(f, "model")
	}
	if u.Type != nil {
		f = append(f, "type")
	}
	if u.LicensePlate != nil {
		f = append(f, "license_plate")
	}
	if u.MaxCapacity != nil {
		f = append(f, "max_capacity")
	}
	if u.Odometer != nil {
		f = append(f, "odometer")
	}
	if u.Region != nil {
		f = append(f, "region")
	}
	return f
}

// Match reports whether v passes the filter.
func (f VehicleFilter) Match(v Vehicle) bool {
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Type != "" && v.Type != f.Type {
		return false
	}
	if f.Region != "" && v.Region != f.Region {
		return false
	}
	return v.MaxCapacity >= f.MinCapacity
}
