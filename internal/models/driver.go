package models

import (
	"strings"
	"time"
)

// DriverStatus is the duty state of a driver.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "Available"
	DriverOffDuty   DriverStatus = "Off Duty"
	DriverSuspended DriverStatus = "Suspended"
	DriverOnTrip    DriverStatus = "On Trip"

	// driverOnDuty is accepted on input as a synonym of Available.
	driverOnDuty DriverStatus = "On Duty"
)

// LicenseCategoryAll lets a driver operate every vehicle type.
const LicenseCategoryAll = "All"

// Driver represents a fleet driver.
type Driver struct {
	ID              string       `bson:"_id" json:"id" gorm:"primaryKey;size:24"`
	OrganizationID  string       `bson:"organization_id" json:"organization_id" gorm:"index;size:24;not null"`
	Name            string       `bson:"name" json:"name"`
	Phone           string       `bson:"phone" json:"phone"`
	LicenseCategory []string     `bson:"license_category" json:"license_category" gorm:"serializer:json"`
	LicenseExpiry   time.Time    `bson:"license_expiry" json:"license_expiry"`
	Status          DriverStatus `bson:"status" json:"status" gorm:"size:16;index"`
	SafetyScore     float64      `bson:"safety_score" json:"safety_score"`
	TripsCompleted  int          `bson:"trips_completed" json:"trips_completed"`
	CreatedAt       time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `bson:"updated_at" json:"updated_at"`
}

// CreateDriverRequest is the body of POST /api/drivers.
type CreateDriverRequest struct {
	Name            string       `json:"name"`
	Phone           string       `json:"phone"`
	LicenseCategory []string     `json:"license_category"`
	LicenseExpiry   string       `json:"license_expiry"`
	Status          DriverStatus `json:"status"`
	SafetyScore     *float64     `json:"safety_score"`
}

// DriverUpdate is the body of PUT /api/drivers/{id}; nil fields are left untouched.
type DriverUpdate struct {
	Name            *string       `json:"name"`
	Phone           *string       `json:"phone"`
	LicenseCategory *[]string     `json:"license_category"`
	LicenseExpiry   *string       `json:"license_expiry"`
	Status          *DriverStatus `json:"status"`
	SafetyScore     *float64      `json:"safety_score"`
}

// DriverFilter narrows driver listings.
type DriverFilter struct {
	Status DriverStatus
}

// NormalizeDriverStatus maps input aliases onto the stored status values.
func NormalizeDriverStatus(s DriverStatus) DriverStatus {
	if strings.EqualFold(string(s), string(driverOnDuty)) {
		return DriverAvailable
	}
	return s
}

// IsValidDriverStatus reports whether s is a stored driver status.
func IsValidDriverStatus(s DriverStatus) bool {
	switch s {
	case DriverAvailable, DriverOffDuty, DriverSuspended, DriverOnTrip:
		return true
	}
	return false
}

// ParseDate accepts a calendar date or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, Invalidf("date %q must be YYYY-MM-DD or RFC3339", s)
	}
	return t.UTC(), nil
}

// Driver builds a driver record from the request, validating it.
func (r CreateDriverRequest) Driver(orgID string) (*Driver, error) {
	if strings.TrimSpace(r.LicenseExpiry) == "" {
		return nil, Invalidf("license_expiry is required")
	}
	expiry, err := ParseDate(r.LicenseExpiry)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		OrganizationID:  orgID,
		Name:            strings.TrimSpace(r.Name),
		Phone:           strings.TrimSpace(r.Phone),
		LicenseCategory: cleanCategories(r.LicenseCategory),
		LicenseExpiry:   expiry,
		Status:          NormalizeDriverStatus(r.Status),
		SafetyScore:     100,
	}
	if d.Status == "" {
		d.Status = DriverAvailable
	}
	if d.Status == DriverOnTrip {
		return nil, Invalidf("a driver can only go on trip through dispatch")
	}
	if r.SafetyScore != nil {
		d.SafetyScore = *r.SafetyScore
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the record's own fields.
func (d *Driver) Validate() error {
	switch {
	case d.Name == "":
		return Invalidf("name is required")
	case d.LicenseExpiry.IsZero():
		return Invalidf("license_expiry is required")
	case d.SafetyScore < 0 || d.SafetyScore > 100:
		return Invalidf("safety_score must be between 0 and 100")
	case !IsValidDriverStatus(d.Status):
		return Invalidf("unknown driver status %q", d.Status)
	}
	return nil
}

// LicenseExpired reports whether the license is no longer valid at now.
func (d *Driver) LicenseExpired(now time.Time) bool {
	return !d.LicenseExpiry.After(now)
}

// CanOperate reports whether the license category covers the vehicle type.
// An empty category list places no restriction.
func (d *Driver) CanOperate(t VehicleType) bool {
	if len(d.LicenseCategory) == 0 {
		return true
	}
	for _, c := range d.LicenseCategory {
		if strings.EqualFold(c, LicenseCategoryAll) || strings.EqualFold(c, string(t)) {
			return true
		}
	}
	return false
}

// Apply copies the set fields onto d.
func (u DriverUpdate) Apply(d *Driver) error {
	if u.Name != nil {
		d.Name = strings.TrimSpace(*u.Name)
	}
	if u.Phone != nil {
		d.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.LicenseCategory != nil {
		d.LicenseCategory = cleanCategories(*u.LicenseCategory)
	}
	if u.LicenseExpiry != nil {
		t, err := ParseDate(*u.LicenseExpiry)
		if err != nil {
			return err
		}
		d.LicenseExpiry = t
	}
	if u.Status != nil {
		d.Status = NormalizeDriverStatus(*u.Status)
	}
	if u.SafetyScore != nil {
		d.SafetyScore = *u.SafetyScore
	}
	return nil
}

// Fields returns the stored names of the set attributes except status.
func (u DriverUpdate) Fields() []string {
	var f []string
	if u.Name != nil {
		f = append(f, "name")
	}
	if u.Phone != nil {
		f = append(f, "phone")
	}
	if u.LicenseCategory != nil {
		f = append(f, "license_category")
	}
	if u.LicenseExpiry != nil {
		f = append(f, "license_expiry")
	}
	if u.SafetyScore != nil {
		f = append(f, "safety_score")
	}
	return f
}

// Match reports whether d passes the filter.
func (f DriverFilter) Match(d Driver) bool {
	return f.Status == "" || d.Status == f.Status
}

func cleanCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
