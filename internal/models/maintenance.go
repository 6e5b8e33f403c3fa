package models

import (
	"strings"
	"time"
)

// MaintenanceStatus is the state of a service log.
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "Scheduled"
	MaintenanceInProgress MaintenanceStatus = "In Progress"
	MaintenanceCompleted  MaintenanceStatus = "Completed"
)

// Maintenance represents a vehicle maintenance record.
type Maintenance struct {
	ID             string            `json:"id" bson:"_id" gorm:"primaryKey;size:24"`
	OrganizationID string            `json:"organization_id" bson:"organization_id" gorm:"index;size:24;not null"`
	VehicleID      string            `json:"vehicle_id" bson:"vehicle_id" gorm:"index;size:24;not null"`
	Type           string            `json:"type" bson:"type"` // "Oil Change", "Tire Rotation", "Brake Service", ...
	Description    string            `json:"description" bson:"description"`
	Cost           float64           `json:"cost" bson:"cost"`
	Date           time.Time         `json:"date" bson:"date"`
	Status         MaintenanceStatus `json:"status" bson:"status" gorm:"size:16;index"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" bson:"updated_at"`
}

// TableName keeps the relational table name aligned with the Mongo collection.
func (Maintenance) TableName() string {
	return "maintenance_logs"
}

// CreateMaintenanceRequest is the body of POST /api/maintenance.
type CreateMaintenanceRequest struct {
	VehicleID   string            `json:"vehicle_id"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Cost        float64           `json:"cost"`
	Date        string            `json:"date"`
	Status      MaintenanceStatus `json:"status"`
}

// MaintenanceUpdate edits a log; nil fields are left untouched.
type MaintenanceUpdate struct {
	Type        *string            `json:"type"`
	Description *string            `json:"description"`
	Cost        *float64           `json:"cost"`
	Date        *string            `json:"date"`
	Status      *MaintenanceStatus `json:"status"`
}

// MaintenanceFilter narrows maintenance listings.
type MaintenanceFilter struct {
	VehicleID string
	Status    MaintenanceStatus
	OpenOnly  bool
}

// IsOpen reports whether the log still keeps its vehicle in the shop.
func (m *Maintenance) IsOpen() bool {
	return m.Status != MaintenanceCompleted
}

// Maintenance builds a log from the request, validating it. A zero date means now.
func (r CreateMaintenanceRequest) Maintenance(orgID string, now time.Time) (*Maintenance, error) {
	m := &Maintenance{
		OrganizationID: orgID,
		VehicleID:      strings.TrimSpace(r.VehicleID),
		Type:           strings.TrimSpace(r.Type),
		Description:    strings.TrimSpace(r.Description),
		Cost:           r.Cost,
		Date:           now,
		Status:         r.Status,
	}
	if strings.TrimSpace(r.Date) != "" {
		d, err := ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		m.Date = d
	}
	if m.Status == "" {
		m.Status = MaintenanceScheduled
	}
	if m.Status != MaintenanceScheduled && m.Status != MaintenanceInProgress {
		return nil, Invalidf("a new maintenance log must be Scheduled or In Progress")
	}
	if m.VehicleID == "" {
		return nil, Invalidf("vehicle_id is required")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the record's own fields.
func (m *Maintenance) Validate() error {
	switch {
	case m.Type == "":
		return Invalidf("type is required")
	case m.Cost < 0:
		return Invalidf("cost cannot be negative")
	}
	switch m.Status {
	case MaintenanceScheduled, MaintenanceInProgress, MaintenanceCompleted:
		return nil
	}
	return Invalidf("unknown maintenance status %q", m.Status)
}

// Apply copies the set fields onto m. Status is handled by the service.
func (u MaintenanceUpdate) Apply(m *Maintenance) error {
	if u.Type != nil {
		m.Type = strings.TrimSpace(*u.Type)
	}
	if u.Description != nil {
		m.Description = strings.TrimSpace(*u.Description)
	}
	if u.Cost != nil {
		m.Cost = *u.Cost
	}
	if u.Date != nil {
		d, err := ParseDate(*u.Date)
		if err != nil {
			return err
		}
		m.Date = d
	}
	return nil
}

// Fields returns the stored names of the set attributes except status.
func (u MaintenanceUpdate) Fields() []string {
	var f []string
	if u.Type != nil {
		f = append(f, "type")
	}
	if u.Description != nil {
		f = append(f, "description")
	}
	if u.Cost != nil {
		f = append(f, "cost")
	}
	if u.Date != nil {
		f = append(f, "date")
	}
	return f
}

// Match reports whether m passes the filter.
func (f MaintenanceFilter) Match(m Maintenance) bool {
	if f.VehicleID != "" && m.VehicleID != f.VehicleID {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	return !f.OpenOnly || m.IsOpen()
}
