package models

import "time"

// EventType names a fleet state change announced to subscribers.
type EventType string

const (
	EventTripDispatched       EventType = "trip.dispatched"
	EventTripCompleted        EventType = "trip.completed"
	EventTripCancelled        EventType = "trip.cancelled"
	EventMaintenanceOpened    EventType = "maintenance.opened"
	EventMaintenanceCompleted EventType = "maintenance.completed"
)

// FleetEvent is published after a state change has been committed.
type FleetEvent struct {
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id"`
	TripID         string    `json:"trip_id,omitempty"`
	VehicleID      string    `json:"vehicle_id,omitempty"`
	DriverID       string    `json:"driver_id,omitempty"`
	MaintenanceID  string    `json:"maintenance_id,omitempty"`
	At             time.Time `json:"at"`
}
