package models

import (
	"time"
)

// Role represents user roles in the system
type Role string

const (
	RoleManager       Role = "manager"
	RoleDispatcher    Role = "dispatcher"
	RoleSafetyOfficer Role = "safety_officer"
	RoleAnalyst       Role = "analyst"
)

// Permission actions checked by the HTTP layer.
const (
	PermViewFleet         = "view_fleet"
	PermManageVehicles    = "manage_vehicles"
	PermManageDrivers     = "manage_drivers"
	PermManageTrips       = "manage_trips"
	PermManageMaintenance = "manage_maintenance"
	PermManageExpenses    = "manage_expenses"
	PermViewAnalytics     = "view_analytics"
	PermManageUsers       = "manage_users"
)

// Organization is the tenant boundary; every other record belongs to one.
type Organization struct {
	ID        string    `bson:"_id" json:"id" gorm:"primaryKey;size:24"`
	Name      string    `bson:"name" json:"name" gorm:"uniqueIndex;size:255;not null"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// User represents a user in the system
type User struct {
	ID             string     `bson:"_id" json:"id" gorm:"primaryKey;size:24"`
	OrganizationID string     `bson:"organization_id" json:"organization_id" gorm:"index;size:24;not null"`
	FullName       string     `bson:"full_name" json:"full_name"`
	Email          string     `bson:"email" json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string     `bson:"password_hash" json:"-"`
	Role           Role       `bson:"role" json:"role" gorm:"size:32"`
	IsActive       bool       `bson:"is_active" json:"is_active"`
	LastLogin      *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organization_name"`
	Role             Role   `json:"role"`
}

// ProfileUpdateRequest carries the editable profile fields.
type ProfileUpdateRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// PasswordChangeRequest carries a password change.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// RoleUpdateRequest changes another user's role.
type RoleUpdateRequest struct {
	Role Role `json:"role"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id"`
	Organization   string `json:"organization,omitempty"`
}

// AuthResponse represents a successful login or registration
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           Role   `json:"role"`
	Exp            int64  `json:"exp"`
}

// Caller is the authenticated principal a service call runs on behalf of.
type Caller struct {
	UserID         string
	OrganizationID string
	Role           Role
}

// Caller converts validated claims into the principal passed to services.
func (c *Claims) Caller() Caller {
	return Caller{UserID: c.UserID, OrganizationID: c.OrganizationID, Role: c.Role}
}

// Public returns the response view of the user.
func (u *User) Public(orgName string) UserResponse {
	return UserResponse{
		ID:             u.ID,
		FullName:       u.FullName,
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
		Organization:   orgName,
	}
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleManager, RoleDispatcher, RoleSafetyOfficer, RoleAnalyst:
		return true
	default:
		return false
	}
}

// HasPermission checks if a role may perform an action
func (r Role) HasPermission(action string) bool {
	switch r {
	case RoleManager:
		return true
	case RoleDispatcher:
		return action != PermManageUsers
	case RoleSafetyOfficer:
		return action == PermViewFleet || action == PermManageDrivers || action == PermViewAnalytics
	case RoleAnalyst:
		return action == PermViewFleet || action == PermManageExpenses || action == PermViewAnalytics
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	return u.Role.HasPermission(action)
}
