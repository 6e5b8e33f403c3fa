package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/db"
	"github.com/ukydev/fleetflow/internal/models"
)

// AccountStore is the persistence needed by the account flows.
type AccountStore interface {
	db.Transactor
	db.OrganizationCollection
	db.UserCollection
}

// Accounts implements registration, login and user administration.
type Accounts struct {
	store  AccountStore
	tokens *Service
}

// NewAccounts creates the account service.
func NewAccounts(store AccountStore, tokens *Service) *Accounts {
	return &Accounts{store: store, tokens: tokens}
}

// Register creates a user, reusing the organization with the given name or
// creating it.
func (a *Accounts) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	if req.Role == "" {
		req.Role = models.RoleDispatcher
	}

	if err := a.tokens.ValidateFullName(req.FullName); err != nil {
		return nil, err
	}
	if err := a.tokens.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := a.tokens.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.OrganizationName == "" {
		return nil, models.Invalidf("organization name is required")
	}
	if !models.IsValidRole(req.Role) {
		return nil, models.Invalidf("invalid role %q", req.Role)
	}

	hash, err := a.tokens.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	var org *models.Organization
	err = a.store.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := a.store.FindUserByEmail(ctx, req.Email); err == nil {
			return models.Conflictf("email already registered")
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		var err error
		if org, err = a.findOrCreateOrganization(ctx, req.OrganizationName); err != nil {
			return err
		}
		user.OrganizationID = org.ID
		if err := a.store.InsertUser(ctx, user); err != nil {
			if errors.Is(err, models.ErrConflict) {
				return models.Conflictf("email already registered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "organization_id": org.ID}).Info("user registered")
	return a.authResponse(user, org.Name)
}

func (a *Accounts) findOrCreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	org, err := a.store.FindOrganizationByName(ctx, name)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	org = &models.Organization{Name: name}
	if err := a.store.InsertOrganization(ctx, org); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// created concurrently
			return a.store.FindOrganizationByName(ctx, name)
		}
		return nil, err
	}
	return org, nil
}

// Login checks the credentials. Unknown emails, wrong passwords and disabled
// accounts all fail with the same error.
func (a *Accounts) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := a.store.FindUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if !a.tokens.CheckPassword(req.Password, user.PasswordHash) || !user.IsActive {
		return nil, models.ErrInvalidCredentials
	}

	if err := a.store.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	}
	return a.authResponse(user, a.organizationName(ctx, user.OrganizationID))
}

// Profile returns the caller's own account.
func (a *Accounts) Profile(ctx context.Context, caller models.Caller) (*models.UserResponse, error) {
	user, err := a.callerUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	resp := user.Public(a.organizationName(ctx, user.OrganizationID))
	return &resp, nil
}

// UpdateProfile changes the caller's name and email.
func (a *Accounts) UpdateProfile(ctx context.Context, caller models.Caller, req models.ProfileUpdateRequest) (*models.UserResponse, error) {
	user, err := a.callerUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	var fields []string
	if name := strings.TrimSpace(req.FullName); name != "" {
		if err := a.tokens.ValidateFullName(name); err != nil {
			return nil, err
		}
		user.FullName = name
		fields = append(fields, "full_name")
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if err := a.tokens.ValidateEmail(email); err != nil {
			return nil, err
		}
		if _, err := a.store.FindUserByEmail(ctx, email); err == nil {
			return nil, models.Conflictf("email already registered")
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		user.Email = email
		fields = append(fields, "email")
	}
	if len(fields) > 0 {
		if err := a.store.UpdateUser(ctx, user, fields); err != nil {
			if errors.Is(err, models.ErrConflict) {
				return nil, models.Conflictf("email already registered")
			}
			return nil, err
		}
	}
	resp := user.Public(a.organizationName(ctx, user.OrganizationID))
	return &resp, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (a *Accounts) ChangePassword(ctx context.Context, caller models.Caller, req models.PasswordChangeRequest) error {
	user, err := a.callerUser(ctx, caller)
	if err != nil {
		return err
	}
	if !a.tokens.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		return models.Invalidf("current password is incorrect")
	}
	if err := a.tokens.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	hash, err := a.tokens.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return a.store.UpdateUser(ctx, user, []string{"password_hash"})
}

// ListUsers returns the users of the caller's organization.
func (a *Accounts) ListUsers(ctx context.Context, caller models.Caller) ([]models.UserResponse, error) {
	users, err := a.store.FindUsers(ctx, caller.OrganizationID)
	if err != nil {
		return nil, err
	}
	orgName := a.organizationName(ctx, caller.OrganizationID)
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public(orgName))
	}
	return out, nil
}

// UpdateRole changes another user's role. The last manager of an
// organization cannot be demoted.
func (a *Accounts) UpdateRole(ctx context.Context, caller models.Caller, userID string, role models.Role) (*models.UserResponse, error) {
	if !caller.Role.HasPermission(models.PermManageUsers) {
		return nil, models.ErrForbidden
	}
	if !models.IsValidRole(role) {
		return nil, models.Invalidf("invalid role %q", role)
	}
	var user *models.User
	err := a.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = a.store.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.OrganizationID != caller.OrganizationID {
			return models.ErrUnauthorized
		}
		if user.Role == role {
			return nil
		}
		if user.Role == models.RoleManager {
			n, err := a.store.CountUsersByRole(ctx, caller.OrganizationID, models.RoleManager)
			if err != nil {
				return err
			}
			if n <= 1 {
				return models.Conflictf("an organization needs at least one manager")
			}
		}
		user.Role = role
		return a.store.UpdateUser(ctx, user, []string{"role"})
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": role, "by": caller.UserID}).Info("user role changed")
	resp := user.Public(a.organizationName(ctx, user.OrganizationID))
	return &resp, nil
}

func (a *Accounts) callerUser(ctx context.Context, caller models.Caller) (*models.User, error) {
	user, err := a.store.FindUserByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}
	if user.OrganizationID != caller.OrganizationID || !user.IsActive {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

func (a *Accounts) organizationName(ctx context.Context, orgID string) string {
	org, err := a.store.FindOrganizationByID(ctx, orgID)
	if err != nil {
		logrus.WithError(err).WithField("organization_id", orgID).Debug("organization lookup failed")
		return ""
	}
	return org.Name
}

func (a *Accounts) authResponse(user *models.User, orgName string) (*models.AuthResponse, error) {
	token, err := a.tokens.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: user.Public(orgName)}, nil
}
