package db

import (
	"context"
	"strings"
	"time"

	"github.com/ukydev/fleetflow/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// InsertOrganization inserts a new tenant.
func (s *MongoStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = newID()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	return s.insert(ctx, s.organizations, org, "organization")
}

// FindOrganizationByID finds a tenant by its ID.
func (s *MongoStore) FindOrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := s.findOne(ctx, s.organizations, bson.M{"_id": id}, &org, "organization"); err != nil {
		return nil, err
	}
	return &org, nil
}

// FindOrganizationByName finds a tenant by its exact name.
func (s *MongoStore) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	var org models.Organization
	if err := s.findOne(ctx, s.organizations, bson.M{"name": name}, &org, "organization"); err != nil {
		return nil, err
	}
	return &org, nil
}

// InsertUser inserts a new user into the database
func (s *MongoStore) InsertUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = newID()
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	return s.insert(ctx, s.users, user, "user")
}

// FindUserByID finds a user by their ID
func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.findOne(ctx, s.users, bson.M{"_id": id}, &user, "user"); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByEmail finds a user by their email
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.findOne(ctx, s.users, bson.M{"email": strings.ToLower(email)}, &user, "user"); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUsers lists the users of one organization.
func (s *MongoStore) FindUsers(ctx context.Context, orgID string) ([]models.User, error) {
	users := []models.User{}
	if err := s.findAll(ctx, s.users, bson.M{"organization_id": orgID}, &users, "user"); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser writes the named fields of user.
func (s *MongoStore) UpdateUser(ctx context.Context, user *models.User, fields []string) error {
	user.Email = strings.ToLower(user.Email)
	filter := bson.M{"_id": user.ID, "organization_id": user.OrganizationID}
	return s.updateFields(ctx, s.users, filter, user, fields, models.NotFound("user"), "user")
}

// UpdateLastLogin updates the last login time for a user
func (s *MongoStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	update := bson.M{"$set": bson.M{"last_login": at, "updated_at": at}}
	return s.updateOne(ctx, s.users, bson.M{"_id": id}, update, models.NotFound("user"), "user")
}

// CountUsersByRole counts the organization's users holding role.
func (s *MongoStore) CountUsersByRole(ctx context.Context, orgID string, role models.Role) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.users.CountDocuments(ctx, bson.M{"organization_id": orgID, "role": role})
	return n, mongoErr(err, "user")
}
