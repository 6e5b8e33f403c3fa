package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleetflow/internal/auth"
	"github.com/ukydev/fleetflow/internal/middleware"
	"github.com/ukydev/fleetflow/internal/models"
)

// MockAccountStore is a mock implementation of auth.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MockAccountStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockAccountStore) FindOrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockAccountStore) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockAccountStore) InsertUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockAccountStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountStore) FindUsers(ctx context.Context, orgID string) ([]models.User, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockAccountStore) UpdateUser(ctx context.Context, user *models.User, fields []string) error {
	args := m.Called(ctx, user, fields)
	return args.Error(0)
}

func (m *MockAccountStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockAccountStore) CountUsersByRole(ctx context.Context, orgID string, role models.Role) (int64, error) {
	args := m.Called(ctx, orgID, role)
	return args.Get(0).(int64), args.Error(1)
}

func newTestAuthHandler(t *testing.T) (*AuthHandler, *MockAccountStore, *auth.Service) {
	t.Helper()
	store := new(MockAccountStore)
	tokens := auth.NewService("handler-test-secret", time.Hour)
	return NewAuthHandler(auth.NewAccounts(store, tokens)), store, tokens
}

func jsonRequest(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(method, target, bytes.NewBuffer(body))
}

func withCaller(r *http.Request, c models.Caller) *http.Request {
	claims := &models.Claims{UserID: c.UserID, OrganizationID: c.OrganizationID, Role: c.Role}
	return r.WithContext(context.WithValue(r.Context(), middleware.UserContextKey, claims))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		handler, store, tokens := newTestAuthHandler(t)
		hash, err := tokens.HashPassword("password123")
		require.NoError(t, err)
		user := &models.User{
			ID:             "u1",
			OrganizationID: "org1",
			FullName:       "Test User",
			Email:          "test@example.com",
			PasswordHash:   hash,
			Role:           models.RoleDispatcher,
			IsActive:       true,
		}
		store.On("FindUserByEmail", mock.Anything, "test@example.com").Return(user, nil)
		store.On("UpdateLastLogin", mock.Anything, "u1", mock.AnythingOfType("time.Time")).Return(nil)
		store.On("FindOrganizationByID", mock.Anything, "org1").Return(&models.Organization{ID: "org1", Name: "Acme"}, nil)

		w := httptest.NewRecorder()
		handler.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", models.LoginRequest{
			Email: "test@example.com", Password: "password123",
		}))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp models.AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "test@example.com", resp.User.Email)
		assert.Equal(t, "Acme", resp.User.Organization)

		claims, err := tokens.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "org1", claims.OrganizationID)
		store.AssertExpectations(t)
	})

	t.Run("unknown email", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByEmail", mock.Anything, "nobody@example.com").Return(nil, models.NotFound("user"))

		w := httptest.NewRecorder()
		handler.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", models.LoginRequest{
			Email: "nobody@example.com", Password: "password123",
		}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "invalid_credentials", resp.Error)
		assert.Equal(t, "invalid email or password", resp.Message)
		store.AssertExpectations(t)
	})

	t.Run("inactive user", func(t *testing.T) {
		handler, store, tokens := newTestAuthHandler(t)
		hash, err := tokens.HashPassword("password123")
		require.NoError(t, err)
		store.On("FindUserByEmail", mock.Anything, "test@example.com").Return(&models.User{
			ID: "u1", Email: "test@example.com", PasswordHash: hash, IsActive: false,
		}, nil)

		w := httptest.NewRecorder()
		handler.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", models.LoginRequest{
			Email: "test@example.com", Password: "password123",
		}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		store.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing fields", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)

		w := httptest.NewRecorder()
		handler.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "a@b.co"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler, _, _ := newTestAuthHandler(t)

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_input", decodeError(t, w).Error)
	})

	t.Run("storage unavailable", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByEmail", mock.Anything, "test@example.com").
			Return(nil, fmt.Errorf("%w: connection reset", models.ErrTransient))

		w := httptest.NewRecorder()
		handler.Login(w, jsonRequest(t, http.MethodPost, "/api/auth/login", models.LoginRequest{
			Email: "test@example.com", Password: "password123",
		}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("creates user and organization", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByEmail", mock.Anything, "new@example.com").Return(nil, models.NotFound("user"))
		store.On("FindOrganizationByName", mock.Anything, "Acme Logistics").Return(nil, models.NotFound("organization"))
		store.On("InsertOrganization", mock.Anything, mock.AnythingOfType("*models.Organization")).
			Run(func(args mock.Arguments) { args.Get(1).(*models.Organization).ID = "org1" }).
			Return(nil)
		store.On("InsertUser", mock.Anything, mock.AnythingOfType("*models.User")).
			Run(func(args mock.Arguments) { args.Get(1).(*models.User).ID = "u1" }).
			Return(nil)

		w := httptest.NewRecorder()
		handler.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", models.RegisterRequest{
			FullName:         "New User",
			Email:            "New@Example.com",
			Password:         "password123",
			OrganizationName: "Acme Logistics",
			Role:             models.RoleManager,
		}))

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp models.AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "new@example.com", resp.User.Email)
		assert.Equal(t, "org1", resp.User.OrganizationID)
		assert.Equal(t, models.RoleManager, resp.User.Role)
		store.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByEmail", mock.Anything, "taken@example.com").Return(&models.User{ID: "u0"}, nil)

		w := httptest.NewRecorder()
		handler.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", models.RegisterRequest{
			FullName: "Dup", Email: "taken@example.com", Password: "password123", OrganizationName: "Acme",
		}))

		assert.Equal(t, http.StatusConflict, w.Code)
		store.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			req  models.RegisterRequest
		}{
			{"bad email", models.RegisterRequest{FullName: "A", Email: "nope", Password: "password123", OrganizationName: "Acme"}},
			{"short password", models.RegisterRequest{FullName: "A", Email: "a@b.co", Password: "short", OrganizationName: "Acme"}},
			{"no organization", models.RegisterRequest{FullName: "A", Email: "a@b.co", Password: "password123"}},
			{"unknown role", models.RegisterRequest{FullName: "A", Email: "a@b.co", Password: "password123", OrganizationName: "Acme", Role: "admin"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				handler, store, _ := newTestAuthHandler(t)
				w := httptest.NewRecorder()
				handler.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", tt.req))
				assert.Equal(t, http.StatusBadRequest, w.Code)
				store.AssertExpectations(t)
			})
		}
	})
}

func TestAuthHandler_Profile(t *testing.T) {
	caller := models.Caller{UserID: "u1", OrganizationID: "org1", Role: models.RoleDispatcher}

	t.Run("requires caller", func(t *testing.T) {
		handler, _, _ := newTestAuthHandler(t)
		w := httptest.NewRecorder()
		handler.GetProfile(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("returns own profile", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByID", mock.Anything, "u1").Return(&models.User{
			ID: "u1", OrganizationID: "org1", FullName: "Dana", Email: "dana@example.com", IsActive: true,
		}, nil)
		store.On("FindOrganizationByID", mock.Anything, "org1").Return(&models.Organization{ID: "org1", Name: "Acme"}, nil)

		w := httptest.NewRecorder()
		handler.GetProfile(w, withCaller(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), caller))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp models.UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Dana", resp.FullName)
		assert.Equal(t, "Acme", resp.Organization)
	})

	t.Run("update name", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByID", mock.Anything, "u1").Return(&models.User{
			ID: "u1", OrganizationID: "org1", FullName: "Dana", Email: "dana@example.com", IsActive: true,
		}, nil)
		store.On("UpdateUser", mock.Anything, mock.AnythingOfType("*models.User"), []string{"full_name"}).Return(nil)
		store.On("FindOrganizationByID", mock.Anything, "org1").Return(&models.Organization{ID: "org1", Name: "Acme"}, nil)

		w := httptest.NewRecorder()
		handler.UpdateProfile(w, withCaller(jsonRequest(t, http.MethodPut, "/api/auth/me",
			models.ProfileUpdateRequest{FullName: "Dana Scully"}), caller))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Dana Scully")
		store.AssertExpectations(t)
	})

	t.Run("change password with wrong current", func(t *testing.T) {
		handler, store, tokens := newTestAuthHandler(t)
		hash, err := tokens.HashPassword("password123")
		require.NoError(t, err)
		store.On("FindUserByID", mock.Anything, "u1").Return(&models.User{
			ID: "u1", OrganizationID: "org1", PasswordHash: hash, IsActive: true,
		}, nil)

		w := httptest.NewRecorder()
		handler.ChangePassword(w, withCaller(jsonRequest(t, http.MethodPost, "/api/auth/password",
			models.PasswordChangeRequest{CurrentPassword: "wrong-password", NewPassword: "newpassword1"}), caller))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_UpdateRole(t *testing.T) {
	manager := models.Caller{UserID: "m1", OrganizationID: "org1", Role: models.RoleManager}

	newRequest := func(t *testing.T, id string, role models.Role, c models.Caller) *http.Request {
		r := jsonRequest(t, http.MethodPut, "/api/users/"+id+"/role", models.RoleUpdateRequest{Role: role})
		r.SetPathValue("id", id)
		return withCaller(r, c)
	}

	t.Run("promotes user", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByID", mock.Anything, "u2").Return(&models.User{
			ID: "u2", OrganizationID: "org1", Role: models.RoleAnalyst, IsActive: true,
		}, nil)
		store.On("UpdateUser", mock.Anything, mock.AnythingOfType("*models.User"), []string{"role"}).Return(nil)
		store.On("FindOrganizationByID", mock.Anything, "org1").Return(&models.Organization{ID: "org1", Name: "Acme"}, nil)

		w := httptest.NewRecorder()
		handler.UpdateRole(w, newRequest(t, "u2", models.RoleDispatcher, manager))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"role":"dispatcher"`)
	})

	t.Run("foreign user", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByID", mock.Anything, "u9").Return(&models.User{
			ID: "u9", OrganizationID: "org2", Role: models.RoleAnalyst,
		}, nil)

		w := httptest.NewRecorder()
		handler.UpdateRole(w, newRequest(t, "u9", models.RoleDispatcher, manager))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("last manager", func(t *testing.T) {
		handler, store, _ := newTestAuthHandler(t)
		store.On("FindUserByID", mock.Anything, "m1").Return(&models.User{
			ID: "m1", OrganizationID: "org1", Role: models.RoleManager,
		}, nil)
		store.On("CountUsersByRole", mock.Anything, "org1", models.RoleManager).Return(int64(1), nil)

		w := httptest.NewRecorder()
		handler.UpdateRole(w, newRequest(t, "m1", models.RoleAnalyst, manager))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("dispatcher forbidden", func(t *testing.T) {
		handler, _, _ := newTestAuthHandler(t)
		dispatcher := models.Caller{UserID: "d1", OrganizationID: "org1", Role: models.RoleDispatcher}

		w := httptest.NewRecorder()
		handler.UpdateRole(w, newRequest(t, "u2", models.RoleManager, dispatcher))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
