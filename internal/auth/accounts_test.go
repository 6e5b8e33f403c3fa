package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleetflow/internal/db"
	"github.com/ukydev/fleetflow/internal/models"
)

func newAccounts() (*Accounts, *db.MemoryStore) {
	store := db.NewMemoryStore()
	return NewAccounts(store, NewService("test-secret", 0)), store
}

func register(t *testing.T, a *Accounts, email, org string, role models.Role) *models.AuthResponse {
	t.Helper()
	resp, err := a.Register(context.Background(), models.RegisterRequest{
		FullName: "Test User", Email: email, Password: "password123", OrganizationName: org, Role: role,
	})
	require.NoError(t, err)
	return resp
}

func callerOf(resp *models.AuthResponse) models.Caller {
	return models.Caller{UserID: resp.User.ID, OrganizationID: resp.User.OrganizationID, Role: resp.User.Role}
}

func TestAccounts_RegisterCreatesAndReusesOrganization(t *testing.T) {
	a, _ := newAccounts()

	first := register(t, a, "a@acme.io", "Acme", models.RoleManager)
	assert.NotEmpty(t, first.Token)
	assert.Equal(t, "Acme", first.User.Organization)

	second := register(t, a, "b@acme.io", "Acme", "")
	assert.Equal(t, first.User.OrganizationID, second.User.OrganizationID)
	assert.Equal(t, models.RoleDispatcher, second.User.Role)

	other := register(t, a, "c@globex.io", "Globex", "")
	assert.NotEqual(t, first.User.OrganizationID, other.User.OrganizationID)
}

func TestAccounts_RegisterDuplicateEmail(t *testing.T) {
	a, _ := newAccounts()
	register(t, a, "a@acme.io", "Acme", "")

	_, err := a.Register(context.Background(), models.RegisterRequest{
		FullName: "Other", Email: "A@acme.io", Password: "password123", OrganizationName: "Other",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAccounts_RegisterValidation(t *testing.T) {
	a, _ := newAccounts()
	valid := models.RegisterRequest{FullName: "X", Email: "x@y.io", Password: "password123", OrganizationName: "Org"}

	cases := map[string]func(r *models.RegisterRequest){
		"no name":      func(r *models.RegisterRequest) { r.FullName = "" },
		"bad email":    func(r *models.RegisterRequest) { r.Email = "nope" },
		"short pass":   func(r *models.RegisterRequest) { r.Password = "123" },
		"no org":       func(r *models.RegisterRequest) { r.OrganizationName = " " },
		"unknown role": func(r *models.RegisterRequest) { r.Role = "admin" },
	}
	for name, mod := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid
			mod(&r)
			_, err := a.Register(context.Background(), r)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestAccounts_LoginUniformFailure(t *testing.T) {
	a, _ := newAccounts()
	register(t, a, "a@acme.io", "Acme", "")
	ctx := context.Background()

	resp, err := a.Login(ctx, models.LoginRequest{Email: "A@acme.io", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Acme", resp.User.Organization)

	_, errUnknown := a.Login(ctx, models.LoginRequest{Email: "ghost@acme.io", Password: "password123"})
	_, errWrong := a.Login(ctx, models.LoginRequest{Email: "a@acme.io", Password: "wrong-password"})
	assert.Equal(t, models.ErrInvalidCredentials, errUnknown)
	assert.Equal(t, errUnknown, errWrong)
}

func TestAccounts_LoginRecordsLastLogin(t *testing.T) {
	a, store := newAccounts()
	reg := register(t, a, "a@acme.io", "Acme", "")
	_, err := a.Login(context.Background(), models.LoginRequest{Email: "a@acme.io", Password: "password123"})
	require.NoError(t, err)

	u, err := store.FindUserByID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, u.LastLogin)
}

func TestAccounts_UpdateProfile(t *testing.T) {
	a, _ := newAccounts()
	me := register(t, a, "a@acme.io", "Acme", "")
	register(t, a, "taken@acme.io", "Acme", "")
	ctx := context.Background()

	_, err := a.UpdateProfile(ctx, callerOf(me), models.ProfileUpdateRequest{Email: "taken@acme.io"})
	assert.ErrorIs(t, err, models.ErrConflict)

	resp, err := a.UpdateProfile(ctx, callerOf(me), models.ProfileUpdateRequest{FullName: "Renamed", Email: "new@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", resp.FullName)
	assert.Equal(t, "new@acme.io", resp.Email)

	profile, err := a.Profile(ctx, callerOf(me))
	require.NoError(t, err)
	assert.Equal(t, "new@acme.io", profile.Email)
}

func TestAccounts_ChangePassword(t *testing.T) {
	a, _ := newAccounts()
	me := register(t, a, "a@acme.io", "Acme", "")
	ctx := context.Background()

	err := a.ChangePassword(ctx, callerOf(me), models.PasswordChangeRequest{CurrentPassword: "nope", NewPassword: "newpassword1"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	require.NoError(t, a.ChangePassword(ctx, callerOf(me), models.PasswordChangeRequest{CurrentPassword: "password123", NewPassword: "newpassword1"}))
	_, err = a.Login(ctx, models.LoginRequest{Email: "a@acme.io", Password: "newpassword1"})
	assert.NoError(t, err)
}

func TestAccounts_ListUsersScopedToOrganization(t *testing.T) {
	a, _ := newAccounts()
	me := register(t, a, "a@acme.io", "Acme", models.RoleManager)
	register(t, a, "b@acme.io", "Acme", "")
	register(t, a, "c@globex.io", "Globex", "")

	users, err := a.ListUsers(context.Background(), callerOf(me))
	require.NoError(t, err)
	assert.Len(t, users, 2)
	for _, u := range users {
		assert.Equal(t, me.User.OrganizationID, u.OrganizationID)
	}
}

func TestAccounts_UpdateRole(t *testing.T) {
	a, _ := newAccounts()
	ctx := context.Background()
	boss := register(t, a, "boss@acme.io", "Acme", models.RoleManager)
	clerk := register(t, a, "clerk@acme.io", "Acme", models.RoleDispatcher)
	outsider := register(t, a, "x@globex.io", "Globex", models.RoleManager)

	_, err := a.UpdateRole(ctx, callerOf(clerk), boss.User.ID, models.RoleAnalyst)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = a.UpdateRole(ctx, callerOf(outsider), clerk.User.ID, models.RoleAnalyst)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = a.UpdateRole(ctx, callerOf(boss), boss.User.ID, models.RoleAnalyst)
	assert.ErrorIs(t, err, models.ErrConflict)

	resp, err := a.UpdateRole(ctx, callerOf(boss), clerk.User.ID, models.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, resp.Role)

	_, err = a.UpdateRole(ctx, callerOf(boss), boss.User.ID, models.RoleAnalyst)
	assert.NoError(t, err)
}
