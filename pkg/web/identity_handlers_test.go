package web_test

import (
	"net/http"
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	t.Parallel()

	app, e := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/users", web.CreateUserRequest{
		ID:        "kermit",
		FirstName: "Kermit",
		LastName:  "The Frog",
		Email:     "kermit@example.com",
		Password:  "green",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.NotContains(t, string(body), "password")

	stored, err := e.Identity().User("kermit")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotEqual(t, "green", stored.PasswordHash)

	resp, _ = doJSON(t, app, http.MethodPost, "/users", web.CreateUserRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/users", web.CreateUserRequest{ID: "not valid!"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/users/kermit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Kermit", decode[web.UserResponse](t, body).FirstName)

	resp, body = doJSON(t, app, http.MethodGet, "/users?first_name_like=Ker", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]web.UserResponse](t, body), 1)

	resp, _ = doJSON(t, app, http.MethodDelete, "/users/kermit", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/users/kermit", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGroupMembership(t *testing.T) {
	t.Parallel()

	app, e := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/users", web.CreateUserRequest{ID: "fozzie"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodPost, "/groups", web.CreateGroupRequest{ID: "sales", Name: "Sales"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, _ = doJSON(t, app, http.MethodPut, "/groups/sales/members/fozzie", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, e.Identity().IsMemberOfGroup("fozzie", "sales"))

	resp, body = doJSON(t, app, http.MethodGet, "/groups?user_member=fozzie", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	groups := decode[[]models.Group](t, body)
	require.Len(t, groups, 1)
	assert.Equal(t, "sales", groups[0].ID)

	resp, _ = doJSON(t, app, http.MethodPut, "/groups/sales/members/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/groups/sales/members/fozzie", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, e.Identity().IsMemberOfGroup("fozzie", "sales"))

	resp, _ = doJSON(t, app, http.MethodDelete, "/groups/sales", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTenantMembership(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	for _, target := range []struct {
		path string
		body any
	}{
		{"/users", web.CreateUserRequest{ID: "piggy"}},
		{"/groups", web.CreateGroupRequest{ID: "stage"}},
		{"/tenants", web.CreateTenantRequest{ID: "muppets", Name: "Muppets"}},
	} {
		resp, body := doJSON(t, app, http.MethodPost, target.path, target.body)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	}

	resp, _ := doJSON(t, app, http.MethodPut, "/tenants/muppets/users/piggy", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPut, "/tenants/muppets/groups/stage", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/tenants?user_member=piggy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Tenant](t, body), 1)

	resp, body = doJSON(t, app, http.MethodGet, "/users?member_of_tenant=muppets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]web.UserResponse](t, body), 1)

	resp, _ = doJSON(t, app, http.MethodDelete, "/tenants/muppets/users/piggy", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/tenants/muppets/groups/stage", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/tenants/muppets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Muppets", decode[models.Tenant](t, body).Name)
}
