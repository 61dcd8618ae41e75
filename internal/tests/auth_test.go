package tests_test

import (
	"net/http"
	"testing"

	"github.com/netgrid/netgrid/internal/auth"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	var resp auth.ResponseLogin
	tests.EndpointReceiver(t, router, http.MethodPost, "/auth/login", auth.RequestLogin{
		Username: normalUser.Username,
		Password: tests.TestPassword,
	}, http.StatusOK, "", &resp)

	require.NotEmpty(t, resp.Token)
	require.Equal(t, normalUser.Username, resp.Username)
	require.Equal(t, "user", resp.Role)

	var profile domain.Profile
	tests.EndpointReceiver(t, router, http.MethodGet, "/api/profile", nil, http.StatusOK, resp.Token, &profile)
	require.Equal(t, normalUser.UserID, profile.UserID)
}

func TestLoginFailures(t *testing.T) {
	tests.Endpoint(t, router, http.MethodPost, "/auth/login", auth.RequestLogin{
		Username: normalUser.Username,
		Password: "wrong",
	}, http.StatusUnauthorized, "")

	tests.Endpoint(t, router, http.MethodPost, "/auth/login", auth.RequestLogin{
		Username: "nobody",
		Password: tests.TestPassword,
	}, http.StatusUnauthorized, "")

	tests.Endpoint(t, router, http.MethodPost, "/auth/login",
		auth.RequestLogin{Username: normalUser.Username}, http.StatusBadRequest, "")
}

func TestTokenRequired(t *testing.T) {
	tests.Endpoint(t, router, http.MethodGet, "/api/subnets", nil, http.StatusUnauthorized, "")
	tests.Endpoint(t, router, http.MethodGet, "/api/subnets", nil, http.StatusUnauthorized, "not-a-token")
}
