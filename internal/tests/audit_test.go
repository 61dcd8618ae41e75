package tests_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestAuditTrail(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.30.0.0/24", Netmask: "255.255.255.0"})

	var subnetLog domain.Page[domain.AuditEntry]
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/audit?entity_type=subnet&entity_id=%d", view.SubnetID),
		nil, http.StatusOK, managerToken, &subnetLog)

	require.Len(t, subnetLog.Items, 1)
	require.Equal(t, domain.ActionCreate, subnetLog.Items[0].Action)
	require.Equal(t, managerUser.UserID, subnetLog.Items[0].UserID)
	require.Equal(t, "10.30.0.0/24", subnetLog.Items[0].NewValues["network"])

	var addr domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:   view.SubnetID,
		Preferred:  "10.30.0.7",
		Assignment: domain.Assignment{AssignedTo: "switch-7"},
	}, http.StatusOK, userToken, &addr)

	tests.Endpoint(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/release", addr.AddressID),
		domain.RequestRelease{Reason: "repurposed"}, http.StatusOK, userToken)

	var addressLog domain.Page[domain.AuditEntry]
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/audit?entity_type=address&entity_id=%d", addr.AddressID),
		nil, http.StatusOK, managerToken, &addressLog)

	// Newest first.
	require.Len(t, addressLog.Items, 2)
	require.Equal(t, domain.ActionRelease, addressLog.Items[0].Action)
	require.Equal(t, domain.ActionAllocate, addressLog.Items[1].Action)

	release := addressLog.Items[0]
	require.Equal(t, normalUser.UserID, release.UserID)
	require.Equal(t, "repurposed", release.NewValues["reason"])
	require.Equal(t, "switch-7", release.OldValues["assigned_to"])

	allocate := addressLog.Items[1]
	require.Equal(t, "available", allocate.OldValues["status"])
	require.Equal(t, "allocated", allocate.NewValues["status"])
}

func TestAuditFilters(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.30.1.0/24", Netmask: "255.255.255.0"})

	tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate",
		domain.RequestAllocate{SubnetID: view.SubnetID}, http.StatusOK, secondToken)

	var page domain.Page[domain.AuditEntry]
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/audit?user_id=%d&action=allocate", secondUser.UserID),
		nil, http.StatusOK, managerToken, &page)

	require.NotEmpty(t, page.Items)

	for _, entry := range page.Items {
		require.Equal(t, secondUser.UserID, entry.UserID)
		require.Equal(t, domain.ActionAllocate, entry.Action)
	}
}

func TestAuditPermissions(t *testing.T) {
	tests.Endpoint(t, router, http.MethodGet, "/api/audit", nil, http.StatusUnauthorized, "")
	tests.Endpoint(t, router, http.MethodGet, "/api/audit", nil, http.StatusForbidden, userToken)
	tests.Endpoint(t, router, http.MethodGet, "/api/audit", nil, http.StatusOK, adminToken)
}
