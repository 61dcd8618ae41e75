package tests_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/tests"
	"github.com/stretchr/testify/require"
)

func TestAllocatePreferred(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.0.0/24", Netmask: "255.255.255.0"})

	var addr domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:  view.SubnetID,
		Preferred: "10.20.0.50",
		Assignment: domain.Assignment{
			AssignedTo: "web-01",
			MAC:        "00:11:22:33:44:55",
			DeviceType: "server",
		},
	}, http.StatusOK, userToken, &addr)

	require.Equal(t, "10.20.0.50", addr.IP.String())
	require.Equal(t, domain.StatusAllocated, addr.Status)
	require.Equal(t, "web-01", addr.AssignedTo)
	require.Equal(t, normalUser.Username, addr.UserName)
	require.Equal(t, normalUser.UserID, addr.AllocatedBy)
	require.NotNil(t, addr.AllocatedAt)

	// Losing the race for a taken address is a conflict, not an error.
	resp := tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:  view.SubnetID,
		Preferred: "10.20.0.50",
	}, http.StatusConflict, secondToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "address_not_available", envelope.Code)
}

func TestAllocatePreferredOutsideSubnet(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.1.0/24", Netmask: "255.255.255.0"})

	for _, preferred := range []string{"10.99.0.1", "10.20.1.0", "10.20.1.255"} {
		resp := tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
			SubnetID:  view.SubnetID,
			Preferred: preferred,
		}, http.StatusBadRequest, userToken)

		var envelope tests.ErrorEnvelope
		require.NoError(t, decodeBody(resp, &envelope))
		require.Equal(t, "address_not_in_subnet", envelope.Code)
	}
}

func TestAllocateNextFreeOrder(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.2.0/29", Netmask: "255.255.255.248"})

	for index := 1; index <= 6; index++ {
		var addr domain.Address
		tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/allocate",
			domain.RequestAllocate{SubnetID: view.SubnetID}, http.StatusOK, userToken, &addr)

		require.Equal(t, fmt.Sprintf("10.20.2.%d", index), addr.IP.String())
	}

	resp := tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate",
		domain.RequestAllocate{SubnetID: view.SubnetID}, http.StatusConflict, userToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "subnet_exhausted", envelope.Code)
}

func TestReleaseOwnership(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.3.0/24", Netmask: "255.255.255.0"})

	var first domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/allocate",
		domain.RequestAllocate{SubnetID: view.SubnetID}, http.StatusOK, userToken, &first)

	// Another plain user cannot release someone else's allocation.
	tests.Endpoint(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/release", first.AddressID),
		domain.RequestRelease{Reason: "not mine"}, http.StatusForbidden, secondToken)

	// A manager can.
	var released domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/release", first.AddressID),
		domain.RequestRelease{Reason: "decommissioned"}, http.StatusOK, managerToken, &released)

	require.Equal(t, domain.StatusAvailable, released.Status)
	require.Empty(t, released.AssignedTo)
	require.Empty(t, released.UserName)
	require.Nil(t, released.AllocatedAt)

	// Releasing an address that is already available is a conflict.
	tests.Endpoint(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/release", first.AddressID),
		domain.RequestRelease{Reason: "again"}, http.StatusConflict, managerToken)
}

func TestReservationLimit(t *testing.T) {
	// A /28 holds 14 hosts, so the per user cap works out to 2.
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.4.0/28", Netmask: "255.255.255.240"})

	var page domain.Page[domain.Address]
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/addresses?subnet_id=%d", view.SubnetID), nil, http.StatusOK, managerToken, &page)
	require.Len(t, page.Items, 14)

	for index := range 2 {
		var reserved domain.Address
		tests.EndpointReceiver(t, router, http.MethodPost,
			fmt.Sprintf("/api/addresses/%d/reserve", page.Items[index].AddressID),
			domain.RequestReserve{Reason: "future growth"}, http.StatusOK, managerToken, &reserved)

		require.Equal(t, domain.StatusReserved, reserved.Status)
	}

	resp := tests.Endpoint(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/reserve", page.Items[2].AddressID),
		domain.RequestReserve{Reason: "one too many"}, http.StatusConflict, managerToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "reservation_limit", envelope.Code)
}

func TestBulkAllocateAllOrNothing(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.5.0/29", Netmask: "255.255.255.248"})

	var allocated []domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/bulk_allocate", domain.RequestBulkAllocate{
		SubnetID: view.SubnetID,
		Count:    4,
		Template: domain.Assignment{DeviceType: "container"},
	}, http.StatusOK, userToken, &allocated)

	require.Len(t, allocated, 4)

	for index, addr := range allocated {
		require.Equal(t, fmt.Sprintf("10.20.5.%d", index+1), addr.IP.String())
		require.Equal(t, "container", addr.DeviceType)
	}

	// Only 2 remain, asking for 3 must not allocate anything.
	resp := tests.Endpoint(t, router, http.MethodPost, "/api/addresses/bulk_allocate", domain.RequestBulkAllocate{
		SubnetID: view.SubnetID,
		Count:    3,
	}, http.StatusConflict, userToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "subnet_exhausted", envelope.Code)

	var detail domain.SubnetView
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/subnets/%d", view.SubnetID), nil, http.StatusOK, userToken, &detail)
	require.Equal(t, int64(2), detail.Counts.Available)
	require.Equal(t, int64(4), detail.Counts.Allocated)
}

func TestBulkReserveRelease(t *testing.T) {
	createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.6.0/24", Netmask: "255.255.255.0"})

	var result domain.BulkOpResult
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/bulk", domain.RequestBulkOp{
		Operation: "reserve",
		Addresses: []string{"10.20.6.10", "10.20.6.11", "10.99.99.99"},
		Reason:    "maintenance window",
	}, http.StatusOK, managerToken, &result)

	require.ElementsMatch(t, []string{"10.20.6.10", "10.20.6.11"}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "10.99.99.99", result.Failed[0].IP)

	// Partial failure leaves the successful reservations in place.
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/bulk", domain.RequestBulkOp{
		Operation: "release",
		Addresses: []string{"10.20.6.10", "10.20.6.11", "10.20.6.12"},
		Reason:    "window closed",
	}, http.StatusOK, managerToken, &result)

	require.ElementsMatch(t, []string{"10.20.6.10", "10.20.6.11"}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "10.20.6.12", result.Failed[0].IP)
}

func TestRangeStatus(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.7.0/24", Netmask: "255.255.255.0"})

	tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:  view.SubnetID,
		Preferred: "10.20.7.2",
		Assignment: domain.Assignment{AssignedTo: "printer"},
	}, http.StatusOK, userToken)

	var statuses []domain.RangeStatus
	tests.EndpointReceiver(t, router, http.MethodGet,
		"/api/addresses/range?start=10.20.7.1&end=10.20.7.4", nil, http.StatusOK, userToken, &statuses)

	require.Len(t, statuses, 4)
	require.Equal(t, domain.StatusAvailable, statuses[0].Status)
	require.Equal(t, domain.StatusAllocated, statuses[1].Status)
	require.Equal(t, "printer", statuses[1].AssignedTo)

	// Reversed bounds are a client error.
	tests.Endpoint(t, router, http.MethodGet,
		"/api/addresses/range?start=10.20.7.4&end=10.20.7.1", nil, http.StatusBadRequest, userToken)

	// A span over 65536 addresses is refused.
	resp := tests.Endpoint(t, router, http.MethodGet,
		"/api/addresses/range?start=10.0.0.0&end=10.2.0.0", nil, http.StatusBadRequest, userToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "range_too_large", envelope.Code)
}

func TestConflictLifecycle(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.8.0/24", Netmask: "255.255.255.0"})

	var addr domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:  view.SubnetID,
		Preferred: "10.20.8.5",
	}, http.StatusOK, userToken, &addr)

	var conflicted domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/conflict", addr.AddressID),
		domain.RequestConflict{Evidence: "arp mismatch on switch 3"}, http.StatusOK, managerToken, &conflicted)

	require.Equal(t, domain.StatusConflict, conflicted.Status)

	// The owner cannot release a conflicted address, only resolve clears it.
	resp := tests.Endpoint(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/release", addr.AddressID),
		domain.RequestRelease{Reason: "done with it"}, http.StatusConflict, userToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "address_not_available", envelope.Code)

	var resolved domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/conflict/resolve", addr.AddressID),
		nil, http.StatusOK, managerToken, &resolved)

	require.Equal(t, domain.StatusAvailable, resolved.Status)
}

func TestDetectConflicts(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.20.9.0/24", Netmask: "255.255.255.0"})

	for _, preferred := range []string{"10.20.9.1", "10.20.9.2"} {
		tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
			SubnetID:   view.SubnetID,
			Preferred:  preferred,
			Assignment: domain.Assignment{MAC: "aa:bb:cc:dd:ee:ff"},
		}, http.StatusOK, userToken)
	}

	tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:   view.SubnetID,
		Preferred:  "10.20.9.3",
		Assignment: domain.Assignment{MAC: "11:22:33:44:55:66"},
	}, http.StatusOK, userToken)

	tests.Endpoint(t, router, http.MethodPost,
		fmt.Sprintf("/api/subnets/%d/detect_conflicts", view.SubnetID), nil, http.StatusForbidden, managerToken)

	var marked []domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost,
		fmt.Sprintf("/api/subnets/%d/detect_conflicts", view.SubnetID), nil, http.StatusOK, adminToken, &marked)

	require.Len(t, marked, 2)

	for _, addr := range marked {
		require.Equal(t, domain.StatusConflict, addr.Status)
		require.Equal(t, "aa:bb:cc:dd:ee:ff", addr.MAC)
	}
}

func TestAddressSearch(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.21.0.0/16", Netmask: "255.255.0.0"})

	tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:   view.SubnetID,
		Preferred:  "10.21.1.10",
		Assignment: domain.Assignment{AssignedTo: "db-primary", Description: "postgres main"},
	}, http.StatusOK, userToken)

	tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:   view.SubnetID,
		Preferred:  "10.21.2.10",
		Assignment: domain.Assignment{AssignedTo: "db-replica"},
	}, http.StatusOK, userToken)

	// Exact match.
	var page domain.Page[domain.Address]
	tests.EndpointReceiver(t, router, http.MethodGet,
		"/api/addresses?query=10.21.1.10", nil, http.StatusOK, userToken, &page)
	require.Len(t, page.Items, 1)
	require.Equal(t, "db-primary", page.Items[0].AssignedTo)

	// Partial dotted quad expands to the enclosing prefix.
	tests.EndpointReceiver(t, router, http.MethodGet,
		"/api/addresses?query=10.21.2&status=allocated", nil, http.StatusOK, userToken, &page)
	require.Len(t, page.Items, 1)
	require.Equal(t, "db-replica", page.Items[0].AssignedTo)

	// Free text search over assignment fields.
	tests.EndpointReceiver(t, router, http.MethodGet,
		"/api/addresses?query=db-", nil, http.StatusOK, userToken, &page)
	require.Len(t, page.Items, 2)
	require.Equal(t, "10.21.1.10", page.Items[0].IP.String())

	// A trailing dot is not a dotted quad so it substring matches the ip
	// column itself.
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/addresses?query=10.21.1.&status=allocated&subnet_id=%d", view.SubnetID),
		nil, http.StatusOK, userToken, &page)
	require.Len(t, page.Items, 1)
	require.Equal(t, "db-primary", page.Items[0].AssignedTo)

	// An exact assignee hit outranks a substring hit with a lower ip.
	tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:   view.SubnetID,
		Preferred:  "10.21.3.5",
		Assignment: domain.Assignment{AssignedTo: "web-02"},
	}, http.StatusOK, userToken)

	tests.Endpoint(t, router, http.MethodPost, "/api/addresses/allocate", domain.RequestAllocate{
		SubnetID:   view.SubnetID,
		Preferred:  "10.21.3.6",
		Assignment: domain.Assignment{AssignedTo: "web"},
	}, http.StatusOK, userToken)

	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/addresses?query=web&subnet_id=%d", view.SubnetID),
		nil, http.StatusOK, userToken, &page)
	require.Len(t, page.Items, 2)
	require.Equal(t, "web", page.Items[0].AssignedTo)
	require.Equal(t, "web-02", page.Items[1].AssignedTo)
}

func TestAddressDetail(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.22.0.0/24", Netmask: "255.255.255.0"})

	var addr domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/allocate",
		domain.RequestAllocate{SubnetID: view.SubnetID}, http.StatusOK, userToken, &addr)

	var fetched domain.Address
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/addresses/%d", addr.AddressID), nil, http.StatusOK, userToken, &fetched)

	require.Equal(t, addr.AddressID, fetched.AddressID)
	require.Equal(t, addr.IP, fetched.IP)

	tests.Endpoint(t, router, http.MethodGet, "/api/addresses/999999", nil, http.StatusNotFound, userToken)
}
