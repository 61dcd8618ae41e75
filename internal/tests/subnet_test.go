package tests_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/tests"
	"github.com/stretchr/testify/require"
)

func createSubnet(t *testing.T, req domain.RequestSubnetCreate) domain.SubnetView {
	t.Helper()

	var view domain.SubnetView
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/subnets", req, http.StatusCreated, managerToken, &view)

	return view
}

func TestSubnetCreateEnumerates(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{
		Network:     "10.10.0.0/30",
		Netmask:     "255.255.255.252",
		Description: "point to point",
	})

	require.Equal(t, "10.10.0.0/30", view.Network)
	require.Equal(t, "255.255.255.252", view.Netmask)
	require.Equal(t, int64(2), view.Counts.Total)
	require.Equal(t, int64(2), view.Counts.Available)
	require.Zero(t, view.Counts.Allocated)

	var page domain.Page[domain.Address]
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/addresses?subnet_id=%d", view.SubnetID), nil, http.StatusOK, userToken, &page)

	require.Len(t, page.Items, 2)
	require.Equal(t, "10.10.0.1", page.Items[0].IP.String())
	require.Equal(t, "10.10.0.2", page.Items[1].IP.String())

	for _, addr := range page.Items {
		require.Equal(t, domain.StatusAvailable, addr.Status)
	}
}

func TestSubnetHostEdgeSizes(t *testing.T) {
	p2p := createSubnet(t, domain.RequestSubnetCreate{Network: "10.10.1.0/31", Netmask: "255.255.255.254"})
	require.Equal(t, int64(2), p2p.Counts.Total)

	host := createSubnet(t, domain.RequestSubnetCreate{Network: "10.10.1.4/32", Netmask: "255.255.255.255"})
	require.Equal(t, int64(1), host.Counts.Total)

	var page domain.Page[domain.Address]
	tests.EndpointReceiver(t, router, http.MethodGet,
		fmt.Sprintf("/api/addresses?subnet_id=%d", p2p.SubnetID), nil, http.StatusOK, userToken, &page)
	require.Len(t, page.Items, 2)
	require.Equal(t, "10.10.1.0", page.Items[0].IP.String())
	require.Equal(t, "10.10.1.1", page.Items[1].IP.String())
}

func TestSubnetOverlapRejected(t *testing.T) {
	parent := createSubnet(t, domain.RequestSubnetCreate{Network: "10.11.0.0/24", Netmask: "255.255.255.0"})

	resp := tests.Endpoint(t, router, http.MethodPost, "/api/subnets", domain.RequestSubnetCreate{
		Network: "10.11.0.128/25",
		Netmask: "255.255.255.128",
	}, http.StatusConflict, managerToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "subnet_overlap", envelope.Code)
	require.False(t, envelope.Success)

	var validation domain.SubnetValidation
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/subnets/validate", domain.RequestSubnetValidate{
		Network: "10.11.0.128/25",
	}, http.StatusOK, userToken, &validation)

	require.False(t, validation.OK)
	require.Len(t, validation.Overlaps, 1)
	require.Equal(t, parent.SubnetID, validation.Overlaps[0].SubnetID)

	tests.EndpointReceiver(t, router, http.MethodPost, "/api/subnets/validate", domain.RequestSubnetValidate{
		Network: "10.12.0.0/24",
	}, http.StatusOK, userToken, &validation)

	require.True(t, validation.OK)
	require.Empty(t, validation.Overlaps)
}

func TestSubnetTooLargeRejected(t *testing.T) {
	resp := tests.Endpoint(t, router, http.MethodPost, "/api/subnets", domain.RequestSubnetCreate{
		Network: "10.0.0.0/9",
		Netmask: "255.128.0.0",
	}, http.StatusBadRequest, managerToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "subnet_too_large", envelope.Code)
}

func TestSubnetBadInput(t *testing.T) {
	tests.Endpoint(t, router, http.MethodPost, "/api/subnets", domain.RequestSubnetCreate{
		Network: "10.13.0.256/24",
		Netmask: "255.255.255.0",
	}, http.StatusBadRequest, managerToken)

	resp := tests.Endpoint(t, router, http.MethodPost, "/api/subnets", domain.RequestSubnetCreate{
		Network: "10.13.4.0",
		Netmask: "255.255.255.0",
	}, http.StatusBadRequest, managerToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "malformed_cidr", envelope.Code)

	tests.Endpoint(t, router, http.MethodPost, "/api/subnets", domain.RequestSubnetCreate{
		Network: "10.13.0.0/24",
		Netmask: "255.0.255.0",
	}, http.StatusBadRequest, managerToken)

	tests.Endpoint(t, router, http.MethodPost, "/api/subnets", domain.RequestSubnetCreate{
		Network: "10.13.1.0/24",
		Netmask: "255.255.255.0",
		Gateway: "10.13.2.1",
	}, http.StatusBadRequest, managerToken)

	tests.Endpoint(t, router, http.MethodPost, "/api/subnets", domain.RequestSubnetCreate{
		Network: "10.13.3.0/24",
		Netmask: "255.255.255.0",
		VlanID:  5000,
	}, http.StatusBadRequest, managerToken)
}

func TestSubnetUpdateMetadata(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{
		Network: "10.14.0.0/24", Netmask: "255.255.255.0", Description: "before",
	})

	newDesc := "after"
	newVlan := 42

	var updated domain.Subnet
	tests.EndpointReceiver(t, router, http.MethodPut,
		fmt.Sprintf("/api/subnets/%d", view.SubnetID),
		domain.RequestSubnetUpdate{Description: &newDesc, VlanID: &newVlan},
		http.StatusOK, managerToken, &updated)

	require.Equal(t, "after", updated.Description)
	require.Equal(t, 42, updated.VlanID)
	require.Equal(t, view.Network, updated.Network)
}

func TestSubnetListVlanFilter(t *testing.T) {
	createSubnet(t, domain.RequestSubnetCreate{Network: "10.15.0.0/24", Netmask: "255.255.255.0", VlanID: 1500})
	createSubnet(t, domain.RequestSubnetCreate{Network: "10.15.1.0/24", Netmask: "255.255.255.0", VlanID: 1501})

	var page domain.Page[domain.SubnetView]
	tests.EndpointReceiver(t, router, http.MethodGet, "/api/subnets?vlan_id=1500", nil, http.StatusOK, userToken, &page)

	require.Len(t, page.Items, 1)
	require.Equal(t, "10.15.0.0/24", page.Items[0].Network)
}

func TestSubnetDelete(t *testing.T) {
	view := createSubnet(t, domain.RequestSubnetCreate{Network: "10.16.0.0/29", Netmask: "255.255.255.248"})

	var allocated domain.Address
	tests.EndpointReceiver(t, router, http.MethodPost, "/api/addresses/allocate",
		domain.RequestAllocate{SubnetID: view.SubnetID}, http.StatusOK, userToken, &allocated)

	resp := tests.Endpoint(t, router, http.MethodDelete,
		fmt.Sprintf("/api/subnets/%d", view.SubnetID), nil, http.StatusConflict, adminToken)

	var envelope tests.ErrorEnvelope
	require.NoError(t, decodeBody(resp, &envelope))
	require.Equal(t, "subnet_in_use", envelope.Code)

	tests.Endpoint(t, router, http.MethodPost,
		fmt.Sprintf("/api/addresses/%d/release", allocated.AddressID),
		domain.RequestRelease{Reason: "cleanup"}, http.StatusOK, userToken)

	tests.Endpoint(t, router, http.MethodDelete,
		fmt.Sprintf("/api/subnets/%d", view.SubnetID), nil, http.StatusOK, adminToken)

	tests.Endpoint(t, router, http.MethodGet,
		fmt.Sprintf("/api/subnets/%d", view.SubnetID), nil, http.StatusNotFound, userToken)
}

func TestSubnetPermissions(t *testing.T) {
	req := domain.RequestSubnetCreate{Network: "10.17.0.0/24", Netmask: "255.255.255.0"}

	tests.Endpoint(t, router, http.MethodPost, "/api/subnets", req, http.StatusUnauthorized, "")
	tests.Endpoint(t, router, http.MethodPost, "/api/subnets", req, http.StatusForbidden, userToken)

	view := createSubnet(t, req)

	tests.Endpoint(t, router, http.MethodDelete,
		fmt.Sprintf("/api/subnets/%d", view.SubnetID), nil, http.StatusForbidden, managerToken)
	tests.Endpoint(t, router, http.MethodDelete,
		fmt.Sprintf("/api/subnets/%d", view.SubnetID), nil, http.StatusOK, adminToken)
}
