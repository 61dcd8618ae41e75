package httphelper_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/httphelper"
	"github.com/stretchr/testify/require"
)

func TestErrorFromDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrMalformedCIDR, http.StatusBadRequest, "malformed_cidr"},
		{domain.ErrSubnetOverlap, http.StatusConflict, "subnet_overlap"},
		{domain.OverlapError{}, http.StatusConflict, "subnet_overlap"},
		{domain.StatusError{Current: domain.StatusAllocated}, http.StatusConflict, "address_not_available"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{database.ErrNoResult, http.StatusNotFound, "not_found"},
		{domain.ErrPermissionDenied, http.StatusForbidden, "forbidden"},
		{domain.ErrAuthentication, http.StatusUnauthorized, "unauthenticated"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded"},
		{database.ErrRetryable, http.StatusServiceUnavailable, "transient"},
		{errors.New("mystery"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		apiErr := httphelper.ErrorFromDomain(tc.err)
		require.Equal(t, tc.status, apiErr.Status, "error: %v", tc.err)
		require.Equal(t, tc.code, apiErr.Code, "error: %v", tc.err)
		require.False(t, apiErr.Success)
		require.NotEmpty(t, apiErr.Message)
	}
}

func TestErrorMessageUnwrapsJoin(t *testing.T) {
	t.Parallel()

	joined := errors.Join(errors.New("pq: something awful"), domain.ErrSubnetInUse)
	apiErr := httphelper.ErrorFromDomain(joined)

	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, domain.ErrSubnetInUse.Error(), apiErr.Message)
}
