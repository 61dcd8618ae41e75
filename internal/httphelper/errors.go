package httphelper

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/netmath"
)

var (
	ErrParamKeyMissing = errors.New("param key not found")
	ErrParamParse      = errors.New("failed to parse param value")
	ErrParamInvalid    = errors.New("param value invalid")
)

// APIError is the uniform error envelope returned on any failed request.
type APIError struct {
	err     error
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Success bool   `json:"success"`
}

func (e APIError) Error() string {
	if e.err == nil {
		return e.Message
	}

	return e.err.Error()
}

func (e APIError) Unwrap() error {
	return e.err
}

func NewAPIError(code int, kind string, err error) APIError {
	apiErr := APIError{err: err, Status: code, Code: kind}

	e, ok := err.(interface{ Unwrap() []error })
	if ok {
		// Error was wrapped with errors.Join(), so we want to only show the very last error, which should be one of our
		// common sentinel errors that is safe for showing and wont expose any internal details.
		wrappedErrs := e.Unwrap()
		if len(wrappedErrs) > 0 {
			apiErr.Message = wrappedErrs[len(wrappedErrs)-1].Error()
		}

		return apiErr
	}

	apiErr.Message = err.Error()

	return apiErr
}

func NewAPIErrorf(code int, kind string, err error, message string, args ...any) APIError {
	apiErr := NewAPIError(code, kind, err)
	apiErr.Message = fmt.Sprintf(message, args...)

	return apiErr
}

// statusMapping links a sentinel error to its response status and code.
type statusMapping struct {
	sentinel error
	status   int
	code     string
}

var mappings = []statusMapping{ //nolint:gochecknoglobals
	{domain.ErrMalformedCIDR, http.StatusBadRequest, "malformed_cidr"},
	{netmath.ErrMalformedCIDR, http.StatusBadRequest, "malformed_cidr"},
	{netmath.ErrNotIPv4, http.StatusBadRequest, "malformed_cidr"},
	{domain.ErrInvalidNetmask, http.StatusBadRequest, "invalid_netmask"},
	{domain.ErrGatewayOutOfRange, http.StatusBadRequest, "gateway_out_of_range"},
	{domain.ErrVlanOutOfRange, http.StatusBadRequest, "vlan_out_of_range"},
	{domain.ErrAddressNotInSubnet, http.StatusBadRequest, "address_not_in_subnet"},
	{domain.ErrSubnetTooLarge, http.StatusBadRequest, "subnet_too_large"},
	{domain.ErrRangeTooLarge, http.StatusBadRequest, "range_too_large"},
	{domain.ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{domain.ErrSubnetOverlap, http.StatusConflict, "subnet_overlap"},
	{domain.ErrSubnetInUse, http.StatusConflict, "subnet_in_use"},
	{domain.ErrSubnetExhausted, http.StatusConflict, "subnet_exhausted"},
	{domain.ErrAddressNotAvailable, http.StatusConflict, "address_not_available"},
	{domain.ErrReservationLimit, http.StatusConflict, "reservation_limit"},
	{domain.ErrDuplicate, http.StatusConflict, "duplicate"},
	{database.ErrDuplicate, http.StatusConflict, "duplicate"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{database.ErrNoResult, http.StatusNotFound, "not_found"},
	{domain.ErrPermissionDenied, http.StatusForbidden, "forbidden"},
	{permission.ErrDenied, http.StatusForbidden, "forbidden"},
	{domain.ErrAuthentication, http.StatusUnauthorized, "unauthenticated"},
	{domain.ErrExpired, http.StatusUnauthorized, "unauthenticated"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded"},
	{domain.ErrTransient, http.StatusServiceUnavailable, "transient"},
	{database.ErrRetryable, http.StatusServiceUnavailable, "transient"},
}

// ErrorFromDomain maps a sentinel error from the lower layers onto its
// response envelope. Unknown errors become an opaque 500.
func ErrorFromDomain(err error) APIError {
	for _, mapping := range mappings {
		if errors.Is(err, mapping.sentinel) {
			return NewAPIError(mapping.status, mapping.code, err)
		}
	}

	return NewAPIErrorf(http.StatusInternalServerError, "internal_error", err, "internal server error")
}

// SetError handles sending the error to the error handler middleware. You should return
// from the handler after calling this.
func SetError(ctx *gin.Context, err APIError) {
	_ = ctx.Error(err)
}

// SetDomainError maps and records a lower layer error in one step.
func SetDomainError(ctx *gin.Context, err error) {
	SetError(ctx, ErrorFromDomain(err))
}
