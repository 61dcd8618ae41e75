package domain

import "errors"

var (
	// Input validation failures. These are raised before any row is touched.
	ErrMalformedCIDR      = errors.New("malformed cidr")
	ErrInvalidNetmask     = errors.New("netmask does not match prefix")
	ErrGatewayOutOfRange  = errors.New("gateway outside subnet range")
	ErrVlanOutOfRange     = errors.New("vlan id outside 1-4094")
	ErrAddressNotInSubnet = errors.New("address does not belong to subnet")
	ErrSubnetTooLarge     = errors.New("subnet larger than /16 cannot be materialised")
	ErrRangeTooLarge      = errors.New("address range spans more than a /16")
	ErrBadRequest         = errors.New("invalid request")

	// Conflict family, surfaced as 409.
	ErrSubnetInUse         = errors.New("subnet has allocated or reserved addresses")
	ErrSubnetExhausted     = errors.New("no available address in subnet")
	ErrAddressNotAvailable = errors.New("address not available")
	ErrReservationLimit    = errors.New("reservation limit reached for subnet")
	ErrDuplicate           = errors.New("entity already exists")

	ErrNotFound         = errors.New("entity not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAuthentication   = errors.New("authentication failed")
	ErrExpired          = errors.New("expired")

	// ErrTransient marks a serialisation failure or deadlock that was retried
	// once and still failed. Callers may retry at their own discretion.
	ErrTransient = errors.New("transient conflict, retry")

	ErrInternal = errors.New("internal server error")

	ErrCreateToken         = errors.New("failed to create new auth token")
	ErrSignToken           = errors.New("failed to sign jwt token")
	ErrAuthHeader          = errors.New("failed to bind auth header")
	ErrMalformedAuthHeader = errors.New("invalid auth header format")

	ErrReadConfig   = errors.New("failed to read config file")
	ErrFormatConfig = errors.New("config file format invalid")

	ErrScanResult = errors.New("failed to scan result")
)

// OverlapError carries the set of live subnets a candidate CIDR intersects.
type OverlapError struct {
	Offenders []Subnet
}

func (e OverlapError) Error() string {
	return "subnet overlaps existing subnets"
}

func (e OverlapError) Unwrap() error {
	return ErrSubnetOverlap
}

var ErrSubnetOverlap = errors.New("subnet overlaps existing subnets")

// StatusError reports the current status of an address that rejected a
// transition, so callers can distinguish reserved from allocated.
type StatusError struct {
	Current AddressStatus
}

func (e StatusError) Error() string {
	return "address not available, current status: " + string(e.Current)
}

func (e StatusError) Unwrap() error {
	return ErrAddressNotAvailable
}
