package domain

import (
	"net/netip"
	"time"
)

type AddressStatus string

const (
	StatusAvailable AddressStatus = "available"
	StatusReserved  AddressStatus = "reserved"
	StatusAllocated AddressStatus = "allocated"
	StatusConflict  AddressStatus = "conflict"
)

func (s AddressStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusAllocated, StatusConflict:
		return true
	default:
		return false
	}
}

// Address is a single IPv4 host inside a subnet. Rows are materialised when
// the subnet is created and live exactly as long as it does.
type Address struct {
	AddressID   int64         `json:"address_id"`
	SubnetID    int64         `json:"subnet_id"`
	IP          netip.Addr    `json:"ip"`
	Status      AddressStatus `json:"status"`
	AssignedTo  string        `json:"assigned_to,omitempty"`
	UserName    string        `json:"user_name,omitempty"`
	MAC         string        `json:"mac_address,omitempty"`
	DeviceType  string        `json:"device_type,omitempty"`
	Location    string        `json:"location,omitempty"`
	Description string        `json:"description,omitempty"`
	AllocatedAt *time.Time    `json:"allocated_at,omitempty"`
	AllocatedBy int64         `json:"allocated_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Assignment carries the caller supplied metadata bound to an address when it
// is allocated.
type Assignment struct {
	AssignedTo  string `json:"assigned_to"`
	UserName    string `json:"user_name"`
	MAC         string `json:"mac_address"`
	DeviceType  string `json:"device_type"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type RequestAllocate struct {
	SubnetID  int64  `json:"subnet_id" binding:"required"`
	Preferred string `json:"preferred,omitempty"`
	Assignment
}

type RequestBulkAllocate struct {
	SubnetID int64      `json:"subnet_id" binding:"required"`
	Count    int        `json:"count" binding:"required,gt=0"`
	Template Assignment `json:"template"`
}

type RequestReserve struct {
	Reason string `json:"reason" binding:"required"`
}

type RequestRelease struct {
	Reason string `json:"reason"`
}

type RequestConflict struct {
	Evidence string `json:"evidence" binding:"required"`
}

// BulkOp applies reserve or release over a list of addresses with per item
// outcomes, unlike bulk allocation which is all or nothing.
type RequestBulkOp struct {
	Operation string   `json:"operation" binding:"required,oneof=reserve release"`
	Addresses []string `json:"addresses" binding:"required,min=1"`
	Reason    string   `json:"reason"`
}

type BulkOpFailure struct {
	IP    string `json:"ip"`
	Error string `json:"error"`
}

type BulkOpResult struct {
	Succeeded []string        `json:"succeeded"`
	Failed    []BulkOpFailure `json:"failed"`
}

type RangeStatus struct {
	IP         netip.Addr    `json:"ip"`
	Status     AddressStatus `json:"status"`
	AssignedTo string        `json:"assigned_to,omitempty"`
	UserName   string        `json:"user_name,omitempty"`
	MAC        string        `json:"mac_address,omitempty"`
}

// AddressQuery is the search surface over addresses. Query text is
// interpreted per the precedence rules in the engine: exact IPv4, CIDR style
// prefix, then ranked substring match over assignee and user name fields.
type AddressQuery struct {
	Query      string        `schema:"query"`
	SubnetID   int64         `schema:"subnet_id"`
	Status     AddressStatus `schema:"status"`
	DeviceType string        `schema:"device_type"`
	AssignedTo string        `schema:"assigned_to"`
	Skip       uint64        `schema:"skip"`
	Limit      uint64        `schema:"limit"`
}
