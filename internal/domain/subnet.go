package domain

import (
	"time"
)

// Subnet is a managed CIDR block. The network string is stored in normalised
// form (host bits zeroed) and is unique across live subnets. Network and
// netmask are immutable after creation since the materialised address rows
// depend on them.
type Subnet struct {
	SubnetID    int64     `json:"subnet_id"`
	Network     string    `json:"network"`
	Netmask     string    `json:"netmask"`
	Gateway     string    `json:"gateway,omitempty"`
	VlanID      int       `json:"vlan_id,omitempty"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubnetCounts are derived from the address rows, never stored.
type SubnetCounts struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Allocated int64 `json:"allocated"`
	Reserved  int64 `json:"reserved"`
	Conflict  int64 `json:"conflict"`
}

// SubnetView is what list/detail endpoints return.
type SubnetView struct {
	Subnet
	Counts SubnetCounts `json:"counts"`
}

type RequestSubnetCreate struct {
	Network     string `json:"network" binding:"required"`
	Netmask     string `json:"netmask" binding:"required"`
	Gateway     string `json:"gateway"`
	VlanID      int    `json:"vlan_id"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// RequestSubnetUpdate covers metadata only. Network and netmask cannot change.
type RequestSubnetUpdate struct {
	Gateway     *string `json:"gateway"`
	VlanID      *int    `json:"vlan_id"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

type RequestSubnetValidate struct {
	Network   string `json:"network" binding:"required"`
	ExcludeID int64  `json:"exclude_id"`
}

type SubnetValidation struct {
	OK       bool     `json:"ok"`
	Overlaps []Subnet `json:"overlaps,omitempty"`
}

type SubnetQuery struct {
	VlanID int    `json:"vlan_id,omitempty" schema:"vlan_id"`
	Query  string `json:"query,omitempty" schema:"query"`
	Skip   uint64 `json:"skip,omitempty" schema:"skip"`
	Limit  uint64 `json:"limit,omitempty" schema:"limit"`
}
