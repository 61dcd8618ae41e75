package domain

import (
	"time"

	"github.com/netgrid/netgrid/internal/auth/permission"
)

// Person is a row of the externally managed user directory. The core only
// reads it to authenticate callers and resolve their privilege.
type Person struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the resolved actor attached to each authenticated request.
type Profile struct {
	UserID     int64                `json:"user_id"`
	Username   string               `json:"username"`
	Permission permission.Privilege `json:"permission"`
	// RemoteAddr and UserAgent travel with the profile so mutations can be
	// audited without reaching back into the http layer.
	RemoteAddr string `json:"-"`
	UserAgent  string `json:"-"`
}

// Scope is the set of subnets an actor may observe. All is true for every
// role except readonly, whose visibility comes from the configured whitelist.
type Scope struct {
	All       bool
	SubnetIDs []int64
}

func ScopeAll() Scope {
	return Scope{All: true}
}

func (s Scope) Permits(subnetID int64) bool {
	if s.All {
		return true
	}

	for _, id := range s.SubnetIDs {
		if id == subnetID {
			return true
		}
	}

	return false
}
