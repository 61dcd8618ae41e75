package permission

import "errors"

var ErrDenied = errors.New("permission denied")

type Privilege uint8

const (
	Guest    Privilege = 0   // No valid token presented
	ReadOnly Privilege = 5   // Read only, restricted to whitelisted subnets
	User     Privilege = 10  // Read all, write on addresses
	Manager  Privilege = 50  // Read/write on subnets and addresses
	Admin    Privilege = 100 // Unrestricted
)

func (p Privilege) String() string {
	switch p {
	case Guest:
		return "guest"
	case ReadOnly:
		return "readonly"
	case User:
		return "user"
	case Manager:
		return "manager"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// FromRole maps the stored role of a user row onto a privilege level.
// Unknown roles resolve to Guest so a bad row can never gain access.
func FromRole(role string) Privilege {
	switch role {
	case "admin":
		return Admin
	case "manager":
		return Manager
	case "user":
		return User
	case "readonly":
		return ReadOnly
	default:
		return Guest
	}
}
