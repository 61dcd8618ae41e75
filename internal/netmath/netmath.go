// Package netmath provides pure IPv4 math over 32 bit integers: CIDR
// parsing, netmask checks, containment and overlap tests and host set
// enumeration. Nothing here touches storage.
package netmath

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"go4.org/netipx"
)

var (
	ErrMalformedCIDR = errors.New("malformed cidr")
	ErrNotIPv4       = errors.New("not an ipv4 address")
)

// IP2Int converts an IPv4 address to its numeric form.
func IP2Int(addr netip.Addr) uint32 {
	b := addr.As4()

	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Int2IP is the inverse of IP2Int.
func Int2IP(value uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{
		byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value),
	})
}

// Mask returns the contiguous ones netmask of the given prefix length as a
// 32 bit integer. Mask(0) is 0.
func Mask(prefix int) uint32 {
	if prefix <= 0 {
		return 0
	}

	if prefix >= 32 {
		return ^uint32(0)
	}

	return ^uint32(0) << (32 - prefix)
}

// MaskFor renders the netmask of a prefix length in dotted quad form.
func MaskFor(prefix int) string {
	return Int2IP(Mask(prefix)).String()
}

// ValidMask reports whether text is the dotted quad contiguous ones netmask
// matching the given prefix length.
func ValidMask(text string, prefix int) bool {
	addr, errParse := netip.ParseAddr(text)
	if errParse != nil || !addr.Is4() {
		return false
	}

	return IP2Int(addr) == Mask(prefix)
}

// IsContiguousMask reports whether text is any valid netmask, i.e. its
// binary form matches 1*0*.
func IsContiguousMask(text string) bool {
	addr, errParse := netip.ParseAddr(text)
	if errParse != nil || !addr.Is4() {
		return false
	}

	value := IP2Int(addr)

	// A contiguous mask inverted is of the form 0*1*, so adding one must
	// yield a power of two.
	inverted := ^value

	return inverted&(inverted+1) == 0
}

// ParseCIDR parses an IPv4 CIDR block and normalises it by zeroing the host
// bits, so 192.168.1.5/24 becomes 192.168.1.0/24.
func ParseCIDR(text string) (uint32, int, error) {
	prefix, errParse := netip.ParsePrefix(strings.TrimSpace(text))
	if errParse != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrMalformedCIDR, text)
	}

	if !prefix.Addr().Is4() {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotIPv4, text)
	}

	bits := prefix.Bits()

	return IP2Int(prefix.Addr()) & Mask(bits), bits, nil
}

// ParseAddr parses a single dotted quad address into numeric form.
func ParseAddr(text string) (uint32, error) {
	addr, errParse := netip.ParseAddr(strings.TrimSpace(text))
	if errParse != nil {
		return 0, fmt.Errorf("%w: %s", ErrMalformedCIDR, text)
	}

	if !addr.Is4() {
		return 0, fmt.Errorf("%w: %s", ErrNotIPv4, text)
	}

	return IP2Int(addr), nil
}

// Normalise renders a parsed network back into canonical CIDR text.
func Normalise(network uint32, prefix int) string {
	return Int2IP(network).String() + "/" + strconv.Itoa(prefix)
}

// Contains reports whether addr lies inside the network/prefix block.
func Contains(network uint32, prefix int, addr uint32) bool {
	return addr&Mask(prefix) == network
}

// Overlaps reports whether two blocks intersect, which for CIDR blocks means
// one is a subrange of the other.
func Overlaps(n1 uint32, p1 int, n2 uint32, p2 int) bool {
	shorter := p1
	if p2 < shorter {
		shorter = p2
	}

	return n1&Mask(shorter) == n2&Mask(shorter)
}

// HostCount returns the number of usable host addresses in a block:
// everything except network and broadcast for prefixes up to /30, both
// addresses of a /31 and the single address of a /32.
func HostCount(prefix int) int {
	switch {
	case prefix >= 32:
		return 1
	case prefix == 31:
		return 2
	default:
		return 1<<(32-prefix) - 2
	}
}

// Hosts enumerates the usable host addresses of a block in ascending order.
func Hosts(network uint32, prefix int) []netip.Addr {
	ipRange := netipx.RangeOfPrefix(netip.PrefixFrom(Int2IP(network), prefix))

	first := IP2Int(ipRange.From())
	last := IP2Int(ipRange.To())

	if prefix <= 30 {
		first++
		last--
	}

	hosts := make([]netip.Addr, 0, last-first+1)
	for value := first; value <= last; value++ {
		hosts = append(hosts, Int2IP(value))

		if value == ^uint32(0) { // guard wrap at 255.255.255.255
			break
		}
	}

	return hosts
}

// QueryKind classifies free text search input.
type QueryKind int

const (
	// QueryText is anything that is not address-like.
	QueryText QueryKind = iota
	// QueryExact is a full dotted quad compared by equality only.
	QueryExact
	// QueryPrefix is a partial address such as 192.168.1 or a network style
	// dotted quad ending in zero octets, restricted to the implied block.
	QueryPrefix
)

// ClassifyQuery detects whether a search term addresses a single IP, an
// implied CIDR block, or is plain text. A trailing zero octet turns a dotted
// quad into a block query: 192.168.1.0 implies /24, 10.0.0.0 implies /8.
func ClassifyQuery(query string) (QueryKind, uint32, int) {
	query = strings.TrimSpace(query)

	if addr, errAddr := netip.ParseAddr(query); errAddr == nil && addr.Is4() {
		value := IP2Int(addr)

		trailing := 0
		for rest := value; trailing < 3 && rest&0xff == 0; rest >>= 8 {
			trailing++
		}

		if trailing == 0 || value == 0 {
			return QueryExact, value, 32
		}

		prefix := 32 - trailing*8

		return QueryPrefix, value, prefix
	}

	parts := strings.Split(query, ".")
	if len(parts) > 0 && len(parts) < 4 {
		var network uint32

		for idx, part := range parts {
			octet, errOctet := strconv.Atoi(part)
			if errOctet != nil || octet < 0 || octet > 255 {
				return QueryText, 0, 0
			}

			network |= uint32(octet) << (24 - idx*8)
		}

		return QueryPrefix, network, len(parts) * 8
	}

	return QueryText, 0, 0
}
