// Package address drives the lifecycle of materialised host rows: atomic
// allocation, reservation with caps, release, conflict handling and ranked
// search.
package address

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/netgrid/netgrid/internal/audit"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/netmath"
)

const (
	// reservationFraction and reservationCap bound the reservations a single
	// user may hold inside one subnet: min(20% of subnet size, 100).
	reservationFraction = 5
	reservationCap      = 100

	// rangeSpanMax bounds a range status query to a /16 worth of addresses.
	rangeSpanMax = 1 << 16

	// bulkAllocateMax bounds a single all-or-nothing bulk allocation.
	bulkAllocateMax = 256
)

// SubnetProvider is the slice of the subnet registry the engine needs:
// subnet lookup for containment checks and scope resolution for readonly
// visibility.
type SubnetProvider interface {
	Get(ctx context.Context, subnetID int64) (domain.Subnet, error)
	ScopeFor(ctx context.Context, profile domain.Profile) (domain.Scope, error)
}

type Engine struct {
	db      database.Database
	repo    *Repository
	audits  *audit.Repository
	subnets SubnetProvider
}

func NewEngine(db database.Database, repo *Repository, audits *audit.Repository, subnets SubnetProvider) *Engine {
	return &Engine{db: db, repo: repo, audits: audits, subnets: subnets}
}

func assignmentValues(addr domain.Address) map[string]any {
	return map[string]any{
		"ip": addr.IP.String(), "status": string(addr.Status), "assigned_to": addr.AssignedTo,
		"user_name": addr.UserName, "mac_address": addr.MAC, "device_type": addr.DeviceType,
		"location": addr.Location, "description": addr.Description,
	}
}

func (u *Engine) record(ctx context.Context, transaction pgx.Tx, profile domain.Profile,
	action domain.Action, addr domain.Address, oldValues map[string]any, extra map[string]any,
) error {
	newValues := assignmentValues(addr)
	for key, value := range extra {
		newValues[key] = value
	}

	return u.audits.RecordTx(ctx, transaction, &domain.AuditEntry{
		UserID:     profile.UserID,
		Action:     action,
		EntityType: domain.EntityAddress,
		EntityID:   addr.AddressID,
		OldValues:  oldValues,
		NewValues:  newValues,
		RemoteAddr: profile.RemoteAddr,
		UserAgent:  profile.UserAgent,
	})
}

func applyAssignment(addr *domain.Address, assignment domain.Assignment, profile domain.Profile) {
	now := time.Now()

	addr.Status = domain.StatusAllocated
	addr.AssignedTo = assignment.AssignedTo

	addr.UserName = assignment.UserName
	if addr.UserName == "" {
		addr.UserName = profile.Username
	}

	addr.MAC = assignment.MAC
	addr.DeviceType = assignment.DeviceType
	addr.Location = assignment.Location
	addr.Description = assignment.Description
	addr.AllocatedAt = &now
	addr.AllocatedBy = profile.UserID
}

// Allocate hands out the preferred address, or the numerically lowest free
// one. Exactly one concurrent caller can win any given address.
func (u *Engine) Allocate(ctx context.Context, profile domain.Profile, req domain.RequestAllocate) (domain.Address, error) {
	subnet, errSubnet := u.subnets.Get(ctx, req.SubnetID)
	if errSubnet != nil {
		return domain.Address{}, errSubnet
	}

	var preferred netip.Addr

	if req.Preferred != "" {
		value, errParse := netmath.ParseAddr(req.Preferred)
		if errParse != nil {
			return domain.Address{}, errParse
		}

		network, prefix, errNet := netmath.ParseCIDR(subnet.Network)
		if errNet != nil {
			return domain.Address{}, errNet
		}

		if !netmath.Contains(network, prefix, value) {
			return domain.Address{}, domain.ErrAddressNotInSubnet
		}

		preferred = netmath.Int2IP(value)
	}

	var allocated domain.Address

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		var (
			addr    domain.Address
			errLock error
		)

		if req.Preferred != "" {
			addr, errLock = u.repo.LockByIPTx(ctx, transaction, req.SubnetID, preferred)
			if errLock != nil {
				// Network and broadcast addresses are never materialised.
				if errors.Is(errLock, database.ErrNoResult) {
					return domain.ErrAddressNotInSubnet
				}

				return errLock
			}

			if addr.Status != domain.StatusAvailable {
				return domain.StatusError{Current: addr.Status}
			}
		} else {
			free, errFree := u.repo.LockLowestFreeTx(ctx, transaction, req.SubnetID, 1)
			if errFree != nil {
				return errFree
			}

			if len(free) == 0 {
				return domain.ErrSubnetExhausted
			}

			addr = free[0]
		}

		applyAssignment(&addr, req.Assignment, profile)

		if errSave := u.repo.SaveTx(ctx, transaction, &addr); errSave != nil {
			return errSave
		}

		if errAudit := u.record(ctx, transaction, profile, domain.ActionAllocate, addr,
			map[string]any{"status": string(domain.StatusAvailable)}, nil); errAudit != nil {
			return errAudit
		}

		allocated = addr

		return nil
	})
	if errTx != nil {
		return domain.Address{}, errTx
	}

	slog.Info("Address allocated", slog.String("ip", allocated.IP.String()),
		slog.Int64("subnet_id", allocated.SubnetID), slog.Int64("user_id", profile.UserID))

	return allocated, nil
}

// BulkAllocate claims count addresses in one transaction. All or nothing:
// if fewer than count are free the whole request fails.
func (u *Engine) BulkAllocate(ctx context.Context, profile domain.Profile, req domain.RequestBulkAllocate) ([]domain.Address, error) {
	if req.Count > bulkAllocateMax {
		return nil, fmt.Errorf("%w: at most %d addresses per request", domain.ErrBadRequest, bulkAllocateMax)
	}

	if _, errSubnet := u.subnets.Get(ctx, req.SubnetID); errSubnet != nil {
		return nil, errSubnet
	}

	var allocated []domain.Address

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		allocated = allocated[:0]

		free, errFree := u.repo.LockLowestFreeTx(ctx, transaction, req.SubnetID, req.Count)
		if errFree != nil {
			return errFree
		}

		if len(free) < req.Count {
			return domain.ErrSubnetExhausted
		}

		for idx := range free {
			addr := free[idx]
			applyAssignment(&addr, req.Template, profile)

			if errSave := u.repo.SaveTx(ctx, transaction, &addr); errSave != nil {
				return errSave
			}

			if errAudit := u.record(ctx, transaction, profile, domain.ActionAllocate, addr,
				map[string]any{"status": string(domain.StatusAvailable)}, nil); errAudit != nil {
				return errAudit
			}

			allocated = append(allocated, addr)
		}

		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	return allocated, nil
}

func (u *Engine) reservationLimit(ctx context.Context, transaction pgx.Tx, subnetID int64) (int64, error) {
	size, errSize := u.repo.SubnetSizeTx(ctx, transaction, subnetID)
	if errSize != nil {
		return 0, errSize
	}

	limit := size / reservationFraction
	if limit > reservationCap {
		limit = reservationCap
	}

	if limit < 1 {
		limit = 1
	}

	return limit, nil
}

func (u *Engine) reserveLocked(ctx context.Context, transaction pgx.Tx, profile domain.Profile,
	addr domain.Address, reason string,
) (domain.Address, error) {
	if addr.Status != domain.StatusAvailable {
		return domain.Address{}, domain.StatusError{Current: addr.Status}
	}

	limit, errLimit := u.reservationLimit(ctx, transaction, addr.SubnetID)
	if errLimit != nil {
		return domain.Address{}, errLimit
	}

	held, errHeld := u.repo.ReservedByUserTx(ctx, transaction, addr.SubnetID, profile.UserID)
	if errHeld != nil {
		return domain.Address{}, errHeld
	}

	if held >= limit {
		return domain.Address{}, fmt.Errorf("%w: limit %d", domain.ErrReservationLimit, limit)
	}

	now := time.Now()
	addr.Status = domain.StatusReserved
	addr.UserName = profile.Username
	addr.AllocatedAt = &now
	addr.AllocatedBy = profile.UserID

	if errSave := u.repo.SaveTx(ctx, transaction, &addr); errSave != nil {
		return domain.Address{}, errSave
	}

	if errAudit := u.record(ctx, transaction, profile, domain.ActionReserve, addr,
		map[string]any{"status": string(domain.StatusAvailable)},
		map[string]any{"reason": reason}); errAudit != nil {
		return domain.Address{}, errAudit
	}

	return addr, nil
}

// Reserve parks an available address for later use, bounded by the per user
// reservation cap.
func (u *Engine) Reserve(ctx context.Context, profile domain.Profile, addressID int64, req domain.RequestReserve) (domain.Address, error) {
	var reserved domain.Address

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		addr, errLock := u.repo.LockByIDTx(ctx, transaction, addressID)
		if errLock != nil {
			return errLock
		}

		result, errReserve := u.reserveLocked(ctx, transaction, profile, addr, req.Reason)
		if errReserve != nil {
			return errReserve
		}

		reserved = result

		return nil
	})
	if errTx != nil {
		return domain.Address{}, errTx
	}

	return reserved, nil
}

func (u *Engine) releaseLocked(ctx context.Context, transaction pgx.Tx, profile domain.Profile,
	addr domain.Address, reason string, fromConflict bool,
) (domain.Address, error) {
	if addr.Status == domain.StatusAvailable {
		return domain.Address{}, domain.StatusError{Current: addr.Status}
	}

	// A conflicted address only leaves that state through resolve.
	if addr.Status == domain.StatusConflict && !fromConflict {
		return domain.Address{}, domain.StatusError{Current: addr.Status}
	}

	// Holders may release their own addresses, managers anyone's.
	if profile.Permission < permission.Manager && addr.AllocatedBy != profile.UserID {
		return domain.Address{}, domain.ErrPermissionDenied
	}

	oldValues := assignmentValues(addr)

	addr.Status = domain.StatusAvailable
	addr.AssignedTo = ""
	addr.UserName = ""
	addr.MAC = ""
	addr.DeviceType = ""
	addr.Location = ""
	addr.Description = ""
	addr.AllocatedAt = nil
	addr.AllocatedBy = 0

	if errSave := u.repo.SaveTx(ctx, transaction, &addr); errSave != nil {
		return domain.Address{}, errSave
	}

	if errAudit := u.record(ctx, transaction, profile, domain.ActionRelease, addr,
		oldValues, map[string]any{"reason": reason}); errAudit != nil {
		return domain.Address{}, errAudit
	}

	return addr, nil
}

// Release returns an address to the pool, wiping its assignment.
func (u *Engine) Release(ctx context.Context, profile domain.Profile, addressID int64, req domain.RequestRelease) (domain.Address, error) {
	var released domain.Address

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		addr, errLock := u.repo.LockByIDTx(ctx, transaction, addressID)
		if errLock != nil {
			return errLock
		}

		result, errRelease := u.releaseLocked(ctx, transaction, profile, addr, req.Reason, false)
		if errRelease != nil {
			return errRelease
		}

		released = result

		return nil
	})
	if errTx != nil {
		return domain.Address{}, errTx
	}

	return released, nil
}

// MarkConflict flags an address whose on-wire state disagrees with the
// plan. Any state can enter conflict.
func (u *Engine) MarkConflict(ctx context.Context, profile domain.Profile, addressID int64, req domain.RequestConflict) (domain.Address, error) {
	var marked domain.Address

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		addr, errLock := u.repo.LockByIDTx(ctx, transaction, addressID)
		if errLock != nil {
			return errLock
		}

		if addr.Status == domain.StatusConflict {
			return domain.StatusError{Current: addr.Status}
		}

		oldValues := assignmentValues(addr)
		addr.Status = domain.StatusConflict

		if errSave := u.repo.SaveTx(ctx, transaction, &addr); errSave != nil {
			return errSave
		}

		if errAudit := u.record(ctx, transaction, profile, domain.ActionUpdate, addr,
			oldValues, map[string]any{"evidence": req.Evidence}); errAudit != nil {
			return errAudit
		}

		marked = addr

		return nil
	})
	if errTx != nil {
		return domain.Address{}, errTx
	}

	return marked, nil
}

// ResolveConflict returns a conflicted address to the pool.
func (u *Engine) ResolveConflict(ctx context.Context, profile domain.Profile, addressID int64) (domain.Address, error) {
	var resolved domain.Address

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		addr, errLock := u.repo.LockByIDTx(ctx, transaction, addressID)
		if errLock != nil {
			return errLock
		}

		if addr.Status != domain.StatusConflict {
			return domain.StatusError{Current: addr.Status}
		}

		result, errRelease := u.releaseLocked(ctx, transaction, profile, addr, "conflict resolved", true)
		if errRelease != nil {
			return errRelease
		}

		resolved = result

		return nil
	})
	if errTx != nil {
		return domain.Address{}, errTx
	}

	return resolved, nil
}

// BulkOp reserves or releases a list of addresses with per item outcomes.
// Each address runs in its own transaction so one failure does not undo the
// rest.
func (u *Engine) BulkOp(ctx context.Context, profile domain.Profile, req domain.RequestBulkOp) (domain.BulkOpResult, error) {
	result := domain.BulkOpResult{Succeeded: []string{}, Failed: []domain.BulkOpFailure{}}

	for _, ipText := range req.Addresses {
		value, errParse := netmath.ParseAddr(ipText)
		if errParse != nil {
			result.Failed = append(result.Failed, domain.BulkOpFailure{IP: ipText, Error: errParse.Error()})

			continue
		}

		ip := netmath.Int2IP(value)

		errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
			addr, errLock := u.repo.LockByIPGlobalTx(ctx, transaction, ip)
			if errLock != nil {
				return errLock
			}

			var errOp error

			if req.Operation == "reserve" {
				_, errOp = u.reserveLocked(ctx, transaction, profile, addr, req.Reason)
			} else {
				_, errOp = u.releaseLocked(ctx, transaction, profile, addr, req.Reason, false)
			}

			return errOp
		})
		if errTx != nil {
			result.Failed = append(result.Failed, domain.BulkOpFailure{IP: ipText, Error: errTx.Error()})

			continue
		}

		result.Succeeded = append(result.Succeeded, ipText)
	}

	return result, nil
}

// RangeStatuses reports the status of every managed address between start
// and end, bounded to a /16 worth of span.
func (u *Engine) RangeStatuses(ctx context.Context, profile domain.Profile, startText string, endText string) ([]domain.RangeStatus, error) {
	start, errStart := netmath.ParseAddr(startText)
	if errStart != nil {
		return nil, errStart
	}

	end, errEnd := netmath.ParseAddr(endText)
	if errEnd != nil {
		return nil, errEnd
	}

	if end < start {
		return nil, fmt.Errorf("%w: end before start", domain.ErrBadRequest)
	}

	if uint64(end)-uint64(start)+1 > rangeSpanMax {
		return nil, domain.ErrRangeTooLarge
	}

	scope, errScope := u.subnets.ScopeFor(ctx, profile)
	if errScope != nil {
		return nil, errScope
	}

	return u.repo.Range(ctx, netmath.Int2IP(start), netmath.Int2IP(end), scope)
}

// DetectConflicts sweeps a subnet for allocated rows sharing a MAC address
// and marks every offender conflicted.
func (u *Engine) DetectConflicts(ctx context.Context, profile domain.Profile, subnetID int64) ([]domain.Address, error) {
	if _, errSubnet := u.subnets.Get(ctx, subnetID); errSubnet != nil {
		return nil, errSubnet
	}

	var marked []domain.Address

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		marked = marked[:0]

		offenders, errOffenders := u.repo.DuplicateMACsTx(ctx, transaction, subnetID)
		if errOffenders != nil {
			return errOffenders
		}

		for idx := range offenders {
			addr := offenders[idx]
			oldValues := assignmentValues(addr)
			addr.Status = domain.StatusConflict

			if errSave := u.repo.SaveTx(ctx, transaction, &addr); errSave != nil {
				return errSave
			}

			if errAudit := u.record(ctx, transaction, profile, domain.ActionUpdate, addr,
				oldValues, map[string]any{"reason": "duplicate mac"}); errAudit != nil {
				return errAudit
			}

			marked = append(marked, addr)
		}

		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	if marked == nil {
		marked = []domain.Address{}
	}

	slog.Info("Conflict sweep finished", slog.Int64("subnet_id", subnetID), slog.Int("marked", len(marked)))

	return marked, nil
}

// Search runs the scoped, ranked address query.
func (u *Engine) Search(ctx context.Context, profile domain.Profile, filter domain.AddressQuery) (domain.Page[domain.Address], error) {
	scope, errScope := u.subnets.ScopeFor(ctx, profile)
	if errScope != nil {
		return domain.Page[domain.Address]{}, errScope
	}

	if filter.Limit == 0 || filter.Limit > searchLimitMax {
		filter.Limit = searchLimitMax
	}

	addrs, total, errSearch := u.repo.Search(ctx, filter, scope)
	if errSearch != nil {
		return domain.Page[domain.Address]{}, errSearch
	}

	return domain.NewPage(addrs, total, filter.Skip, filter.Limit), nil
}

// Get returns a single address, hidden outside a readonly caller's scope.
func (u *Engine) Get(ctx context.Context, profile domain.Profile, addressID int64) (domain.Address, error) {
	addr, errAddr := u.repo.GetByID(ctx, addressID)
	if errAddr != nil {
		return domain.Address{}, errAddr
	}

	scope, errScope := u.subnets.ScopeFor(ctx, profile)
	if errScope != nil {
		return domain.Address{}, errScope
	}

	if !scope.Permits(addr.SubnetID) {
		return domain.Address{}, domain.ErrNotFound
	}

	return addr, nil
}
