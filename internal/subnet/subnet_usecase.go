// Package subnet manages the registry of CIDR blocks: creation with host
// materialisation, overlap rejection, metadata updates and idle-only
// deletion.
package subnet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/netgrid/netgrid/internal/audit"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/netmath"
	"github.com/netgrid/netgrid/pkg/log"
)

// subnetsLockKey serialises every subnet create/delete so overlap checks
// stay race free without table locks.
const subnetsLockKey = "subnets"

// materialiseMinPrefix refuses blocks larger than a /16, which would
// otherwise materialise millions of rows.
const materialiseMinPrefix = 16

type whitelistEntry struct {
	network uint32
	prefix  int
}

type Subnets struct {
	db        database.Database
	repo      *Repository
	audits    *audit.Repository
	whitelist []whitelistEntry
}

func NewSubnets(db database.Database, repo *Repository, audits *audit.Repository, whitelistCIDRs []string) (*Subnets, error) {
	var whitelist []whitelistEntry

	for _, cidr := range whitelistCIDRs {
		network, prefix, errParse := netmath.ParseCIDR(cidr)
		if errParse != nil {
			return nil, fmt.Errorf("bad whitelist entry %q: %w", cidr, errParse)
		}

		whitelist = append(whitelist, whitelistEntry{network: network, prefix: prefix})
	}

	return &Subnets{db: db, repo: repo, audits: audits, whitelist: whitelist}, nil
}

// validateCreate normalises and checks the request, returning the parsed
// network.
func validateCreate(req domain.RequestSubnetCreate) (uint32, int, error) {
	network, prefix, errParse := netmath.ParseCIDR(req.Network)
	if errParse != nil {
		return 0, 0, errParse
	}

	if prefix < materialiseMinPrefix {
		return 0, 0, domain.ErrSubnetTooLarge
	}

	if !netmath.ValidMask(req.Netmask, prefix) {
		return 0, 0, domain.ErrInvalidNetmask
	}

	if errGateway := validateGateway(req.Gateway, network, prefix); errGateway != nil {
		return 0, 0, errGateway
	}

	if errVlan := validateVlan(req.VlanID); errVlan != nil {
		return 0, 0, errVlan
	}

	return network, prefix, nil
}

func validateGateway(gateway string, network uint32, prefix int) error {
	if gateway == "" {
		return nil
	}

	addr, errParse := netmath.ParseAddr(gateway)
	if errParse != nil {
		return domain.ErrGatewayOutOfRange
	}

	if !netmath.Contains(network, prefix, addr) {
		return domain.ErrGatewayOutOfRange
	}

	return nil
}

func validateVlan(vlanID int) error {
	if vlanID != 0 && (vlanID < 1 || vlanID > 4094) {
		return domain.ErrVlanOutOfRange
	}

	return nil
}

// findOverlaps returns the live subnets intersecting the candidate block.
func findOverlaps(candidate uint32, prefix int, existing []domain.Subnet, excludeID int64) []domain.Subnet {
	var offenders []domain.Subnet

	for _, other := range existing {
		if other.SubnetID == excludeID {
			continue
		}

		otherNet, otherPrefix, errParse := netmath.ParseCIDR(other.Network)
		if errParse != nil {
			continue
		}

		if netmath.Overlaps(candidate, prefix, otherNet, otherPrefix) {
			offenders = append(offenders, other)
		}
	}

	return offenders
}

// Create registers a new subnet and materialises one available address row
// per usable host. The whole operation is atomic: overlap rejection leaves
// no trace.
func (u *Subnets) Create(ctx context.Context, profile domain.Profile, req domain.RequestSubnetCreate) (domain.SubnetView, error) {
	network, prefix, errValidate := validateCreate(req)
	if errValidate != nil {
		return domain.SubnetView{}, errValidate
	}

	subnet := domain.Subnet{
		Network:     netmath.Normalise(network, prefix),
		Netmask:     netmath.MaskFor(prefix),
		Gateway:     req.Gateway,
		VlanID:      req.VlanID,
		Description: req.Description,
		Location:    req.Location,
		CreatedBy:   profile.UserID,
	}

	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		if errLock := database.AdvisoryLock(ctx, transaction, subnetsLockKey); errLock != nil {
			return errLock
		}

		existing, errExisting := u.repo.AllForUpdate(ctx, transaction)
		if errExisting != nil {
			return errExisting
		}

		if offenders := findOverlaps(network, prefix, existing, 0); len(offenders) > 0 {
			return domain.OverlapError{Offenders: offenders}
		}

		if errInsert := u.repo.InsertTx(ctx, transaction, &subnet); errInsert != nil {
			return errInsert
		}

		hosts := netmath.Hosts(network, prefix)
		if errHosts := u.repo.MaterialiseHostsTx(ctx, transaction, subnet.SubnetID, hosts); errHosts != nil {
			return errHosts
		}

		return u.audits.RecordTx(ctx, transaction, &domain.AuditEntry{
			UserID:     profile.UserID,
			Action:     domain.ActionCreate,
			EntityType: domain.EntitySubnet,
			EntityID:   subnet.SubnetID,
			NewValues: map[string]any{
				"network": subnet.Network, "netmask": subnet.Netmask, "gateway": subnet.Gateway,
				"vlan_id": subnet.VlanID, "description": subnet.Description, "location": subnet.Location,
			},
			RemoteAddr: profile.RemoteAddr,
			UserAgent:  profile.UserAgent,
		})
	})
	if errTx != nil {
		return domain.SubnetView{}, errTx
	}

	slog.Info("Subnet created", slog.String("network", subnet.Network), slog.Int64("subnet_id", subnet.SubnetID))

	counts, errCounts := u.repo.CountsFor(ctx, subnet.SubnetID)
	if errCounts != nil {
		return domain.SubnetView{}, errCounts
	}

	return domain.SubnetView{Subnet: subnet, Counts: counts}, nil
}

// Update touches metadata only. Network and netmask are immutable.
func (u *Subnets) Update(ctx context.Context, profile domain.Profile, subnetID int64, req domain.RequestSubnetUpdate) (domain.Subnet, error) {
	current, errCurrent := u.repo.GetByID(ctx, subnetID)
	if errCurrent != nil {
		return domain.Subnet{}, errCurrent
	}

	network, prefix, errParse := netmath.ParseCIDR(current.Network)
	if errParse != nil {
		return domain.Subnet{}, errParse
	}

	oldValues := map[string]any{}
	newValues := map[string]any{}

	updated := current

	if req.Gateway != nil && *req.Gateway != current.Gateway {
		if errGateway := validateGateway(*req.Gateway, network, prefix); errGateway != nil {
			return domain.Subnet{}, errGateway
		}

		oldValues["gateway"], newValues["gateway"] = current.Gateway, *req.Gateway
		updated.Gateway = *req.Gateway
	}

	if req.VlanID != nil && *req.VlanID != current.VlanID {
		if errVlan := validateVlan(*req.VlanID); errVlan != nil {
			return domain.Subnet{}, errVlan
		}

		oldValues["vlan_id"], newValues["vlan_id"] = current.VlanID, *req.VlanID
		updated.VlanID = *req.VlanID
	}

	if req.Description != nil && *req.Description != current.Description {
		oldValues["description"], newValues["description"] = current.Description, *req.Description
		updated.Description = *req.Description
	}

	if req.Location != nil && *req.Location != current.Location {
		oldValues["location"], newValues["location"] = current.Location, *req.Location
		updated.Location = *req.Location
	}

	if len(newValues) == 0 {
		return current, nil
	}

	errTx := u.db.WrapTx(ctx, func(transaction pgx.Tx) error {
		if errUpdate := u.repo.UpdateTx(ctx, transaction, &updated); errUpdate != nil {
			return errUpdate
		}

		return u.audits.RecordTx(ctx, transaction, &domain.AuditEntry{
			UserID:     profile.UserID,
			Action:     domain.ActionUpdate,
			EntityType: domain.EntitySubnet,
			EntityID:   subnetID,
			OldValues:  oldValues,
			NewValues:  newValues,
			RemoteAddr: profile.RemoteAddr,
			UserAgent:  profile.UserAgent,
		})
	})
	if errTx != nil {
		return domain.Subnet{}, errTx
	}

	return updated, nil
}

// Delete removes an idle subnet and its address rows. Any allocated or
// reserved address blocks the delete.
func (u *Subnets) Delete(ctx context.Context, profile domain.Profile, subnetID int64) error {
	errTx := database.RetryOnce(ctx, u.db, func(transaction pgx.Tx) error {
		if errLock := database.AdvisoryLock(ctx, transaction, subnetsLockKey); errLock != nil {
			return errLock
		}

		subnet, errSubnet := u.repo.GetByID(ctx, subnetID)
		if errSubnet != nil {
			return errSubnet
		}

		active, errActive := u.repo.ActiveCountTx(ctx, transaction, subnetID)
		if errActive != nil {
			return errActive
		}

		if active > 0 {
			return domain.ErrSubnetInUse
		}

		if errDelete := u.repo.DeleteTx(ctx, transaction, subnetID); errDelete != nil {
			return errDelete
		}

		return u.audits.RecordTx(ctx, transaction, &domain.AuditEntry{
			UserID:     profile.UserID,
			Action:     domain.ActionDelete,
			EntityType: domain.EntitySubnet,
			EntityID:   subnetID,
			OldValues: map[string]any{
				"network": subnet.Network, "netmask": subnet.Netmask, "gateway": subnet.Gateway,
				"vlan_id": subnet.VlanID, "description": subnet.Description, "location": subnet.Location,
			},
			RemoteAddr: profile.RemoteAddr,
			UserAgent:  profile.UserAgent,
		})
	})
	if errTx != nil {
		return errTx
	}

	slog.Info("Subnet deleted", slog.Int64("subnet_id", subnetID))

	return nil
}

// Get returns the bare subnet row without scope checks, for internal
// callers.
func (u *Subnets) Get(ctx context.Context, subnetID int64) (domain.Subnet, error) {
	return u.repo.GetByID(ctx, subnetID)
}

// View returns a single subnet with counts. Subnets outside a readonly
// caller's scope read as not found so their existence does not leak.
func (u *Subnets) View(ctx context.Context, profile domain.Profile, subnetID int64) (domain.SubnetView, error) {
	scope, errScope := u.ScopeFor(ctx, profile)
	if errScope != nil {
		return domain.SubnetView{}, errScope
	}

	if !scope.Permits(subnetID) {
		return domain.SubnetView{}, domain.ErrNotFound
	}

	subnet, errSubnet := u.repo.GetByID(ctx, subnetID)
	if errSubnet != nil {
		return domain.SubnetView{}, errSubnet
	}

	counts, errCounts := u.repo.CountsFor(ctx, subnetID)
	if errCounts != nil {
		return domain.SubnetView{}, errCounts
	}

	return domain.SubnetView{Subnet: subnet, Counts: counts}, nil
}

// List returns the subnets the caller may observe, scoped for readonly
// users.
func (u *Subnets) List(ctx context.Context, profile domain.Profile, filter domain.SubnetQuery) (domain.Page[domain.SubnetView], error) {
	scope, errScope := u.ScopeFor(ctx, profile)
	if errScope != nil {
		return domain.Page[domain.SubnetView]{}, errScope
	}

	views, total, errQuery := u.repo.Query(ctx, filter, scope)
	if errQuery != nil {
		return domain.Page[domain.SubnetView]{}, errQuery
	}

	return domain.NewPage(views, total, filter.Skip, filter.Limit), nil
}

// Validate is the overlap dry run used by the UI before a create.
func (u *Subnets) Validate(ctx context.Context, req domain.RequestSubnetValidate) (domain.SubnetValidation, error) {
	network, prefix, errParse := netmath.ParseCIDR(req.Network)
	if errParse != nil {
		return domain.SubnetValidation{}, errParse
	}

	existing, errExisting := u.repo.All(ctx)
	if errExisting != nil {
		return domain.SubnetValidation{}, errExisting
	}

	offenders := findOverlaps(network, prefix, existing, req.ExcludeID)
	if offenders == nil {
		offenders = []domain.Subnet{}
	}

	return domain.SubnetValidation{OK: len(offenders) == 0, Overlaps: offenders}, nil
}

// ScopeFor resolves the subnets an actor may observe. Readonly users see
// the subnets contained in the configured whitelist blocks, everyone else
// sees all of them.
func (u *Subnets) ScopeFor(ctx context.Context, profile domain.Profile) (domain.Scope, error) {
	if profile.Permission > permission.ReadOnly {
		return domain.ScopeAll(), nil
	}

	if len(u.whitelist) == 0 {
		return domain.Scope{}, nil
	}

	subnets, errSubnets := u.repo.All(ctx)
	if errSubnets != nil {
		return domain.Scope{}, errSubnets
	}

	var ids []int64

	for _, subnet := range subnets {
		network, prefix, errParse := netmath.ParseCIDR(subnet.Network)
		if errParse != nil {
			slog.Warn("Skipping unparsable subnet during scope resolution",
				slog.String("network", subnet.Network), log.ErrAttr(errParse))

			continue
		}

		for _, entry := range u.whitelist {
			if prefix >= entry.prefix && netmath.Contains(entry.network, entry.prefix, network) {
				ids = append(ids, subnet.SubnetID)

				break
			}
		}
	}

	return domain.Scope{SubnetIDs: ids}, nil
}
