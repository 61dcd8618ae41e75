package subnet

import (
	"context"
	"net/netip"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/database/query"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/netmath"
)

type Repository struct {
	db database.Database
}

func NewRepository(db database.Database) *Repository {
	return &Repository{db: db}
}

func scanSubnet(row pgx.Row) (domain.Subnet, error) {
	var (
		subnet  domain.Subnet
		network netip.Prefix
		gateway *netip.Addr
	)

	if errScan := row.Scan(&subnet.SubnetID, &network, &gateway, &subnet.VlanID,
		&subnet.Description, &subnet.Location, &subnet.CreatedBy,
		&subnet.CreatedAt, &subnet.UpdatedAt); errScan != nil {
		return subnet, database.DBErr(errScan)
	}

	subnet.Network = network.String()
	subnet.Netmask = netmath.MaskFor(network.Bits())

	if gateway != nil {
		subnet.Gateway = gateway.String()
	}

	return subnet, nil
}

const subnetColumns = "subnet_id, network, gateway, vlan_id, description, location, created_by, created_at, updated_at"

func (r *Repository) GetByID(ctx context.Context, subnetID int64) (domain.Subnet, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.
		Builder().
		Select(subnetColumns).
		From("subnets").
		Where("subnet_id = ?", subnetID))
	if errRow != nil {
		return domain.Subnet{}, database.DBErr(errRow)
	}

	return scanSubnet(row)
}

// AllForUpdate loads every live subnet inside the transaction. Callers must
// hold the subnets advisory lock so the set cannot change underneath them.
func (r *Repository) AllForUpdate(ctx context.Context, transaction pgx.Tx) ([]domain.Subnet, error) {
	rows, errRows := transaction.Query(ctx, "SELECT "+subnetColumns+" FROM subnets ORDER BY subnet_id")
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var subnets []domain.Subnet

	for rows.Next() {
		subnet, errScan := scanSubnet(rows)
		if errScan != nil {
			return nil, errScan
		}

		subnets = append(subnets, subnet)
	}

	return subnets, nil
}

// All returns every live subnet without locking, used for overlap dry runs
// and whitelist scope resolution.
func (r *Repository) All(ctx context.Context) ([]domain.Subnet, error) {
	rows, errRows := r.db.QueryBuilder(ctx, r.db.
		Builder().
		Select(subnetColumns).
		From("subnets").
		OrderBy("subnet_id"))
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var subnets []domain.Subnet

	for rows.Next() {
		subnet, errScan := scanSubnet(rows)
		if errScan != nil {
			return nil, errScan
		}

		subnets = append(subnets, subnet)
	}

	return subnets, nil
}

// InsertTx creates the subnet row and returns its id.
func (r *Repository) InsertTx(ctx context.Context, transaction pgx.Tx, subnet *domain.Subnet) error {
	now := time.Now()
	subnet.CreatedAt = now
	subnet.UpdatedAt = now

	var gateway any
	if subnet.Gateway != "" {
		gateway = subnet.Gateway
	}

	const insert = `
		INSERT INTO subnets (network, gateway, vlan_id, description, location, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING subnet_id`

	if errScan := transaction.
		QueryRow(ctx, insert, subnet.Network, gateway, subnet.VlanID, subnet.Description,
			subnet.Location, subnet.CreatedBy, subnet.CreatedAt, subnet.UpdatedAt).
		Scan(&subnet.SubnetID); errScan != nil {
		return database.DBErr(errScan)
	}

	return nil
}

// MaterialiseHostsTx bulk inserts one available address row per usable host.
func (r *Repository) MaterialiseHostsTx(ctx context.Context, transaction pgx.Tx, subnetID int64, hosts []netip.Addr) error {
	now := time.Now()

	_, errCopy := transaction.CopyFrom(ctx,
		pgx.Identifier{"addresses"},
		[]string{"subnet_id", "ip", "status", "created_at", "updated_at"},
		pgx.CopyFromSlice(len(hosts), func(i int) ([]any, error) {
			return []any{subnetID, hosts[i], string(domain.StatusAvailable), now, now}, nil
		}))
	if errCopy != nil {
		return database.DBErr(errCopy)
	}

	return nil
}

func (r *Repository) UpdateTx(ctx context.Context, transaction pgx.Tx, subnet *domain.Subnet) error {
	subnet.UpdatedAt = time.Now()

	var gateway any
	if subnet.Gateway != "" {
		gateway = subnet.Gateway
	}

	const update = `
		UPDATE subnets
		SET gateway = $2, vlan_id = $3, description = $4, location = $5, updated_at = $6
		WHERE subnet_id = $1`

	if _, errExec := transaction.Exec(ctx, update, subnet.SubnetID, gateway, subnet.VlanID,
		subnet.Description, subnet.Location, subnet.UpdatedAt); errExec != nil {
		return database.DBErr(errExec)
	}

	return nil
}

// DeleteTx removes the subnet. Address rows go with it via the cascade.
func (r *Repository) DeleteTx(ctx context.Context, transaction pgx.Tx, subnetID int64) error {
	if _, errExec := transaction.Exec(ctx, "DELETE FROM subnets WHERE subnet_id = $1", subnetID); errExec != nil {
		return database.DBErr(errExec)
	}

	return nil
}

// ActiveCountTx counts the allocated and reserved rows of a subnet inside
// the transaction, gating deletion.
func (r *Repository) ActiveCountTx(ctx context.Context, transaction pgx.Tx, subnetID int64) (int64, error) {
	var count int64

	if errScan := transaction.
		QueryRow(ctx, `SELECT count(address_id) FROM addresses WHERE subnet_id = $1 AND status IN ('allocated', 'reserved')`, subnetID).
		Scan(&count); errScan != nil {
		return 0, database.DBErr(errScan)
	}

	return count, nil
}

func (r *Repository) CountsFor(ctx context.Context, subnetID int64) (domain.SubnetCounts, error) {
	var counts domain.SubnetCounts

	const countQuery = `
		SELECT count(address_id),
		       count(address_id) FILTER (WHERE status = 'available'),
		       count(address_id) FILTER (WHERE status = 'allocated'),
		       count(address_id) FILTER (WHERE status = 'reserved'),
		       count(address_id) FILTER (WHERE status = 'conflict')
		FROM addresses
		WHERE subnet_id = $1`

	if errScan := r.db.
		QueryRow(ctx, countQuery, subnetID).
		Scan(&counts.Total, &counts.Available, &counts.Allocated, &counts.Reserved, &counts.Conflict); errScan != nil {
		return counts, database.DBErr(errScan)
	}

	return counts, nil
}

func (r *Repository) applyFilter(builder sq.SelectBuilder, filter domain.SubnetQuery, scope domain.Scope) sq.SelectBuilder {
	var constraints sq.And

	if !scope.All {
		constraints = append(constraints, sq.Eq{"s.subnet_id": scope.SubnetIDs})
	}

	if filter.VlanID > 0 {
		constraints = append(constraints, sq.Eq{"s.vlan_id": filter.VlanID})
	}

	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		constraints = append(constraints, sq.Or{
			sq.Expr("host(network(s.network)) || '/' || masklen(s.network) ILIKE ?", like),
			sq.ILike{"s.description": like},
			sq.ILike{"s.location": like},
		})
	}

	if len(constraints) > 0 {
		builder = builder.Where(constraints)
	}

	return builder
}

// Query lists subnets with their derived status counts, oldest first.
// An empty non-All scope matches nothing.
func (r *Repository) Query(ctx context.Context, filter domain.SubnetQuery, scope domain.Scope) ([]domain.SubnetView, int64, error) {
	builder := r.applyFilter(r.db.
		Builder().
		Select("s.subnet_id", "s.network", "s.gateway", "s.vlan_id", "s.description", "s.location",
			"s.created_by", "s.created_at", "s.updated_at",
			"count(a.address_id)",
			"count(a.address_id) FILTER (WHERE a.status = 'available')",
			"count(a.address_id) FILTER (WHERE a.status = 'allocated')",
			"count(a.address_id) FILTER (WHERE a.status = 'reserved')",
			"count(a.address_id) FILTER (WHERE a.status = 'conflict')").
		From("subnets s").
		LeftJoin("addresses a ON a.subnet_id = s.subnet_id").
		GroupBy("s.subnet_id").
		OrderBy("s.subnet_id"), filter, scope)

	builder = query.Filter{Skip: filter.Skip, Limit: filter.Limit}.ApplyLimitOffsetDefault(builder)

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, 0, database.DBErr(errRows)
	}

	defer rows.Close()

	var views []domain.SubnetView

	for rows.Next() {
		var (
			view    domain.SubnetView
			network netip.Prefix
			gateway *netip.Addr
		)

		if errScan := rows.Scan(&view.SubnetID, &network, &gateway, &view.VlanID,
			&view.Description, &view.Location, &view.CreatedBy, &view.CreatedAt, &view.UpdatedAt,
			&view.Counts.Total, &view.Counts.Available, &view.Counts.Allocated,
			&view.Counts.Reserved, &view.Counts.Conflict); errScan != nil {
			return nil, 0, database.DBErr(errScan)
		}

		view.Network = network.String()
		view.Netmask = netmath.MaskFor(network.Bits())

		if gateway != nil {
			view.Gateway = gateway.String()
		}

		views = append(views, view)
	}

	if views == nil {
		views = []domain.SubnetView{}
	}

	total, errTotal := r.db.GetCount(ctx, r.applyFilter(r.db.
		Builder().
		Select("count(s.subnet_id)").
		From("subnets s"), filter, scope))
	if errTotal != nil {
		return nil, 0, database.DBErr(errTotal)
	}

	return views, total, nil
}
