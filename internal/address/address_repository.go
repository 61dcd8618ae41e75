package address

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

// searchLimitMax caps a single search response.
const searchLimitMax = 1000

type Repository struct {
	db database.Database
}

func NewRepository(db database.Database) *Repository {
	return &Repository{db: db}
}

const addressColumns = `address_id, subnet_id, ip, status, assigned_to, user_name, mac_address,
	device_type, location, description, allocated_at, allocated_by, created_at, updated_at`

func scanAddress(row pgx.Row) (domain.Address, error) {
	var (
		addr        domain.Address
		allocatedBy *int64
	)

	if errScan := row.Scan(&addr.AddressID, &addr.SubnetID, &addr.IP, &addr.Status,
		&addr.AssignedTo, &addr.UserName, &addr.MAC, &addr.DeviceType, &addr.Location,
		&addr.Description, &addr.AllocatedAt, &allocatedBy,
		&addr.CreatedAt, &addr.UpdatedAt); errScan != nil {
		return addr, database.DBErr(errScan)
	}

	if allocatedBy != nil {
		addr.AllocatedBy = *allocatedBy
	}

	return addr, nil
}

func (r *Repository) GetByID(ctx context.Context, addressID int64) (domain.Address, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.
		Builder().
		Select(addressColumns).
		From("addresses").
		Where("address_id = ?", addressID))
	if errRow != nil {
		return domain.Address{}, database.DBErr(errRow)
	}

	return scanAddress(row)
}

// LockByIDTx locks a single row for the remainder of the transaction,
// blocking concurrent mutators until we commit.
func (r *Repository) LockByIDTx(ctx context.Context, transaction pgx.Tx, addressID int64) (domain.Address, error) {
	row := transaction.QueryRow(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE address_id = $1 FOR UPDATE", addressID)

	return scanAddress(row)
}

// LockByIPTx locks the row holding ip inside the subnet.
func (r *Repository) LockByIPTx(ctx context.Context, transaction pgx.Tx, subnetID int64, ip netip.Addr) (domain.Address, error) {
	row := transaction.QueryRow(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE subnet_id = $1 AND ip = $2 FOR UPDATE",
		subnetID, ip)

	return scanAddress(row)
}

// LockByIPGlobalTx locks the row holding ip. Subnets cannot overlap, so an
// ip resolves to at most one row.
func (r *Repository) LockByIPGlobalTx(ctx context.Context, transaction pgx.Tx, ip netip.Addr) (domain.Address, error) {
	row := transaction.QueryRow(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE ip = $1 FOR UPDATE", ip)

	return scanAddress(row)
}

// LockLowestFreeTx claims the numerically lowest available rows of a subnet.
// SKIP LOCKED keeps concurrent allocators from queueing on the same row, so
// each caller claims a distinct address.
func (r *Repository) LockLowestFreeTx(ctx context.Context, transaction pgx.Tx, subnetID int64, count int) ([]domain.Address, error) {
	rows, errRows := transaction.Query(ctx,
		"SELECT "+addressColumns+` FROM addresses
		 WHERE subnet_id = $1 AND status = 'available'
		 ORDER BY ip
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`, subnetID, count)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var addrs []domain.Address

	for rows.Next() {
		addr, errScan := scanAddress(rows)
		if errScan != nil {
			return nil, errScan
		}

		addrs = append(addrs, addr)
	}

	return addrs, nil
}

// SaveTx writes the mutable fields of a row back inside the transaction.
func (r *Repository) SaveTx(ctx context.Context, transaction pgx.Tx, addr *domain.Address) error {
	addr.UpdatedAt = time.Now()

	var allocatedBy any
	if addr.AllocatedBy > 0 {
		allocatedBy = addr.AllocatedBy
	}

	const update = `
		UPDATE addresses
		SET status = $2, assigned_to = $3, user_name = $4, mac_address = $5, device_type = $6,
		    location = $7, description = $8, allocated_at = $9, allocated_by = $10, updated_at = $11
		WHERE address_id = $1`

	if _, errExec := transaction.Exec(ctx, update, addr.AddressID, addr.Status, addr.AssignedTo,
		addr.UserName, addr.MAC, addr.DeviceType, addr.Location, addr.Description,
		addr.AllocatedAt, allocatedBy, addr.UpdatedAt); errExec != nil {
		return database.DBErr(errExec)
	}

	return nil
}

// ReservedByUserTx counts the reservations a user holds in a subnet,
// inside the transaction so the reservation cap cannot be raced past.
func (r *Repository) ReservedByUserTx(ctx context.Context, transaction pgx.Tx, subnetID int64, userID int64) (int64, error) {
	var count int64

	if errScan := transaction.QueryRow(ctx,
		`SELECT count(address_id) FROM addresses
		 WHERE subnet_id = $1 AND status = 'reserved' AND allocated_by = $2`,
		subnetID, userID).Scan(&count); errScan != nil {
		return 0, database.DBErr(errScan)
	}

	return count, nil
}

// SubnetSizeTx returns the number of materialised rows in the subnet.
func (r *Repository) SubnetSizeTx(ctx context.Context, transaction pgx.Tx, subnetID int64) (int64, error) {
	var count int64

	if errScan := transaction.QueryRow(ctx,
		"SELECT count(address_id) FROM addresses WHERE subnet_id = $1", subnetID).
		Scan(&count); errScan != nil {
		return 0, database.DBErr(errScan)
	}

	return count, nil
}

// Range returns the rows whose ip lies in [start, end], ascending.
func (r *Repository) Range(ctx context.Context, start netip.Addr, end netip.Addr, scope domain.Scope) ([]domain.RangeStatus, error) {
	builder := r.db.
		Builder().
		Select("ip", "status", "assigned_to", "user_name", "mac_address").
		From("addresses").
		Where("ip >= ? AND ip <= ?", start, end).
		OrderBy("ip")

	if !scope.All {
		builder = builder.Where(sq.Eq{"subnet_id": scope.SubnetIDs})
	}

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var statuses []domain.RangeStatus

	for rows.Next() {
		var status domain.RangeStatus

		if errScan := rows.Scan(&status.IP, &status.Status, &status.AssignedTo,
			&status.UserName, &status.MAC); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		statuses = append(statuses, status)
	}

	if statuses == nil {
		statuses = []domain.RangeStatus{}
	}

	return statuses, nil
}

// DuplicateMACsTx finds allocated rows in a subnet sharing a MAC address,
// the signature of an address conflict on the wire.
func (r *Repository) DuplicateMACsTx(ctx context.Context, transaction pgx.Tx, subnetID int64) ([]domain.Address, error) {
	rows, errRows := transaction.Query(ctx,
		"SELECT "+addressColumns+` FROM addresses
		 WHERE subnet_id = $1 AND status = 'allocated' AND mac_address <> ''
		   AND mac_address IN (
			SELECT mac_address FROM addresses
			WHERE subnet_id = $1 AND status = 'allocated' AND mac_address <> ''
			GROUP BY mac_address
			HAVING count(address_id) > 1)
		 ORDER BY ip
		 FOR UPDATE`, subnetID)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var addrs []domain.Address

	for rows.Next() {
		addr, errScan := scanAddress(rows)
		if errScan != nil {
			return nil, errScan
		}

		addrs = append(addrs, addr)
	}

	return addrs, nil
}

// applyFilter adds the structured filters shared by the search query and its
// count.
func applyFilter(builder sq.SelectBuilder, filter domain.AddressQuery, scope domain.Scope) sq.SelectBuilder {
	var constraints sq.And

	if !scope.All {
		constraints = append(constraints, sq.Eq{"subnet_id": scope.SubnetIDs})
	}

	if filter.SubnetID > 0 {
		constraints = append(constraints, sq.Eq{"subnet_id": filter.SubnetID})
	}

	if filter.Status != "" {
		constraints = append(constraints, sq.Eq{"status": filter.Status})
	}

	if filter.DeviceType != "" {
		constraints = append(constraints, sq.Eq{"device_type": filter.DeviceType})
	}

	if filter.AssignedTo != "" {
		constraints = append(constraints, sq.ILike{"assigned_to": "%" + filter.AssignedTo + "%"})
	}

	if len(constraints) > 0 {
		builder = builder.Where(constraints)
	}

	return builder
}

// applyQueryWhere interprets the free text term: a full dotted quad matches
// by equality, a partial or network style quad restricts to the implied
// block, anything else substring matches the assignment fields.
func applyQueryWhere(builder sq.SelectBuilder, term string) sq.SelectBuilder {
	if term == "" {
		return builder
	}

	kind, value, prefix := netmath.ClassifyQuery(term)

	switch kind {
	case netmath.QueryExact:
		return builder.Where("ip = ?::inet", netmath.Int2IP(value).String())
	case netmath.QueryPrefix:
		return builder.Where("ip <<= ?::cidr", netmath.Normalise(value, prefix))
	default:
		like := "%" + term + "%"

		return builder.Where(sq.Or{
			sq.Expr("ip::text ILIKE ?", like),
			sq.ILike{"assigned_to": like},
			sq.ILike{"user_name": like},
			sq.ILike{"description": like},
		})
	}
}

// applyQueryOrder ranks text matches: exact field hits before substring
// hits, assignee before user name, ties broken by ascending ip.
func applyQueryOrder(builder sq.SelectBuilder, term string) sq.SelectBuilder {
	if term != "" {
		if kind, _, _ := netmath.ClassifyQuery(term); kind == netmath.QueryText {
			like := "%" + term + "%"

			return builder.
				OrderByClause(
					"CASE WHEN assigned_to = ? THEN 0 WHEN user_name = ? THEN 1"+
						" WHEN assigned_to ILIKE ? THEN 2 WHEN user_name ILIKE ? THEN 3 ELSE 4 END",
					term, term, like, like).
				OrderBy("ip")
		}
	}

	return builder.OrderBy("ip")
}

// Search runs a scoped, ranked, paginated address query.
func (r *Repository) Search(ctx context.Context, filter domain.AddressQuery, scope domain.Scope) ([]domain.Address, int64, error) {
	builder := applyQueryWhere(applyFilter(r.db.
		Builder().
		Select(addressColumns).
		From("addresses"), filter, scope), filter.Query)

	builder = applyQueryOrder(builder, filter.Query)
	builder = query.Filter{Skip: filter.Skip, Limit: filter.Limit}.ApplyLimitOffset(builder, searchLimitMax)

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, 0, database.DBErr(errRows)
	}

	defer rows.Close()

	var addrs []domain.Address

	for rows.Next() {
		addr, errScan := scanAddress(rows)
		if errScan != nil {
			return nil, 0, errScan
		}

		addrs = append(addrs, addr)
	}

	if addrs == nil {
		addrs = []domain.Address{}
	}

	total, errTotal := r.db.GetCount(ctx, applyQueryWhere(applyFilter(r.db.
		Builder().
		Select("count(address_id)").
		From("addresses"), filter, scope), filter.Query))
	if errTotal != nil {
		return nil, 0, database.DBErr(errTotal)
	}

	return addrs, total, nil
}
