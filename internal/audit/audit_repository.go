// Package audit records every mutation of the address plan alongside the
// transaction that performed it and serves the trail back out.
package audit

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/database/query"
	"github.com/netgrid/netgrid/internal/domain"
)

type Repository struct {
	db database.Database
}

func NewRepository(db database.Database) *Repository {
	return &Repository{db: db}
}

// RecordTx appends an entry inside the supplied transaction so the trail
// commits or rolls back together with the mutation it describes.
func (r *Repository) RecordTx(ctx context.Context, transaction pgx.Tx, entry *domain.AuditEntry) error {
	entry.CreatedAt = time.Now()

	const insert = `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, old_values, new_values,
		                       remote_addr, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING audit_id`

	if errScan := transaction.
		QueryRow(ctx, insert, entry.UserID, entry.Action, entry.EntityType, entry.EntityID,
			entry.OldValues, entry.NewValues, entry.RemoteAddr, entry.UserAgent, entry.CreatedAt).
		Scan(&entry.AuditID); errScan != nil {
		return database.DBErr(errScan)
	}

	return nil
}

const auditColumns = "audit_id, user_id, action, entity_type, entity_id, old_values, new_values, remote_addr, user_agent, created_at"

func (r *Repository) scanRows(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry

	for rows.Next() {
		var entry domain.AuditEntry

		if errScan := rows.Scan(&entry.AuditID, &entry.UserID, &entry.Action, &entry.EntityType,
			&entry.EntityID, &entry.OldValues, &entry.NewValues, &entry.RemoteAddr,
			&entry.UserAgent, &entry.CreatedAt); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		entries = append(entries, entry)
	}

	if entries == nil {
		return []domain.AuditEntry{}, nil
	}

	return entries, nil
}

func (r *Repository) applyFilter(builder sq.SelectBuilder, filter domain.AuditQuery) sq.SelectBuilder {
	var constraints sq.And

	if filter.EntityType != "" {
		constraints = append(constraints, sq.Eq{"entity_type": filter.EntityType})
	}

	if filter.EntityID > 0 {
		constraints = append(constraints, sq.Eq{"entity_id": filter.EntityID})
	}

	if filter.UserID > 0 {
		constraints = append(constraints, sq.Eq{"user_id": filter.UserID})
	}

	if filter.Action != "" {
		constraints = append(constraints, sq.Eq{"action": filter.Action})
	}

	if !filter.Since.IsZero() {
		constraints = append(constraints, sq.GtOrEq{"created_at": filter.Since})
	}

	if !filter.Until.IsZero() {
		constraints = append(constraints, sq.LtOrEq{"created_at": filter.Until})
	}

	if len(constraints) > 0 {
		builder = builder.Where(constraints)
	}

	return builder
}

// Query returns the matching slice of the trail, newest first, along with
// the unpaged total.
func (r *Repository) Query(ctx context.Context, filter domain.AuditQuery) ([]domain.AuditEntry, int64, error) {
	builder := r.applyFilter(r.db.
		Builder().
		Select(auditColumns).
		From("audit_log").
		OrderBy("audit_id DESC"), filter)

	builder = query.Filter{Skip: filter.Skip, Limit: filter.Limit}.ApplyLimitOffsetDefault(builder)

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, 0, database.DBErr(errRows)
	}

	defer rows.Close()

	entries, errScan := r.scanRows(rows)
	if errScan != nil {
		return nil, 0, errScan
	}

	total, errTotal := r.db.GetCount(ctx, r.applyFilter(r.db.
		Builder().
		Select("count(audit_id)").
		From("audit_log"), filter))
	if errTotal != nil {
		return nil, 0, database.DBErr(errTotal)
	}

	return entries, total, nil
}
