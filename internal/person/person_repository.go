// Package person reads and writes the user directory used for
// authentication.
package person

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
)

type Repository struct {
	db database.Database
}

func NewRepository(db database.Database) *Repository {
	return &Repository{db: db}
}

const personColumns = "user_id, username, password_hash, email, role, is_active, created_at, updated_at"

func (r *Repository) scanRow(row pgx.Row) (domain.Person, error) {
	var person domain.Person

	if errScan := row.Scan(&person.UserID, &person.Username, &person.PasswordHash, &person.Email,
		&person.Role, &person.IsActive, &person.CreatedAt, &person.UpdatedAt); errScan != nil {
		return person, database.DBErr(errScan)
	}

	return person, nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (domain.Person, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.
		Builder().
		Select(personColumns).
		From("users").
		Where("username = ?", username))
	if errRow != nil {
		return domain.Person{}, database.DBErr(errRow)
	}

	return r.scanRow(row)
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (domain.Person, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.
		Builder().
		Select(personColumns).
		From("users").
		Where("user_id = ?", userID))
	if errRow != nil {
		return domain.Person{}, database.DBErr(errRow)
	}

	return r.scanRow(row)
}

// Save inserts a new user or updates an existing one, refreshing the row
// timestamps.
func (r *Repository) Save(ctx context.Context, person *domain.Person) error {
	now := time.Now()

	if person.UserID > 0 {
		person.UpdatedAt = now

		return database.DBErr(r.db.ExecUpdateBuilder(ctx, r.db.
			Builder().
			Update("users").
			Set("username", person.Username).
			Set("password_hash", person.PasswordHash).
			Set("email", person.Email).
			Set("role", person.Role).
			Set("is_active", person.IsActive).
			Set("updated_at", person.UpdatedAt).
			Where("user_id = ?", person.UserID)))
	}

	person.CreatedAt = now
	person.UpdatedAt = now

	return database.DBErr(r.db.ExecInsertBuilderWithReturnValue(ctx, r.db.
		Builder().
		Insert("users").
		Columns("username", "password_hash", "email", "role", "is_active", "created_at", "updated_at").
		Values(person.Username, person.PasswordHash, person.Email, person.Role, person.IsActive,
			person.CreatedAt, person.UpdatedAt).
		Suffix("RETURNING user_id"), &person.UserID))
}
