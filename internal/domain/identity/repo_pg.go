package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const userCols = `id, email, password_hash, full_name,
	is_admin, is_clerk, is_provider, is_patient,
	provider_approval, specialty, created_at, updated_at`

func (r *repoPG) Insert(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO app_user (id, email, password_hash, full_name,
			is_admin, is_clerk, is_provider, is_patient,
			provider_approval, specialty, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		user.ID, user.Email, user.PasswordHash, user.FullName,
		user.Roles.IsAdmin, user.Roles.IsClerk, user.Roles.IsProvider, user.Roles.IsPatient,
		user.ProviderApproval, user.Specialty, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM app_user WHERE id = $1`, userCols), id)
	return scanUser(row)
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM app_user WHERE lower(email) = lower($1)`, userCols), email)
	return scanUser(row)
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*User, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1

	switch filter.Role {
	case "admin":
		where += " AND is_admin"
	case "clerk":
		where += " AND is_clerk"
	case "provider":
		where += " AND is_provider"
	case "patient":
		where += " AND is_patient"
	}
	if filter.ProviderApproval != "" {
		where += fmt.Sprintf(" AND provider_approval = $%d", idx)
		args = append(args, filter.ProviderApproval)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM app_user `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM app_user %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *repoPG) UpdateRoles(ctx context.Context, id uuid.UUID, roles auth.RoleFlags) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user
		SET is_admin = $2, is_clerk = $3, is_provider = $4, is_patient = $5, updated_at = $6
		WHERE id = $1`,
		id, roles.IsAdmin, roles.IsClerk, roles.IsProvider, roles.IsPatient, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) UpdateApproval(ctx context.Context, id uuid.UUID, status auth.ApprovalStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET provider_approval = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName,
		&u.Roles.IsAdmin, &u.Roles.IsClerk, &u.Roles.IsProvider, &u.Roles.IsPatient,
		&u.ProviderApproval, &u.Specialty, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	return &u, nil
}
