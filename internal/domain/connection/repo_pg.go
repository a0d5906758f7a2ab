package connection

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const linkCols = `id, provider_id, patient_id, treatment_type, status,
	outstanding_balance, can_disconnect, requested_at, decided_at, disconnected_at`

func (r *repoPG) Insert(ctx context.Context, link *Link) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO provider_patient_link (id, provider_id, patient_id, treatment_type, status,
			outstanding_balance, can_disconnect, requested_at, decided_at, disconnected_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		link.ID, link.ProviderID, link.PatientID, link.TreatmentType, link.Status,
		link.OutstandingBalance, link.CanDisconnect, link.RequestedAt, link.DecidedAt, link.DisconnectedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Link, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM provider_patient_link WHERE id = $1`, linkCols), id)
	return scanLink(row)
}

func (r *repoPG) FindApproved(ctx context.Context, providerID, patientID uuid.UUID) (*Link, error) {
	row := r.conn(ctx).QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM provider_patient_link
		WHERE provider_id = $1 AND patient_id = $2 AND status = 'approved'
		ORDER BY requested_at DESC
		LIMIT 1`, linkCols), providerID, patientID)
	return scanLink(row)
}

func (r *repoPG) FindActive(ctx context.Context, providerID, patientID uuid.UUID, treatmentType string) (*Link, error) {
	row := r.conn(ctx).QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM provider_patient_link
		WHERE provider_id = $1 AND patient_id = $2 AND treatment_type = $3
		  AND status IN ('pending', 'approved')
		LIMIT 1`, linkCols), providerID, patientID, treatmentType)
	return scanLink(row)
}

func (r *repoPG) ListForProvider(ctx context.Context, providerID uuid.UUID, status Status, limit, offset int) ([]*Link, int, error) {
	return r.list(ctx, "provider_id", providerID, status, limit, offset)
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Link, int, error) {
	return r.list(ctx, "patient_id", patientID, status, limit, offset)
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID, status Status, limit, offset int) ([]*Link, int, error) {
	where := fmt.Sprintf("WHERE %s = $1", column)
	args := []interface{}{id}
	idx := 2
	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM provider_patient_link `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM provider_patient_link %s ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`,
		linkCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, l)
	}
	return links, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, link *Link) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE provider_patient_link
		SET status = $2, outstanding_balance = $3, can_disconnect = $4,
		    decided_at = $5, disconnected_at = $6
		WHERE id = $1`,
		link.ID, link.Status, link.OutstandingBalance, link.CanDisconnect,
		link.DecidedAt, link.DisconnectedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE provider_patient_link
		SET outstanding_balance = outstanding_balance + $2
		WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanLink(row pgx.Row) (*Link, error) {
	var l Link
	err := row.Scan(
		&l.ID, &l.ProviderID, &l.PatientID, &l.TreatmentType, &l.Status,
		&l.OutstandingBalance, &l.CanDisconnect, &l.RequestedAt, &l.DecidedAt, &l.DisconnectedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
