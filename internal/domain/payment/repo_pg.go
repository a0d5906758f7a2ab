package payment

import (
	"context"
	"fmt"
	"time"

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

const paymentCols = `id, link_id, patient_id, provider_id, amount_cents, currency,
	status, method, reference, created_at, updated_at`

func (r *repoPG) Insert(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (id, link_id, patient_id, provider_id, amount_cents, currency,
			status, method, reference, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.LinkID, p.PatientID, p.ProviderID, p.AmountCents, p.Currency,
		p.Status, p.Method, p.Reference, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM payment WHERE id = $1`, paymentCols), id)
	return scanPayment(row)
}

func (r *repoPG) ListForLink(ctx context.Context, linkID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return r.list(ctx, "link_id", linkID, limit, offset)
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM payment WHERE %s = $1`, column), id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM payment
		WHERE %s = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, paymentCols, column), id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'`,
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.LinkID, &p.PatientID, &p.ProviderID, &p.AmountCents, &p.Currency,
		&p.Status, &p.Method, &p.Reference, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
