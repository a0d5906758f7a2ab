package encounter

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

const encounterCols = `id, patient_id, provider_id, appointment_id, type, mode,
	start_time, end_time, status, location`

func (r *repoPG) Insert(ctx context.Context, enc *Encounter) error {
	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounter (id, patient_id, provider_id, appointment_id, type, mode,
			start_time, end_time, status, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		enc.ID, enc.PatientID, enc.ProviderID, enc.AppointmentID, enc.Type, enc.Mode,
		enc.StartTime, enc.EndTime, enc.Status, enc.Location,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM encounter WHERE id = $1`, encounterCols), id)
	return scanEncounter(row)
}

func (r *repoPG) ListForProvider(ctx context.Context, providerID uuid.UUID, status Status, limit, offset int) ([]*Encounter, int, error) {
	return r.list(ctx, "provider_id", providerID, status, limit, offset)
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Encounter, int, error) {
	return r.list(ctx, "patient_id", patientID, status, limit, offset)
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID, status Status, limit, offset int) ([]*Encounter, int, error) {
	where := fmt.Sprintf("WHERE %s = $1", column)
	args := []interface{}{id}
	idx := 2
	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounter `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM encounter %s ORDER BY start_time DESC LIMIT $%d OFFSET $%d`,
		encounterCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var encounters []*Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, 0, err
		}
		encounters = append(encounters, e)
	}
	return encounters, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, enc *Encounter) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter
		SET end_time = $2, status = $3, location = $4
		WHERE id = $1`,
		enc.ID, enc.EndTime, enc.Status, enc.Location,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(
		&e.ID, &e.PatientID, &e.ProviderID, &e.AppointmentID, &e.Type, &e.Mode,
		&e.StartTime, &e.EndTime, &e.Status, &e.Location,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
