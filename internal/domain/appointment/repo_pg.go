package appointment

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

const apptCols = `id, patient_id, provider_id, date, duration, status, note,
	meeting_link, meeting_start_at, meeting_end_at, created_at, updated_at`

func (r *repoPG) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, provider_id, date, duration, status, note,
			meeting_link, meeting_start_at, meeting_end_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		appt.ID, appt.PatientID, appt.ProviderID, appt.Date, appt.Duration, appt.Status, appt.Note,
		appt.MeetingLink, appt.MeetingStartAt, appt.MeetingEndAt, appt.CreatedAt, appt.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM appointment WHERE id = $1`, apptCols), id)
	return scanAppointment(row)
}

func (r *repoPG) ListForProvider(ctx context.Context, providerID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "provider_id", providerID, status, limit, offset)
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "patient_id", patientID, status, limit, offset)
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error) {
	where := fmt.Sprintf("WHERE %s = $1", column)
	args := []interface{}{id}
	idx := 2
	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM appointment %s ORDER BY date ASC LIMIT $%d OFFSET $%d`,
		apptCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, appt *Appointment) error {
	appt.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET date = $2, duration = $3, status = $4, note = $5,
		    meeting_link = $6, meeting_start_at = $7, meeting_end_at = $8, updated_at = $9
		WHERE id = $1`,
		appt.ID, appt.Date, appt.Duration, appt.Status, appt.Note,
		appt.MeetingLink, appt.MeetingStartAt, appt.MeetingEndAt, appt.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.ProviderID, &a.Date, &a.Duration, &a.Status, &a.Note,
		&a.MeetingLink, &a.MeetingStartAt, &a.MeetingEndAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
