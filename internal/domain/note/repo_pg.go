package note

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

const noteCols = `id, encounter_id, patient_id, author_id, status,
	subjective, objective, assessment, plan, summary,
	signature_hash, finalized_at, amends_note_id, created_at, updated_at`

func (r *repoPG) Insert(ctx context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO progress_note (id, encounter_id, patient_id, author_id, status,
			subjective, objective, assessment, plan, summary,
			signature_hash, finalized_at, amends_note_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		n.ID, n.EncounterID, n.PatientID, n.AuthorID, n.Status,
		n.Subjective, n.Objective, n.Assessment, n.Plan, n.Summary,
		n.SignatureHash, n.FinalizedAt, n.AmendsNoteID, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM progress_note WHERE id = $1`, noteCols), id)
	return scanNote(row)
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM progress_note WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM progress_note
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, noteCols), patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}
	return notes, total, rows.Err()
}

func (r *repoPG) UpdateBody(ctx context.Context, id uuid.UUID, body Body) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE progress_note
		SET encounter_id = $2, subjective = $3, objective = $4, assessment = $5,
		    plan = $6, summary = $7, updated_at = $8
		WHERE id = $1 AND status = 'draft'`,
		id, body.EncounterID, body.Subjective, body.Objective, body.Assessment,
		body.Plan, body.Summary, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Finalize guards the transition in the WHERE clause so two concurrent
// calls cannot both succeed: exactly one sees a row updated.
func (r *repoPG) Finalize(ctx context.Context, id uuid.UUID, signatureHash string, finalizedAt time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE progress_note
		SET status = 'finalized', signature_hash = $2, finalized_at = $3, updated_at = $4
		WHERE id = $1 AND status = 'draft'`,
		id, signatureHash, finalizedAt, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) MarkAmended(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE progress_note
		SET status = 'amended', updated_at = $2
		WHERE id = $1 AND status = 'finalized'`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(
		&n.ID, &n.EncounterID, &n.PatientID, &n.AuthorID, &n.Status,
		&n.Subjective, &n.Objective, &n.Assessment, &n.Plan, &n.Summary,
		&n.SignatureHash, &n.FinalizedAt, &n.AmendsNoteID, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
