package audit

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

const logCols = `id, user_id, action, entity_type, entity_id, ip, source, timestamp, metadata`

func (r *repoPG) Insert(ctx context.Context, entry *Log) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_log (id, user_id, action, entity_type, entity_id, ip, source, timestamp, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID,
		entry.IP, entry.Source, entry.Timestamp, entry.Metadata,
	)
	return err
}

func (r *repoPG) Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Log, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1

	add := func(clause string, val interface{}) {
		where += fmt.Sprintf(" AND %s = $%d", clause, idx)
		args = append(args, val)
		idx++
	}

	if filter.UserID != nil {
		add("user_id", *filter.UserID)
	}
	if filter.Action != "" {
		add("action", filter.Action)
	}
	if filter.EntityType != "" {
		add("entity_type", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id", filter.EntityID)
	}
	if filter.From != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", idx)
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		where += fmt.Sprintf(" AND timestamp < $%d", idx)
		args = append(args, *filter.To)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_log %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		logCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []*Log
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, entry)
	}
	return result, total, rows.Err()
}

func (r *repoPG) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM audit_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanLog(row pgx.Row) (*Log, error) {
	var entry Log
	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.Action, &entry.EntityType, &entry.EntityID,
		&entry.IP, &entry.Source, &entry.Timestamp, &entry.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
